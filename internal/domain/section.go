package domain

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ResourceSection describes a configuration section holding resources,
// e.g. Kernel/Add with kexts referenced by BundlePath
type ResourceSection struct {
	Section   string `json:"section" yaml:"section" validate:"required"`
	Sub       string `json:"sub" yaml:"sub" validate:"required"`
	KeyField  string `json:"key_field,omitempty" yaml:"key_field,omitempty"`
	Directory string `json:"directory,omitempty" yaml:"directory,omitempty"`
}

// Label returns the section/sub label shown for the section
func (s ResourceSection) Label() string {
	return s.Section + "/" + s.Sub
}

// UnmarshalYAML accepts either a mapping or the compact
// ["Kernel", "Add", "BundlePath", "Kexts"] sequence form
func (s *ResourceSection) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var parts []string
		if err := node.Decode(&parts); err != nil {
			return err
		}
		if len(parts) < 2 || len(parts) > 4 {
			return fmt.Errorf("resource section needs 2 to 4 fields, got %d", len(parts))
		}
		parts = append(parts, "", "")
		*s = ResourceSection{
			Section:   parts[0],
			Sub:       parts[1],
			KeyField:  parts[2],
			Directory: parts[3],
		}
		return nil
	case yaml.MappingNode:
		type plain ResourceSection
		var p plain
		if err := node.Decode(&p); err != nil {
			return err
		}
		*s = ResourceSection(p)
		return nil
	default:
		return fmt.Errorf("resource section must be a sequence or mapping")
	}
}
