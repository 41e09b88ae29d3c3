package document

import (
	"fmt"
	"log/slog"
)

// Binding pairs the user's document with the read-only reference document
// it is checked against
type Binding struct {
	Config    *Document
	Reference *Document

	// ReferenceErr is set when the reference document could not be loaded.
	// The binding stays usable without it.
	ReferenceErr error
}

// Bind loads the user's document and the reference document. Only errors
// loading the user's document are returned.
func Bind(configPath, referencePath string, logger *slog.Logger) (*Binding, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration document: %w", err)
	}
	logger.Info("configuration document loaded",
		"path", configPath,
		"format", cfg.Format,
		"sections", cfg.Root.Len(),
	)

	b := &Binding{Config: cfg}
	if referencePath == "" {
		return b, nil
	}

	ref, err := Load(referencePath)
	if err != nil {
		logger.Warn("reference document unavailable", "path", referencePath, "error", err)
		b.ReferenceErr = err
		return b, nil
	}
	b.Reference = ref
	return b, nil
}

// MissingSections lists enabled reference sections absent from the
// user's document
func (b *Binding) MissingSections() []string {
	if b.Reference == nil {
		return nil
	}

	var missing []string
	for _, section := range b.Reference.Sections() {
		if IsMarker(section) {
			continue
		}
		if _, ok := b.Config.Root.Get(section); !ok {
			missing = append(missing, section)
		}
	}
	return missing
}
