package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/octool/octool/internal/session"
	"github.com/octool/octool/internal/validate"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4CAF50")).
			Bold(true)

	okStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4CAF50"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F44336")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF9800")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#E5E7EB")).
			Padding(0, 1)
)

// Render formats a session report for the terminal
func Render(r *session.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", headerStyle.Render("build_version set to"), r.BuildType)
	fmt.Fprintf(&b, "%s %s\n", headerStyle.Render("plist resource sections"), strings.Join(r.ResourceSections, ", "))

	if len(r.Syncs) > 0 {
		b.WriteString("\n")
		for _, s := range r.Syncs {
			switch {
			case s.Skipped:
				fmt.Fprintf(&b, "%s %s %s\n", headerStyle.Render("checking"), s.Name, warningStyle.Render("offline"))
			case s.Err != nil:
				fmt.Fprintf(&b, "%s %s %s\n", headerStyle.Render("checking"), s.Name, errorStyle.Render("stale"))
			default:
				fmt.Fprintf(&b, "%s %s %s\n", headerStyle.Render("checking"), s.Name, okStyle.Render(s.Outcome.String()))
			}
		}
	}

	if len(r.Components) > 0 {
		b.WriteString("\n")
		for _, c := range r.Components {
			line := fmt.Sprintf("%s %s (%s)", c.Resolved.Component, c.Resolved.Version(), c.Resolved.Channel)
			if c.Tracked && c.Local.Head != "" {
				line += " " + dimStyle.Render(short(c.Local.Head))
			}
			if c.Resolved.Vendor != nil && c.Resolved.Vendor.URL != "" {
				line += " " + dimStyle.Render(c.Resolved.Vendor.URL)
			}
			b.WriteString(line + "\n")
		}
	}

	if r.Validation != nil || r.ValidationErr != nil {
		fmt.Fprintf(&b, "\n%s %s\n", headerStyle.Render("Validating"), r.DocumentPath)
		b.WriteString(renderValidation(r))
	}

	if warnings := r.Warnings(); len(warnings) > 0 {
		b.WriteString("\n")
		for _, w := range warnings {
			fmt.Fprintf(&b, "%s %s\n", warningStyle.Render("WARNING:"), w)
		}
	}

	if len(r.MissingSections) > 0 {
		fmt.Fprintf(&b, "\n%s %s\n", dimStyle.Render("sections missing from document:"), strings.Join(r.MissingSections, ", "))
	}

	return b.String()
}

func renderValidation(r *session.Report) string {
	if r.Validation == nil {
		return warningStyle.Render("validator not available") + "\n"
	}

	v := r.Validation
	if v.Status == validate.Clean {
		out := okStyle.Render("no errors found")
		if v.Diagnostics != "" {
			out += "\n" + boxStyle.Render(v.Diagnostics)
		}
		return out + "\n"
	}

	out := errorStyle.Render(fmt.Sprintf("Error(s) found in %s (exit %d)", r.DocumentPath, v.ExitCode))
	if v.Diagnostics != "" {
		out += "\n" + boxStyle.Render(v.Diagnostics)
	}
	return out + "\n"
}

func short(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
