package tui

import (
	"fmt"
	"strings"

	"github.com/agentmitra/portalctl/internal/dataimport"
)

// maxShownErrors caps the row errors listed on the validation screen.
const maxShownErrors = 5

var stageTitles = []struct {
	state dataimport.State
	title string
}{
	{dataimport.StateUpload, "Upload"},
	{dataimport.StateTemplateSelect, "Template"},
	{dataimport.StateValidateResult, "Validate"},
	{dataimport.StateImportResult, "Import"},
}

// View renders the TUI (required by Bubble Tea)
func (m WizardModel) View() string {
	if m.quitting {
		return ""
	}

	snap := m.wizard.Snapshot()
	var b strings.Builder

	b.WriteString(m.styles.Title.Render("Data Import"))
	b.WriteString("\n")
	b.WriteString(m.renderSteps(snap.State))
	b.WriteString("\n\n")

	switch snap.State {
	case dataimport.StateUpload:
		b.WriteString(m.renderUpload())
	case dataimport.StateTemplateSelect:
		b.WriteString(m.renderTemplateSelect(snap))
	case dataimport.StateValidateResult:
		b.WriteString(m.renderValidation(snap))
	case dataimport.StateImportResult:
		b.WriteString(m.renderImported(snap))
	}

	if m.busy {
		b.WriteString("\n\n")
		b.WriteString(m.renderBusy())
	}

	if m.err != nil {
		b.WriteString("\n\n")
		b.WriteString(m.styles.Border.
			BorderForeground(m.styles.Error.GetForeground()).
			Render(m.styles.Error.Render("Error: ") + firstLine(m.err.Error())))
	}

	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m WizardModel) renderSteps(current dataimport.State) string {
	parts := make([]string, len(stageTitles))
	for i, s := range stageTitles {
		switch {
		case s.state == current:
			parts[i] = m.styles.Highlighted.Render(s.title)
		case s.state < current:
			parts[i] = m.styles.Success.Render("✓ " + s.title)
		default:
			parts[i] = m.styles.Muted.Render(s.title)
		}
	}
	return strings.Join(parts, m.styles.Muted.Render(" › "))
}

func (m WizardModel) renderUpload() string {
	if m.busy {
		return m.styles.Subtitle.Render("Reading " + m.path)
	}
	return m.styles.Subtitle.Render(m.path+" could not be loaded.") + "\n" +
		m.styles.Muted.Render("Press enter to try again.")
}

func (m WizardModel) renderTemplateSelect(snap dataimport.Snapshot) string {
	var b strings.Builder
	if f := snap.File; f != nil {
		fmt.Fprintf(&b, "%s  %d rows, %d columns\n", m.styles.Status.Render(f.Name), len(f.Data), len(f.Headers))
		b.WriteString(m.styles.Muted.Render("Columns: " + strings.Join(f.Headers, ", ")))
		b.WriteString("\n\n")
	}

	b.WriteString("Choose a template:\n")
	choices := append([]string{"No template (only check the file)"}, templateLabels(m.templates)...)
	for i, c := range choices {
		cursor := "  "
		line := c
		if i == m.cursor {
			cursor = m.styles.Status.Render("> ")
			line = m.styles.Status.Render(c)
		}
		b.WriteString(cursor + line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func templateLabels(templates []dataimport.ImportTemplate) []string {
	out := make([]string, len(templates))
	for i, t := range templates {
		out[i] = t.Name
		if t.EntityType != "" {
			out[i] += " (" + string(t.EntityType) + ")"
		}
	}
	return out
}

func (m WizardModel) renderValidation(snap dataimport.Snapshot) string {
	res := snap.Result
	if res == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Total rows:   %d\n", res.TotalRows)
	fmt.Fprintf(&b, "Valid rows:   %s\n", m.styles.Success.Render(fmt.Sprint(res.ValidRows)))
	fmt.Fprintf(&b, "Invalid rows: %s\n", m.styles.Error.Render(fmt.Sprint(res.InvalidRows)))

	if res.InvalidRows == 0 {
		b.WriteString("\n" + m.styles.Success.Render("✓ Ready to import. Press enter to import."))
		return b.String()
	}

	b.WriteString("\n")
	for i, e := range res.Errors {
		if i == maxShownErrors {
			b.WriteString(m.styles.Muted.Render(fmt.Sprintf("  ... and %d more", len(res.Errors)-maxShownErrors)) + "\n")
			break
		}
		fmt.Fprintf(&b, "  ✗ row %d: %s\n", e.Row, e.Error)
	}
	b.WriteString("\n" + m.styles.Warning.Render("Import is blocked until every row is valid. Fix the file and press r to start over."))
	return b.String()
}

func (m WizardModel) renderImported(snap dataimport.Snapshot) string {
	res := snap.Result
	if res == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.styles.Success.Render(fmt.Sprintf("✓ Imported %d of %d rows", res.ImportedRows, res.TotalRows)))
	b.WriteString("\n")
	if res.ID != "" {
		b.WriteString(m.styles.Muted.Render("Import ID: "+res.ID) + "\n")
	}
	fmt.Fprintf(&b, "Status: %s", res.Status)
	if n := len(res.Errors); n > 0 {
		b.WriteString("\n" + m.styles.Warning.Render(fmt.Sprintf("%d rows were rejected by the server", n)))
	}
	return b.String()
}

func (m WizardModel) renderBusy() string {
	line := m.spinner.View() + " "
	if m.last == nil {
		return line + "Working..."
	}
	line += string(m.last.Stage)
	if m.last.Message != "" {
		line += ": " + m.last.Message
	}
	return line + "\n" + m.bar.ViewAs(float64(m.last.Percent)/100)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
