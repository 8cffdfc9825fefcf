package tui

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmitra/portalctl/internal/dataimport"
	"github.com/agentmitra/portalctl/internal/errors"
	"github.com/agentmitra/portalctl/internal/log"
)

type stubImporter struct {
	calls int
	resp  *dataimport.Response
	err   error
}

func (s *stubImporter) ImportData(_ context.Context, req dataimport.Request) (*dataimport.Response, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

var templates = []dataimport.ImportTemplate{{
	ID:              "tpl_customers",
	Name:            "Customers",
	EntityType:      dataimport.EntityCustomers,
	ValidationRules: []dataimport.ValidationRule{{Field: "Email", Rule: dataimport.RuleRequired, Message: "Email is required"}},
}}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "customers.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newModel(t *testing.T, content string, imp dataimport.Importer, observers ...func(dataimport.Progress)) WizardModel {
	t.Helper()
	w := dataimport.NewWizard(dataimport.NewProcessor(log.Discard()), imp, log.Discard())
	return NewWizardModel(context.Background(), w, writeCSV(t, content), dataimport.DefaultOptions(), templates, observers...)
}

// step feeds msg to the model and, when the returned command is a single
// wizard call, runs it and feeds its result back.
func step(t *testing.T, m WizardModel, msg tea.Msg) WizardModel {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(WizardModel)
	if cmd == nil {
		return m
	}
	switch out := cmd().(type) {
	case fileLoadedMsg, validatedMsg, importedMsg:
		next, _ = m.Update(out)
		m = next.(WizardModel)
	}
	return m
}

func load(t *testing.T, m WizardModel) WizardModel {
	t.Helper()
	next, _ := m.Update(m.loadFile()())
	return next.(WizardModel)
}

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	down  = tea.KeyMsg{Type: tea.KeyDown}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestWizardModel_HappyPath(t *testing.T) {
	imp := &stubImporter{resp: &dataimport.Response{
		ImportID: "imp_1",
		Status:   dataimport.StatusCompleted,
		Results:  dataimport.ImportResult{TotalRows: 2, ImportedRows: 2},
	}}
	var stages []dataimport.Stage
	m := newModel(t, "Name,Email\nAsha,asha@example.in\nRavi,ravi@example.in\n", imp, func(p dataimport.Progress) {
		stages = append(stages, p.Stage)
	})
	require.True(t, m.busy)

	m = load(t, m)
	require.NoError(t, m.err)
	assert.Equal(t, dataimport.StateTemplateSelect, m.wizard.State())
	assert.Contains(t, m.View(), "customers.csv")

	m = step(t, m, down)
	assert.Equal(t, "tpl_customers", m.selected().ID)

	m = step(t, m, enter)
	require.NoError(t, m.err)
	assert.Equal(t, dataimport.StateValidateResult, m.wizard.State())
	assert.Contains(t, m.View(), "Ready to import")

	m = step(t, m, enter)
	require.NoError(t, m.err)
	assert.True(t, m.Completed())
	assert.Contains(t, m.View(), "Imported 2 of 2 rows")

	res, err := m.Result()
	require.NoError(t, err)
	assert.Equal(t, "imp_1", res.ID)
	assert.Equal(t, 1, imp.calls)
	assert.Contains(t, stages, dataimport.StageImporting)

	_, cmd := m.Update(enter)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestWizardModel_InvalidRowsBlockImport(t *testing.T) {
	imp := &stubImporter{}
	m := load(t, newModel(t, "Name,Email\nAsha,\n", imp))

	m = step(t, m, down)
	m = step(t, m, enter)
	require.Equal(t, dataimport.StateValidateResult, m.wizard.State())
	assert.Contains(t, m.View(), "Import is blocked")
	assert.Contains(t, m.View(), "row 1: Email is required")

	m = step(t, m, enter)
	assert.True(t, errors.HasCode(m.err, errors.ErrCodeImportBlocked))
	assert.Zero(t, imp.calls)
}

func TestWizardModel_LoadFailureStaysOnUpload(t *testing.T) {
	w := dataimport.NewWizard(dataimport.NewProcessor(log.Discard()), &stubImporter{}, log.Discard())
	m := NewWizardModel(context.Background(), w, filepath.Join(t.TempDir(), "missing.csv"), dataimport.DefaultOptions(), nil)

	m = load(t, m)
	require.Error(t, m.err)
	assert.Equal(t, dataimport.StateUpload, m.wizard.State())
	assert.Contains(t, m.View(), "could not be loaded")
}

func TestWizardModel_BackAndReset(t *testing.T) {
	m := load(t, newModel(t, "Name,Email\nAsha,asha@example.in\n", &stubImporter{}))

	m = step(t, m, enter)
	require.Equal(t, dataimport.StateValidateResult, m.wizard.State())

	m = step(t, m, esc)
	require.NoError(t, m.err)
	assert.Equal(t, dataimport.StateTemplateSelect, m.wizard.State())

	m = step(t, m, down)
	m = step(t, m, runes("r"))
	assert.Equal(t, 0, m.cursor)
	assert.Equal(t, dataimport.StateTemplateSelect, m.wizard.State(), "reset reloads the same file")
}

func TestWizardModel_KeysIgnoredWhileBusy(t *testing.T) {
	m := newModel(t, "Name\nAsha\n", &stubImporter{})
	require.True(t, m.busy)

	next, cmd := m.Update(enter)
	assert.Nil(t, cmd)
	assert.Equal(t, dataimport.StateUpload, next.(WizardModel).wizard.State())
}

func TestWizardModel_QuitAndProgress(t *testing.T) {
	m := newModel(t, "Name\nAsha\n", &stubImporter{})

	next, _ := m.Update(progressMsg{Stage: dataimport.StageUploading, Percent: 50, Message: "Reading file"})
	m = next.(WizardModel)
	assert.Contains(t, m.View(), "uploading: Reading file")

	next, cmd := m.Update(runes("q"))
	assert.True(t, next.(WizardModel).quitting)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Empty(t, next.(WizardModel).View())
}
