package dataimport

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmitra/portalctl/internal/errors"
	"github.com/agentmitra/portalctl/internal/log"
)

type fakeImporter struct {
	mu      sync.Mutex
	calls   []Request
	resp    *Response
	err     error
	release chan struct{}
	started chan struct{}
}

func (f *fakeImporter) ImportData(ctx context.Context, req Request) (*Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.resp, f.err
}

func (f *fakeImporter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var customerTemplate = &ImportTemplate{
	ID:         "tpl_customers",
	Name:       "Customers",
	EntityType: EntityCustomers,
	ColumnMappings: []ColumnMapping{
		{SourceColumn: "Name", TargetField: "full_name", DataType: DataString, Required: true},
	},
	ValidationRules: []ValidationRule{{Field: "Name", Rule: RuleRequired}},
}

func newTestWizard(imp Importer) *Wizard {
	return NewWizard(newTestProcessor(), imp, log.Discard())
}

func loadCSV(t *testing.T, w *Wizard, content string) {
	t.Helper()
	_, err := w.LoadReader("customers.csv", strings.NewReader(content), DefaultOptions())
	require.NoError(t, err)
}

func TestNext(t *testing.T) {
	tests := []struct {
		from   State
		action Action
		want   State
		ok     bool
	}{
		{StateUpload, ActionLoadFile, StateTemplateSelect, true},
		{StateUpload, ActionValidate, 0, false},
		{StateUpload, ActionBack, 0, false},
		{StateTemplateSelect, ActionValidate, StateValidateResult, true},
		{StateTemplateSelect, ActionBack, StateUpload, true},
		{StateTemplateSelect, ActionImport, 0, false},
		{StateValidateResult, ActionImport, StateImportResult, true},
		{StateValidateResult, ActionBack, StateTemplateSelect, true},
		{StateImportResult, ActionBack, 0, false},
		{StateImportResult, ActionLoadFile, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"/"+string(tt.action), func(t *testing.T) {
			got, ok := Next(tt.from, tt.action)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestWizard_HappyPath(t *testing.T) {
	imp := &fakeImporter{resp: &Response{
		ImportID: "imp_9",
		Status:   StatusCompleted,
		Results: ImportResult{
			FileID:       "file_test",
			TotalRows:    2,
			ValidRows:    2,
			ImportedRows: 2,
			Status:       StatusCompleted,
		},
	}}
	w := newTestWizard(imp)

	var progress []Progress
	w.OnProgress(func(p Progress) { progress = append(progress, p) })

	loadCSV(t, w, "Name,Email\nAsha,a@example.com\nRavi,r@example.com\n")
	assert.Equal(t, StateTemplateSelect, w.State())

	require.NoError(t, w.SelectTemplate(customerTemplate))

	v, err := w.Validate()
	require.NoError(t, err)
	assert.Equal(t, StatusValidated, v.Status)
	assert.Equal(t, 0, v.InvalidRows)
	assert.Equal(t, StateValidateResult, w.State())
	assert.True(t, w.CanImport())

	res, err := w.Import(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateImportResult, w.State())
	assert.Equal(t, "imp_9", res.ID)
	assert.Equal(t, 2, res.ImportedRows)
	assert.Equal(t, StatusCompleted, res.Status)

	require.Equal(t, 1, imp.callCount())
	req := imp.calls[0]
	assert.Equal(t, "file_test", req.FileID)
	assert.Equal(t, "tpl_customers", req.TemplateID)
	assert.Equal(t, []string{"Name", "Email"}, req.Headers)
	assert.Len(t, req.Data, 2)
	assert.Equal(t, customerTemplate.ColumnMappings, req.Mappings)

	var stages []Stage
	for _, p := range progress {
		stages = append(stages, p.Stage)
	}
	assert.Contains(t, stages, StageUploading)
	assert.Contains(t, stages, StageValidating)
	assert.Contains(t, stages, StageImporting)
	assert.Equal(t, 100, progress[len(progress)-1].Percent)

	assert.Error(t, w.Back(), "import result can only be left by Reset")
	w.Reset()
	assert.Equal(t, StateUpload, w.State())
	assert.Nil(t, w.Snapshot().File)
}

func TestWizard_LoadFailureStaysInUpload(t *testing.T) {
	w := newTestWizard(&fakeImporter{})

	_, err := w.LoadReader("notes.txt", strings.NewReader("hello"), DefaultOptions())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeImportUnsupportedType, errors.CodeOf(err))
	assert.Equal(t, StateUpload, w.State())

	_, err = w.LoadReader("empty.csv", strings.NewReader(""), DefaultOptions())
	require.Error(t, err)
	assert.Equal(t, StateUpload, w.State())
}

func TestWizard_NoTemplateValidatesTrivially(t *testing.T) {
	w := newTestWizard(&fakeImporter{})
	loadCSV(t, w, "Name\n\n,\n")

	require.NoError(t, w.SelectTemplate(nil))
	v, err := w.Validate()
	require.NoError(t, err)
	assert.Equal(t, StatusValidated, v.Status)
	assert.Empty(t, v.Errors)
}

func TestWizard_ImportBlockedByInvalidRows(t *testing.T) {
	imp := &fakeImporter{resp: &Response{}}
	w := newTestWizard(imp)
	loadCSV(t, w, "Name,Email\n,a@example.com\nRavi,r@example.com\n")
	require.NoError(t, w.SelectTemplate(customerTemplate))

	v, err := w.Validate()
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, v.Status)
	assert.Equal(t, 1, v.InvalidRows)
	assert.Equal(t, 1, v.Errors[0].Row)
	assert.False(t, w.CanImport())

	_, err = w.Import(context.Background())
	assert.True(t, stderrors.Is(err, ErrImportBlocked))
	assert.Equal(t, 0, imp.callCount(), "no request is sent")
	assert.Equal(t, StateValidateResult, w.State())
}

func TestWizard_ImportFailureStaysInValidateResult(t *testing.T) {
	imp := &fakeImporter{err: errors.NewAPIError(422, "Template does not match file")}
	w := newTestWizard(imp)
	loadCSV(t, w, "Name\nAsha\n")
	_, err := w.Validate()
	require.NoError(t, err)

	_, err = w.Import(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Template does not match file")
	assert.Equal(t, StateValidateResult, w.State())
	assert.True(t, w.CanImport(), "user may retry")
}

func TestWizard_ConcurrentImportIsRejected(t *testing.T) {
	imp := &fakeImporter{
		resp:    &Response{ImportID: "imp_1", Results: ImportResult{Status: StatusCompleted}},
		release: make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	w := newTestWizard(imp)
	loadCSV(t, w, "Name\nAsha\n")
	_, err := w.Validate()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := w.Import(context.Background())
		done <- err
	}()

	select {
	case <-imp.started:
	case <-time.After(2 * time.Second):
		t.Fatal("import never started")
	}

	_, err = w.Import(context.Background())
	assert.True(t, stderrors.Is(err, ErrImportInProgress))
	assert.True(t, w.Snapshot().Importing)
	assert.False(t, w.CanImport())
	assert.Error(t, w.Back())

	close(imp.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, imp.callCount())
	assert.Equal(t, StateImportResult, w.State())
}

func TestWizard_ResetDropsInFlightResult(t *testing.T) {
	imp := &fakeImporter{
		resp:    &Response{ImportID: "imp_1"},
		release: make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	w := newTestWizard(imp)
	loadCSV(t, w, "Name\nAsha\n")
	_, err := w.Validate()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := w.Import(context.Background())
		done <- err
	}()
	<-imp.started

	w.Reset()
	close(imp.release)

	err = <-done
	assert.Equal(t, errors.ErrCodeImportInvalidState, errors.CodeOf(err))
	assert.Equal(t, StateUpload, w.State())
	assert.Nil(t, w.Snapshot().Result)
}

func TestWizard_Back(t *testing.T) {
	w := newTestWizard(&fakeImporter{})
	assert.Error(t, w.Back(), "nothing before upload")

	loadCSV(t, w, "Name\nAsha\n")
	_, err := w.Validate()
	require.NoError(t, err)

	require.NoError(t, w.Back())
	assert.Equal(t, StateTemplateSelect, w.State())
	assert.Nil(t, w.Snapshot().Result)

	require.NoError(t, w.Back())
	assert.Equal(t, StateUpload, w.State())

	loadCSV(t, w, "Name\nRavi\n")
	assert.Equal(t, Row{"Ravi"}, w.Snapshot().File.Data[0])
}

func TestWizard_OutOfOrderActions(t *testing.T) {
	w := newTestWizard(&fakeImporter{})

	_, err := w.Validate()
	assert.True(t, stderrors.Is(err, ErrInvalidTransition))

	_, err = w.Import(context.Background())
	assert.True(t, stderrors.Is(err, ErrInvalidTransition))

	assert.Error(t, w.SelectTemplate(customerTemplate))

	loadCSV(t, w, "Name\nAsha\n")
	_, err = w.LoadReader("again.csv", strings.NewReader("Name\nB\n"), DefaultOptions())
	assert.True(t, stderrors.Is(err, ErrInvalidTransition))
}
