package dataimport

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentmitra/portalctl/internal/errors"
	"github.com/agentmitra/portalctl/internal/log"
)

// State is a step of the import wizard.
type State int

const (
	StateUpload State = iota
	StateTemplateSelect
	StateValidateResult
	StateImportResult
)

var stateNames = [...]string{"upload", "template_select", "validate_result", "import_result"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Action is something that moves the wizard.
type Action string

const (
	ActionLoadFile Action = "load_file"
	ActionValidate Action = "validate"
	ActionImport   Action = "import"
	ActionBack     Action = "back"
)

// transitions is the complete forward-and-back table. Forward moves go one
// step at a time; Back goes one step back except from StateImportResult,
// which can only be left by Reset.
var transitions = map[State]map[Action]State{
	StateUpload: {
		ActionLoadFile: StateTemplateSelect,
	},
	StateTemplateSelect: {
		ActionValidate: StateValidateResult,
		ActionBack:     StateUpload,
	},
	StateValidateResult: {
		ActionImport: StateImportResult,
		ActionBack:   StateTemplateSelect,
	},
	StateImportResult: {},
}

// Next returns the state action leads to from s.
func Next(s State, a Action) (State, bool) {
	to, ok := transitions[s][a]
	return to, ok
}

// Sentinel errors; compare with errors.Is.
var (
	ErrInvalidTransition = errors.New(errors.ErrCodeImportInvalidState, "")
	ErrImportBlocked     = errors.New(errors.ErrCodeImportBlocked, "")
	ErrImportInProgress  = errors.New(errors.ErrCodeImportInProgress, "")
)

func invalidTransition(s State, a Action) error {
	return errors.New(errors.ErrCodeImportInvalidState, fmt.Sprintf("cannot %s from %s", a, s))
}

// Importer performs the remote import.
type Importer interface {
	ImportData(ctx context.Context, req Request) (*Response, error)
}

// Snapshot is a consistent copy of the wizard's state.
type Snapshot struct {
	State     State
	File      *ImportFile
	Template  *ImportTemplate
	Result    *ImportResult
	Importing bool
}

// Wizard walks one file through upload, template selection, validation and
// import. It is safe for concurrent use; at most one Import runs at a time.
type Wizard struct {
	processor *Processor
	importer  Importer
	logger    *log.Logger
	now       func() time.Time

	mu         sync.Mutex
	state      State
	file       *ImportFile
	template   *ImportTemplate
	result     *ImportResult
	generation uint64
	observer   func(Progress)

	importing atomic.Bool
}

// NewWizard creates a wizard in StateUpload.
func NewWizard(processor *Processor, importer Importer, logger *log.Logger) *Wizard {
	if logger == nil {
		logger = log.DefaultLogger()
	}
	return &Wizard{
		processor: processor,
		importer:  importer,
		logger:    logger,
		now:       time.Now,
	}
}

// OnProgress registers fn to receive progress snapshots. fn runs on the
// goroutine doing the work.
func (w *Wizard) OnProgress(fn func(Progress)) {
	w.mu.Lock()
	w.observer = fn
	w.mu.Unlock()
}

func (w *Wizard) emit(p Progress) {
	w.mu.Lock()
	fn := w.observer
	w.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

// Snapshot returns the current state.
func (w *Wizard) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Snapshot{
		State:     w.state,
		File:      w.file,
		Template:  w.template,
		Result:    w.result,
		Importing: w.importing.Load(),
	}
}

// State returns the current step.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// LoadFile parses path and moves to template selection. On failure the
// wizard stays in StateUpload and the parse error is returned.
func (w *Wizard) LoadFile(path string, opts Options) (*ImportFile, error) {
	return w.load(func() (*ImportFile, error) { return w.processor.ProcessFile(path, opts) })
}

// LoadReader is LoadFile for content that is not on disk.
func (w *Wizard) LoadReader(name string, r io.Reader, opts Options) (*ImportFile, error) {
	return w.load(func() (*ImportFile, error) { return w.processor.Process(name, r, opts) })
}

func (w *Wizard) load(parse func() (*ImportFile, error)) (*ImportFile, error) {
	w.mu.Lock()
	if _, ok := Next(w.state, ActionLoadFile); !ok {
		defer w.mu.Unlock()
		return nil, invalidTransition(w.state, ActionLoadFile)
	}
	w.mu.Unlock()

	w.emit(Progress{Stage: StageUploading, Message: "Reading file"})
	file, err := parse()
	if err != nil {
		w.logger.WithError(err).Warn("file rejected")
		return nil, err
	}

	w.mu.Lock()
	// A Reset or second load may have raced us; only the upload step accepts files.
	if w.state != StateUpload {
		defer w.mu.Unlock()
		return nil, invalidTransition(w.state, ActionLoadFile)
	}
	w.file = file
	w.template = nil
	w.result = nil
	w.state = StateTemplateSelect
	w.mu.Unlock()

	w.emit(Progress{Stage: StageUploading, Percent: 100, Message: fmt.Sprintf("Loaded %d rows", len(file.Data)), TotalRows: len(file.Data)})
	return file, nil
}

// SelectTemplate chooses the template used for validation and import.
// nil means no template: validation then trivially passes.
func (w *Wizard) SelectTemplate(t *ImportTemplate) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateTemplateSelect {
		return errors.New(errors.ErrCodeImportInvalidState, fmt.Sprintf("cannot select a template in %s", w.state))
	}
	w.template = t
	return nil
}

// Validate checks the loaded file against the selected template's rules and
// moves to StateValidateResult. The result's status is validated when no
// errors were found and failed otherwise.
func (w *Wizard) Validate() (*ImportResult, error) {
	w.mu.Lock()
	to, ok := Next(w.state, ActionValidate)
	if !ok {
		defer w.mu.Unlock()
		return nil, invalidTransition(w.state, ActionValidate)
	}
	file, tmpl := w.file, w.template
	w.mu.Unlock()

	total := len(file.Data)
	w.emit(Progress{Stage: StageValidating, Message: "Validating rows", TotalRows: total})

	start := w.now()
	var rules []ValidationRule
	templateID := ""
	if tmpl != nil {
		rules = tmpl.ValidationRules
		templateID = tmpl.ID
	}
	result := Summarize(file, templateID, ValidateData(file.Data, file.Headers, rules))
	result.StartTime = start
	end := w.now()
	result.EndTime = &end
	result.Duration = end.Sub(start).Milliseconds()

	w.emit(Progress{
		Stage:      StageValidating,
		Percent:    100,
		Message:    fmt.Sprintf("%d valid, %d invalid", result.ValidRows, result.InvalidRows),
		CurrentRow: total,
		TotalRows:  total,
	})

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateTemplateSelect || w.file != file {
		return nil, invalidTransition(w.state, ActionValidate)
	}
	w.result = &result
	w.state = to
	return &result, nil
}

// CanImport reports whether Import would be attempted right now.
func (w *Wizard) CanImport() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == StateValidateResult && w.result != nil && w.result.InvalidRows == 0 && !w.importing.Load()
}

// Import sends every row with the template's mappings and rules to the
// server. It does nothing and returns ErrImportBlocked while the
// validation result has invalid rows, and returns ErrImportInProgress when
// another Import on this wizard has not returned yet. On success the
// server's result replaces the local one and the wizard moves to
// StateImportResult; on failure it stays in StateValidateResult.
func (w *Wizard) Import(ctx context.Context) (*ImportResult, error) {
	w.mu.Lock()
	to, ok := Next(w.state, ActionImport)
	if !ok {
		defer w.mu.Unlock()
		return nil, invalidTransition(w.state, ActionImport)
	}
	if w.result == nil || w.result.InvalidRows > 0 {
		defer w.mu.Unlock()
		invalid := 0
		if w.result != nil {
			invalid = w.result.InvalidRows
		}
		return nil, errors.New(errors.ErrCodeImportBlocked, fmt.Sprintf("%d rows failed validation", invalid)).
			WithSuggestion("Fix the listed rows and load the file again")
	}
	if !w.importing.CompareAndSwap(false, true) {
		w.mu.Unlock()
		return nil, errors.New(errors.ErrCodeImportInProgress, "an import is already running")
	}
	defer w.importing.Store(false)

	gen := w.generation
	req := Request{
		FileID:  w.file.ID,
		Data:    w.file.Data,
		Headers: w.file.Headers,
	}
	if w.template != nil {
		req.TemplateID = w.template.ID
		req.Mappings = w.template.ColumnMappings
		req.ValidationRules = w.template.ValidationRules
	}
	w.mu.Unlock()

	total := len(req.Data)
	w.emit(Progress{Stage: StageImporting, Message: fmt.Sprintf("Importing %d rows", total), TotalRows: total})

	resp, err := w.importer.ImportData(ctx, req)
	if err != nil {
		w.logger.WithError(err).Error("import failed", "file", req.FileID)
		return nil, err
	}

	result := resp.Results
	if result.ID == "" {
		result.ID = resp.ImportID
	}
	if result.Status == "" {
		result.Status = resp.Status
	}

	w.mu.Lock()
	if w.generation != gen || w.state != StateValidateResult {
		w.mu.Unlock()
		return nil, errors.New(errors.ErrCodeImportInvalidState, "wizard was reset while the import was running")
	}
	w.result = &result
	w.state = to
	w.mu.Unlock()

	w.logger.Info("import finished",
		"import_id", result.ID,
		"status", string(result.Status),
		"imported_rows", result.ImportedRows)
	w.emit(Progress{Stage: StageImporting, Percent: 100, Message: fmt.Sprintf("Imported %d of %d rows", result.ImportedRows, total), CurrentRow: total, TotalRows: total})
	return &result, nil
}

// Back moves one step back. It is refused from StateUpload, from
// StateImportResult and while an import is running.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.importing.Load() {
		return errors.New(errors.ErrCodeImportInProgress, "an import is already running")
	}
	to, ok := Next(w.state, ActionBack)
	if !ok {
		return invalidTransition(w.state, ActionBack)
	}
	if w.state == StateValidateResult {
		w.result = nil
	}
	w.state = to
	return nil
}

// Reset discards the file, template and result and returns to StateUpload.
// An import still in flight completes but its result is dropped.
func (w *Wizard) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.generation++
	w.state = StateUpload
	w.file = nil
	w.template = nil
	w.result = nil
}
