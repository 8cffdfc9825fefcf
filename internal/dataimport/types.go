package dataimport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// EntityType is the kind of record an import creates.
type EntityType string

const (
	EntityCustomers EntityType = "customers"
	EntityPolicies  EntityType = "policies"
	EntityAgents    EntityType = "agents"
	EntityClaims    EntityType = "claims"
)

// DataType is the declared type of a mapped column.
type DataType string

const (
	DataString   DataType = "string"
	DataNumber   DataType = "number"
	DataDate     DataType = "date"
	DataBoolean  DataType = "boolean"
	DataEmail    DataType = "email"
	DataPhone    DataType = "phone"
	DataCurrency DataType = "currency"
)

// RuleKind names a validation rule. Only RuleRequired is checked locally;
// the server enforces the rest.
type RuleKind string

const (
	RuleRequired  RuleKind = "required"
	RuleEmail     RuleKind = "email"
	RulePhone     RuleKind = "phone"
	RuleMinLength RuleKind = "minLength"
	RuleMaxLength RuleKind = "maxLength"
	RuleMin       RuleKind = "min"
	RuleMax       RuleKind = "max"
	RulePattern   RuleKind = "pattern"
	RuleUnique    RuleKind = "unique"
	RuleExists    RuleKind = "exists"
)

// Status tracks a file or import through its lifecycle.
type Status string

const (
	StatusUploading  Status = "uploading"
	StatusUploaded   Status = "uploaded"
	StatusValidating Status = "validating"
	StatusValidated  Status = "validated"
	StatusImporting  Status = "importing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ColumnMapping maps a spreadsheet column onto an entity field.
type ColumnMapping struct {
	SourceColumn   string   `json:"sourceColumn" yaml:"sourceColumn"`
	TargetField    string   `json:"targetField" yaml:"targetField"`
	DataType       DataType `json:"dataType" yaml:"dataType"`
	Required       bool     `json:"required" yaml:"required"`
	DefaultValue   any      `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	Transformation string   `json:"transformation,omitempty" yaml:"transformation,omitempty"`
}

// ValidationRule is a field-level check declared by a template.
type ValidationRule struct {
	Field   string   `json:"field" yaml:"field"`
	Rule    RuleKind `json:"rule" yaml:"rule"`
	Value   any      `json:"value,omitempty" yaml:"value,omitempty"`
	Message string   `json:"message" yaml:"message"`
}

// ImportTemplate is a server-owned schema for one entity type.
type ImportTemplate struct {
	ID              string           `json:"id" yaml:"id"`
	Name            string           `json:"name" yaml:"name"`
	Description     string           `json:"description" yaml:"description"`
	EntityType      EntityType       `json:"entityType" yaml:"entityType"`
	ColumnMappings  []ColumnMapping  `json:"columnMappings" yaml:"columnMappings"`
	ValidationRules []ValidationRule `json:"validationRules" yaml:"validationRules"`
	CreatedAt       *time.Time       `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt       *time.Time       `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
	CreatedBy       string           `json:"createdBy,omitempty" yaml:"createdBy,omitempty"`
}

// Row is one line of cells. Cells are kept as text; JSON numbers and
// booleans from the server are converted on decode.
type Row []string

// UnmarshalJSON accepts an array of any scalars.
func (r *Row) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Row, len(raw))
	for i, cell := range raw {
		cell = bytes.TrimSpace(cell)
		switch {
		case bytes.Equal(cell, []byte("null")):
			out[i] = ""
		case len(cell) > 0 && cell[0] == '"':
			if err := json.Unmarshal(cell, &out[i]); err != nil {
				return err
			}
		default:
			var v any
			if err := json.Unmarshal(cell, &v); err != nil {
				return err
			}
			out[i] = formatScalar(v)
		}
	}
	*r = out
	return nil
}

func formatScalar(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// ImportFile is a parsed upload. It is never modified after parsing; a new
// file produces a new ImportFile.
type ImportFile struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	Type        string    `json:"type"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Headers     []string  `json:"headers"`
	Data        []Row     `json:"data"`
	Preview     []Row     `json:"preview"`
	UploadTime  time.Time `json:"uploadTime"`
	Status      Status    `json:"status"`
}

// ImportError describes one bad cell. Row is 1-based over data rows.
type ImportError struct {
	Row        int    `json:"row"`
	Column     string `json:"column,omitempty"`
	Field      string `json:"field,omitempty"`
	Value      any    `json:"value,omitempty"`
	Error      string `json:"error"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ImportResult summarizes a validation or import run.
type ImportResult struct {
	ID           string        `json:"id,omitempty"`
	FileID       string        `json:"fileId"`
	TemplateID   string        `json:"templateId,omitempty"`
	TotalRows    int           `json:"totalRows"`
	ValidRows    int           `json:"validRows"`
	InvalidRows  int           `json:"invalidRows"`
	ImportedRows int           `json:"importedRows"`
	Errors       []ImportError `json:"errors"`
	Status       Status        `json:"status"`
	StartTime    time.Time     `json:"startTime"`
	EndTime      *time.Time    `json:"endTime,omitempty"`
	// Duration is in milliseconds, as reported by the server.
	Duration int64 `json:"duration,omitempty"`
}

// Stage is a phase reported through Progress.
type Stage string

const (
	StageUploading  Stage = "uploading"
	StageValidating Stage = "validating"
	StageImporting  Stage = "importing"
)

// Progress is a snapshot emitted while the wizard works.
type Progress struct {
	Stage      Stage  `json:"stage"`
	Percent    int    `json:"progress"`
	Message    string `json:"message"`
	CurrentRow int    `json:"currentRow,omitempty"`
	TotalRows  int    `json:"totalRows,omitempty"`
}

// Request is the body of a remote import call.
type Request struct {
	FileID          string           `json:"fileId"`
	TemplateID      string           `json:"templateId,omitempty"`
	Data            []Row            `json:"data"`
	Headers         []string         `json:"headers"`
	Mappings        []ColumnMapping  `json:"mappings,omitempty"`
	ValidationRules []ValidationRule `json:"validationRules,omitempty"`
}

// Response is the server's answer to an import call.
type Response struct {
	ImportID string        `json:"importId"`
	Status   Status        `json:"status"`
	Results  ImportResult  `json:"results"`
	Errors   []ImportError `json:"errors"`
}

// HistoryItem is one past import.
type HistoryItem struct {
	ID           string     `json:"id"`
	FileName     string     `json:"fileName"`
	TemplateName string     `json:"templateName,omitempty"`
	EntityType   EntityType `json:"entityType"`
	Status       Status     `json:"status"`
	TotalRows    int        `json:"totalRows"`
	ImportedRows int        `json:"importedRows"`
	ErrorCount   int        `json:"errorCount"`
	StartTime    time.Time  `json:"startTime"`
	EndTime      *time.Time `json:"endTime,omitempty"`
	Duration     int64      `json:"duration,omitempty"`
	UploadedBy   string     `json:"uploadedBy"`
}

// EntityField describes a target field the server accepts for an entity.
type EntityField struct {
	Name        string           `json:"name"`
	Label       string           `json:"label"`
	Type        DataType         `json:"type"`
	Required    bool             `json:"required"`
	Description string           `json:"description,omitempty"`
	Validation  []ValidationRule `json:"validation,omitempty"`
}
