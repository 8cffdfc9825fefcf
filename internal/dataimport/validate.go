package dataimport

import (
	"slices"
	"strings"
)

// ValidationResult is the outcome of ValidateData. Problems are data, not
// errors: callers render them and decide what to do.
type ValidationResult struct {
	Valid  bool          `json:"isValid"`
	Errors []ImportError `json:"errors"`
}

// ValidateData checks data against the required rules in rules. Other rule
// kinds are left to the server. A rule whose field is not among headers is
// skipped. Each empty or whitespace-only cell yields one error whose Row is
// the 1-based index into data.
func ValidateData(data []Row, headers []string, rules []ValidationRule) ValidationResult {
	errs := []ImportError{}

	for _, rule := range rules {
		if rule.Rule != RuleRequired {
			continue
		}
		col := slices.Index(headers, rule.Field)
		if col < 0 {
			continue
		}

		msg := rule.Message
		if msg == "" {
			msg = rule.Field + " is required"
		}

		for i, row := range data {
			if col < len(row) && strings.TrimSpace(row[col]) != "" {
				continue
			}
			errs = append(errs, ImportError{
				Row:    i + 1,
				Column: rule.Field,
				Field:  rule.Field,
				Error:  msg,
			})
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// Summarize builds an ImportResult from a validation run. A row with several
// bad cells counts once.
func Summarize(file *ImportFile, templateID string, v ValidationResult) ImportResult {
	bad := make(map[int]struct{}, len(v.Errors))
	for _, e := range v.Errors {
		bad[e.Row] = struct{}{}
	}

	total := len(file.Data)
	status := StatusValidated
	if !v.Valid {
		status = StatusFailed
	}
	return ImportResult{
		FileID:      file.ID,
		TemplateID:  templateID,
		TotalRows:   total,
		ValidRows:   total - len(bad),
		InvalidRows: len(bad),
		Errors:      v.Errors,
		Status:      status,
	}
}
