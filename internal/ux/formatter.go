// Package ux renders command output as text tables, JSON or YAML.
package ux

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"
)

// Formatter writes one result to the output.
type Formatter interface {
	Format(data any) error
}

// FormatterOptions contains configuration for formatters
type FormatterOptions struct {
	// Writer is where output is written (defaults to os.Stdout)
	Writer io.Writer
	// NoColor disables styling in text tables
	NoColor bool
	// Compact disables indentation for JSON/YAML
	Compact bool
}

// NewFormatter creates a formatter based on the format string
func NewFormatter(format string, opts *FormatterOptions) (Formatter, error) {
	if opts == nil {
		opts = &FormatterOptions{}
	}
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}

	switch format {
	case "json":
		return &JSONFormatter{opts: opts}, nil
	case "yaml":
		return &YAMLFormatter{opts: opts}, nil
	case "text", "":
		return &TextFormatter{opts: opts}, nil
	default:
		return nil, fmt.Errorf("unknown format: %s (supported: text, json, yaml)", format)
	}
}

// Document pairs the structured result of a command with its text form.
// JSON and YAML encode Data; text prints Text.
type Document struct {
	Data any
	Text fmt.Stringer
}

func payload(data any) any {
	if d, ok := data.(Document); ok {
		return d.Data
	}
	return data
}

// JSONFormatter formats output as JSON
type JSONFormatter struct {
	opts *FormatterOptions
}

func (f *JSONFormatter) Format(data any) error {
	encoder := json.NewEncoder(f.opts.Writer)
	if !f.opts.Compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(payload(data))
}

// YAMLFormatter formats output as YAML
type YAMLFormatter struct {
	opts *FormatterOptions
}

func (f *YAMLFormatter) Format(data any) error {
	encoder := yaml.NewEncoder(f.opts.Writer)
	if !f.opts.Compact {
		encoder.SetIndent(2)
	}
	defer encoder.Close()
	return encoder.Encode(payload(data))
}

// TextFormatter formats output as human-readable text
type TextFormatter struct {
	opts *FormatterOptions
}

func (f *TextFormatter) Format(data any) error {
	if d, ok := data.(Document); ok {
		if d.Text == nil {
			return nil
		}
		data = d.Text
	}
	if t, ok := data.(*Table); ok && f.opts.NoColor {
		t.NoColor = true
	}

	switch v := data.(type) {
	case string:
		_, err := fmt.Fprintln(f.opts.Writer, v)
		return err
	case fmt.Stringer:
		_, err := fmt.Fprintln(f.opts.Writer, v.String())
		return err
	default:
		return fmt.Errorf("text formatter requires data to implement String() method or be a primitive type")
	}
}

// Table is a bordered text table.
type Table struct {
	Headers []string
	Rows    [][]string
	// Empty is printed instead of a table without rows.
	Empty   string
	NoColor bool
}

func (t *Table) String() string {
	if len(t.Rows) == 0 {
		if t.Empty != "" {
			return t.Empty
		}
		return "No results."
	}
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(t.Headers...).
		Rows(t.Rows...)
	if !t.NoColor {
		header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
		cell := lipgloss.NewStyle().Padding(0, 1)
		tbl = tbl.StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
	}
	return tbl.String()
}

// Fields renders aligned "Key: value" lines in order.
type Fields [][2]string

func (f Fields) String() string {
	width := 0
	for _, kv := range f {
		width = max(width, len(kv[0]))
	}
	var b strings.Builder
	for i, kv := range f {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%-*s  %s", width+1, kv[0]+":", kv[1])
	}
	return b.String()
}

// Sections joins several blocks with blank lines.
type Sections []fmt.Stringer

func (s Sections) String() string {
	parts := make([]string, 0, len(s))
	for _, sec := range s {
		if sec == nil {
			continue
		}
		if str := sec.String(); str != "" {
			parts = append(parts, str)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Text adapts a plain string to fmt.Stringer.
type Text string

func (t Text) String() string { return string(t) }

var (
	_ Formatter = (*JSONFormatter)(nil)
	_ Formatter = (*YAMLFormatter)(nil)
	_ Formatter = (*TextFormatter)(nil)
)
