package ux

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testData struct {
	Name  string `json:"name" yaml:"name"`
	Value int    `json:"value" yaml:"value"`
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		wantErr bool
	}{
		{"json format", "json", false},
		{"yaml format", "yaml", false},
		{"text format", "text", false},
		{"empty format defaults to text", "", false},
		{"unknown format", "xml", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFormatter(tt.format, nil)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func format(t *testing.T, name string, data any, opts FormatterOptions) string {
	t.Helper()
	var buf bytes.Buffer
	opts.Writer = &buf
	f, err := NewFormatter(name, &opts)
	require.NoError(t, err)
	require.NoError(t, f.Format(data))
	return buf.String()
}

func TestDocument(t *testing.T) {
	doc := Document{
		Data: testData{Name: "asha", Value: 42},
		Text: Text("Asha has 42"),
	}

	assert.Contains(t, format(t, "json", doc, FormatterOptions{}), `"name": "asha"`)
	assert.Contains(t, format(t, "json", doc, FormatterOptions{Compact: true}), `{"name":"asha","value":42}`)
	assert.Contains(t, format(t, "yaml", doc, FormatterOptions{}), "value: 42")
	assert.Equal(t, "Asha has 42\n", format(t, "text", doc, FormatterOptions{}))
}

func TestTextFormatterRejectsStructs(t *testing.T) {
	f, err := NewFormatter("text", &FormatterOptions{Writer: &bytes.Buffer{}})
	require.NoError(t, err)

	assert.Error(t, f.Format(testData{Name: "x"}))
}

func TestTable(t *testing.T) {
	tbl := &Table{
		Headers: []string{"ID", "NAME"},
		Rows:    [][]string{{"c-1", "Ravi Kumar"}, {"c-2", "Meera Shah"}},
	}

	out := format(t, "text", Document{Data: nil, Text: tbl}, FormatterOptions{NoColor: true})
	assert.True(t, tbl.NoColor)
	for _, want := range []string{"ID", "NAME", "c-1", "Ravi Kumar", "Meera Shah"} {
		assert.Contains(t, out, want)
	}
}

func TestTableEmpty(t *testing.T) {
	assert.Equal(t, "No results.", (&Table{Headers: []string{"ID"}}).String())
	assert.Equal(t, "No customers found.", (&Table{Headers: []string{"ID"}, Empty: "No customers found."}).String())
}

func TestFields(t *testing.T) {
	f := Fields{{"User", "Asha"}, {"Roles", "junior_agent"}}

	assert.Equal(t, "User:   Asha\nRoles:  junior_agent", f.String())
}

func TestSections(t *testing.T) {
	s := Sections{Text("first"), nil, Text(""), Text("second")}

	assert.Equal(t, "first\n\nsecond", s.String())
}
