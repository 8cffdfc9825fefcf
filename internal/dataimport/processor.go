package dataimport

import (
	"bytes"
	"encoding/csv"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"github.com/zeebo/blake3"

	"github.com/agentmitra/portalctl/internal/errors"
	"github.com/agentmitra/portalctl/internal/log"
)

// PreviewRows is how many data rows an ImportFile preview holds.
const PreviewRows = 10

// MIME types recorded on ImportFile.Type.
const (
	MIMECSV  = "text/csv"
	MIMEXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMEXLS  = "application/vnd.ms-excel"
)

// Options control parsing. Delimiter and Encoding apply to delimited text;
// SheetName and Range apply to spreadsheets.
type Options struct {
	Delimiter  rune
	HasHeaders bool
	Encoding   string
	SkipRows   int
	SheetName  string
	// Range limits a spreadsheet to a cell rectangle such as "A1:F200".
	Range string
}

// DefaultOptions parses comma-separated UTF-8 with a header row.
func DefaultOptions() Options {
	return Options{Delimiter: ',', HasHeaders: true, Encoding: "utf-8"}
}

// ParseDelimiter accepts the delimiters the portal supports, spelled as the
// character itself or by name.
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case ",", "comma", "":
		return ',', nil
	case ";", "semicolon":
		return ';', nil
	case "\t", `\t`, "tab":
		return '\t', nil
	case "|", "pipe":
		return '|', nil
	}
	return 0, fmt.Errorf("unsupported delimiter %q (use , ; tab or |)", s)
}

// Processor turns uploaded files into ImportFiles.
type Processor struct {
	logger *log.Logger
	now    func() time.Time
	newID  func() string
}

// NewProcessor creates a processor. logger may be nil.
func NewProcessor(logger *log.Logger) *Processor {
	if logger == nil {
		logger = log.DefaultLogger()
	}
	return &Processor{
		logger: logger,
		now:    time.Now,
		newID: func() string {
			return fmt.Sprintf("file_%d_%s", time.Now().UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:9])
		},
	}
}

// ProcessFile opens path and parses it by extension.
func (p *Processor) ProcessFile(path string, opts Options) (*ImportFile, error) {
	f, err := os.Open(path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, errors.NewFileNotFoundError(path)
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("failed to open %s", path), err)
	}
	defer f.Close()

	return p.Process(filepath.Base(path), f, opts)
}

// Process parses the contents of r, dispatching on the extension of name:
// .xlsx, .xlsm and .xls go to the spreadsheet parser and .csv to the
// delimited-text parser. Anything else fails with an unsupported type error
// before r is read.
func (p *Processor) Process(name string, r io.Reader, opts Options) (*ImportFile, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")

	var (
		parse func([]byte, Options) ([][]string, error)
		mime  string
		kind  string
	)
	switch ext {
	case "xlsx", "xlsm":
		parse, mime, kind = parseSpreadsheet, MIMEXLSX, "Excel"
	case "xls":
		parse, mime, kind = parseSpreadsheet, MIMEXLS, "Excel"
	case "csv":
		parse, mime, kind = parseDelimited, MIMECSV, "CSV"
	default:
		return nil, errors.NewUnsupportedFileTypeError(ext)
	}

	content, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("Failed to read the %s file", kind), err)
	}

	rows, err := parse(content, opts)
	if err != nil {
		var pe *errors.PortalError
		if stderrors.As(err, &pe) {
			pe.Message = fmt.Sprintf("Failed to process %s file: %s", kind, pe.Message)
			return nil, pe
		}
		return nil, errors.Wrap(errors.ErrCodeImportParseFailed, fmt.Sprintf("Failed to process %s file", kind), err)
	}

	headers, data := splitHeaders(skip(rows, opts.SkipRows), opts.HasHeaders)

	sum := blake3.Sum256(content)
	file := &ImportFile{
		ID:          p.newID(),
		Name:        name,
		Size:        int64(len(content)),
		Type:        mime,
		Fingerprint: hex.EncodeToString(sum[:]),
		Headers:     headers,
		Data:        data,
		Preview:     data[:min(PreviewRows, len(data))],
		UploadTime:  p.now(),
		Status:      StatusUploaded,
	}

	p.logger.Debug("file processed",
		"file", name,
		"type", kind,
		"columns", len(headers),
		"rows", len(data))
	return file, nil
}

func skip(rows [][]string, n int) [][]string {
	if n <= 0 {
		return rows
	}
	if n >= len(rows) {
		return nil
	}
	return rows[n:]
}

// splitHeaders takes row 0 as the header row when hasHeaders is set,
// otherwise it names columns "Column 1".."Column n" after the widest row.
func splitHeaders(rows [][]string, hasHeaders bool) ([]string, []Row) {
	if len(rows) == 0 {
		return []string{}, []Row{}
	}

	var headers []string
	body := rows
	if hasHeaders {
		headers = make([]string, len(rows[0]))
		for i, h := range rows[0] {
			headers[i] = strings.TrimSpace(h)
		}
		body = rows[1:]
	} else {
		width := 0
		for _, r := range rows {
			width = max(width, len(r))
		}
		headers = make([]string, width)
		for i := range headers {
			headers[i] = fmt.Sprintf("Column %d", i+1)
		}
	}

	data := make([]Row, len(body))
	for i, r := range body {
		data[i] = Row(r)
	}
	return headers, data
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// parseDelimited reads standard CSV quoting: a quoted field may contain the
// delimiter, newlines and doubled quotes. Blank lines are dropped and every
// cell is trimmed.
func parseDelimited(content []byte, opts Options) ([][]string, error) {
	switch strings.ToLower(opts.Encoding) {
	case "", "utf-8", "utf8":
	default:
		return nil, errors.New(errors.ErrCodeImportParseFailed, fmt.Sprintf("unsupported encoding %q", opts.Encoding)).
			WithSuggestion("Save the file as UTF-8 and try again")
	}

	content = bytes.TrimPrefix(content, utf8BOM)
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, errors.New(errors.ErrCodeImportEmptyFile, "CSV file is empty")
	}

	delim := opts.Delimiter
	if delim == 0 {
		delim = ','
	}

	reader := csv.NewReader(bytes.NewReader(content))
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}
		rows = append(rows, record)
	}

	if len(rows) == 0 {
		return nil, errors.New(errors.ErrCodeImportEmptyFile, "CSV file is empty")
	}
	return rows, nil
}

// parseSpreadsheet reads one sheet, the first unless opts.SheetName is set.
// Rows whose cells are all blank are dropped.
func parseSpreadsheet(content []byte, opts Options) ([][]string, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	sheet := opts.SheetName
	if sheet == "" {
		sheets := wb.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New(errors.ErrCodeImportSheetNotFound, "workbook has no sheets")
		}
		sheet = sheets[0]
	} else if idx, err := wb.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, errors.New(errors.ErrCodeImportSheetNotFound, fmt.Sprintf("Sheet %q not found in the Excel file", sheet)).
			WithSuggestion(fmt.Sprintf("Available sheets: %s", strings.Join(wb.GetSheetList(), ", ")))
	}

	rows, err := wb.GetRows(sheet)
	if err != nil {
		return nil, err
	}

	if opts.Range != "" {
		rows, err = cropRange(rows, opts.Range)
		if err != nil {
			return nil, err
		}
	}

	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		blank := true
		for i := range r {
			if strings.TrimSpace(r[i]) != "" {
				blank = false
				break
			}
		}
		if !blank {
			out = append(out, r)
		}
	}
	return out, nil
}

// cropRange keeps the cells inside an "A1:D20" rectangle.
func cropRange(rows [][]string, rng string) ([][]string, error) {
	from, to, ok := strings.Cut(rng, ":")
	if !ok {
		return nil, errors.New(errors.ErrCodeImportParseFailed, fmt.Sprintf("invalid range %q, expected A1:D20", rng))
	}
	c1, r1, err := excelize.CellNameToCoordinates(from)
	if err != nil {
		return nil, err
	}
	c2, r2, err := excelize.CellNameToCoordinates(to)
	if err != nil {
		return nil, err
	}
	if c2 < c1 {
		c1, c2 = c2, c1
	}
	if r2 < r1 {
		r1, r2 = r2, r1
	}

	var out [][]string
	for ri := r1 - 1; ri < r2 && ri < len(rows); ri++ {
		row := rows[ri]
		cells := make([]string, 0, c2-c1+1)
		for ci := c1 - 1; ci < c2; ci++ {
			if ci < len(row) {
				cells = append(cells, row[ci])
			} else {
				cells = append(cells, "")
			}
		}
		out = append(out, cells)
	}
	return out, nil
}
