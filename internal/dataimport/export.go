package dataimport

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/agentmitra/portalctl/internal/errors"
)

// ExportSheet is the sheet name used by ExportXLSX.
const ExportSheet = "Data"

// ExportCSV writes headers then data. Data cells are always quoted with
// embedded quotes doubled; headers are quoted only when they need it.
func ExportCSV(w io.Writer, headers []string, data []Row) error {
	bw := bufio.NewWriter(w)

	for i, h := range headers {
		if i > 0 {
			bw.WriteByte(',')
		}
		if strings.ContainsAny(h, ",\"\n\r") {
			bw.WriteString(quote(h))
		} else {
			bw.WriteString(h)
		}
	}

	for _, row := range data {
		bw.WriteByte('\n')
		for i, cell := range row {
			if i > 0 {
				bw.WriteByte(',')
			}
			bw.WriteString(quote(cell))
		}
	}

	if err := bw.Flush(); err != nil {
		return errors.Wrap(errors.ErrCodeImportExportFailed, "failed to write CSV", err)
	}
	return nil
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// ExportXLSX writes a workbook with a single "Data" sheet.
func ExportXLSX(w io.Writer, headers []string, data []Row) error {
	wb := excelize.NewFile()
	defer wb.Close()

	if err := wb.SetSheetName(wb.GetSheetName(0), ExportSheet); err != nil {
		return errors.Wrap(errors.ErrCodeImportExportFailed, "failed to create sheet", err)
	}

	if err := setRow(wb, 1, headers); err != nil {
		return err
	}
	for i, row := range data {
		if err := setRow(wb, i+2, row); err != nil {
			return err
		}
	}

	if _, err := wb.WriteTo(w); err != nil {
		return errors.Wrap(errors.ErrCodeImportExportFailed, "failed to write workbook", err)
	}
	return nil
}

func setRow(wb *excelize.File, n int, cells []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return errors.Wrap(errors.ErrCodeImportExportFailed, fmt.Sprintf("invalid row %d", n), err)
	}
	values := make([]any, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	if err := wb.SetSheetRow(ExportSheet, cell, &values); err != nil {
		return errors.Wrap(errors.ErrCodeImportExportFailed, fmt.Sprintf("failed to write row %d", n), err)
	}
	return nil
}
