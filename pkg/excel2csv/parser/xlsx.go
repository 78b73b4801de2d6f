package parser

import (
	"archive/zip"
	"fmt"
	"io"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/ukaji3/excel2csv-go/pkg/excel2csv/models"
	"github.com/xuri/excelize/v2"
)

// loadXLSX decodes an OOXML package. The returned excelize file backs the
// formula evaluator and must be closed by the caller.
func loadXLSX(ra io.ReaderAt, size int64, name string, log logrus.FieldLogger) (*models.Workbook, *excelize.File, error) {
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnrecognizedFormat, err)
	}
	paths, err := sheetPartPaths(zr)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnrecognizedFormat, err)
	}

	f, err := excelize.OpenReader(io.NewSectionReader(ra, 0, size))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnrecognizedFormat, err)
	}

	wb := &models.Workbook{
		Name:   name,
		Format: models.FormatXLSX,
	}
	for _, sheetName := range f.GetSheetList() {
		path, ok := paths[sheetName]
		if !ok {
			// chart sheets and dialog sheets have no cells
			log.WithField("sheet", sheetName).Debug("no worksheet part, sheet is empty")
			wb.Sheets = append(wb.Sheets, &models.Sheet{Name: sheetName})
			continue
		}
		sheet, err := loadXLSXSheet(zr, f, sheetName, path)
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("%w: sheet %q: %v", ErrUnrecognizedFormat, sheetName, err)
		}
		wb.Sheets = append(wb.Sheets, sheet)
	}

	return wb, f, nil
}

func loadXLSXSheet(zr *zip.Reader, f *excelize.File, sheetName, path string) (*models.Sheet, error) {
	rawRows, err := scanWorksheet(zr, path)
	if err != nil {
		return nil, err
	}

	sheet := &models.Sheet{
		Name: sheetName,
		Rows: make([]*models.Row, 0, len(rawRows)),
	}
	for _, rr := range rawRows {
		row := &models.Row{
			Index: rr.index,
			Cells: make([]*models.Cell, rr.lastCol()+1),
		}
		for _, rc := range rr.cells {
			cell, err := decodeCell(f, sheetName, rc)
			if err != nil {
				return nil, err
			}
			row.Cells[rc.col] = cell
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet, nil
}

// decodeCell maps a stored cell to the model. Shared strings and shared
// formulas are resolved through excelize.
func decodeCell(f *excelize.File, sheetName string, rc rawCell) (*models.Cell, error) {
	cell := &models.Cell{Ref: rc.ref}

	if rc.formula {
		formula, err := f.GetCellFormula(sheetName, rc.ref)
		if err != nil {
			return nil, err
		}
		cell.Kind = models.KindFormula
		cell.Formula = formula
		cell.Cached = cachedResult(rc)
		return cell, nil
	}

	switch rc.typ {
	case "s":
		text, err := f.GetCellValue(sheetName, rc.ref, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, err
		}
		cell.Kind = models.KindText
		cell.Text = text
	case "inlineStr":
		cell.Kind = models.KindText
		cell.Text = rc.inline
	case "str":
		cell.Kind = models.KindText
		cell.Text = rc.value
	case "", "n":
		if rc.value == "" {
			cell.Kind = models.KindBlank
			break
		}
		v, err := strconv.ParseFloat(rc.value, 64)
		if err != nil {
			cell.Kind = models.KindOther
			break
		}
		cell.Kind = models.KindNumeric
		cell.Number = v
	default:
		// b, e, d
		cell.Kind = models.KindOther
	}
	return cell, nil
}

// cachedResult returns the result a spreadsheet application stored with a
// formula cell.
func cachedResult(rc rawCell) *models.Value {
	if !rc.hasValue {
		return nil
	}
	switch rc.typ {
	case "", "n":
		v, err := strconv.ParseFloat(rc.value, 64)
		if err != nil {
			return nil
		}
		return &models.Value{Kind: models.KindNumeric, Number: v}
	case "str":
		return &models.Value{Kind: models.KindText, Text: rc.value}
	default:
		return &models.Value{Kind: models.KindOther}
	}
}
