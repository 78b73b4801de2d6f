package parser

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/richardlehane/mscfb"
	"github.com/sirupsen/logrus"
	"github.com/ukaji3/excel2csv-go/pkg/excel2csv/models"
	"github.com/xuri/excelize/v2"
)

// bofGlobals is the BOF substream type of the workbook globals.
const bofGlobals uint16 = 0x0005

// sheetTypeVBModule is the BOUNDSHEET type of a VBA module, which has no cells.
const sheetTypeVBModule uint8 = 0x06

// boundSheet is a sheet entry of the workbook globals.
type boundSheet struct {
	name   string
	offset int
	kind   uint8
}

// xlsGlobals is what the workbook globals substream contributes to the sheets.
type xlsGlobals struct {
	strings *stringDecoder
	sst     []string
	sheets  []boundSheet
}

// loadXLS decodes the workbook stream of a legacy BIFF5/BIFF8 compound file.
func loadXLS(ra io.ReaderAt, name string, log logrus.FieldLogger) (*models.Workbook, error) {
	stream, err := readWorkbookStream(ra)
	if err != nil {
		return nil, err
	}
	wb, err := decodeWorkbookStream(stream, name)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"file": name, "sheets": len(wb.Sheets)}).Debug("decoded legacy workbook")
	return wb, nil
}

func readWorkbookStream(ra io.ReaderAt) ([]byte, error) {
	doc, err := mscfb.New(ra)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedFormat, err)
	}
	var fallback *mscfb.File
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		switch entry.Name {
		case streamWorkbook:
			return io.ReadAll(entry)
		case streamBook:
			fallback = entry
		}
	}
	if fallback == nil {
		return nil, fmt.Errorf("%w: compound file holds no workbook stream", ErrUnrecognizedFormat)
	}
	return io.ReadAll(fallback)
}

// decodeWorkbookStream decodes a BIFF workbook stream: the globals substream
// first, then each sheet substream at the offset its BOUNDSHEET names.
func decodeWorkbookStream(stream []byte, name string) (*models.Workbook, error) {
	r := &recordReader{stream: stream}
	globals, err := readGlobals(r)
	if err != nil {
		return nil, err
	}

	wb := &models.Workbook{
		Name:   name,
		Format: models.FormatXLS,
	}
	for _, bs := range globals.sheets {
		if bs.kind == sheetTypeVBModule {
			continue
		}
		sheet, err := readSheet(r, globals, bs)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", bs.name, err)
		}
		wb.Sheets = append(wb.Sheets, sheet)
	}
	return wb, nil
}

func readGlobals(r *recordReader) (*xlsGlobals, error) {
	bof, err := r.next()
	if err != nil || bof.typ != recBOF || len(bof.data) < 4 {
		return nil, fmt.Errorf("%w: workbook stream does not start with BOF", ErrUnrecognizedFormat)
	}
	version := binary.LittleEndian.Uint16(bof.data)
	if version != biff8 && version != biff5 {
		return nil, fmt.Errorf("%w: BIFF version 0x%04X", ErrUnrecognizedFormat, version)
	}
	if binary.LittleEndian.Uint16(bof.data[2:]) != bofGlobals {
		return nil, fmt.Errorf("%w: workbook stream does not start with globals", ErrUnrecognizedFormat)
	}

	g := &xlsGlobals{strings: newStringDecoder(version)}
	for {
		rec, err := r.next()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: globals substream has no EOF", ErrUnrecognizedFormat)
		}
		if err != nil {
			return nil, err
		}

		switch rec.typ {
		case recEOF:
			return g, nil
		case recFilePass:
			return nil, ErrEncryptedWorkbook
		case recCodePage:
			if len(rec.data) >= 2 {
				g.strings.setCodePage(binary.LittleEndian.Uint16(rec.data))
			}
		case recSST:
			if g.sst, err = parseSST(rec); err != nil {
				return nil, err
			}
		case recBoundSheet:
			if len(rec.data) < 6 {
				return nil, truncated(rec)
			}
			sheetName, err := g.strings.short(rec.data[6:])
			if err != nil {
				return nil, truncated(rec)
			}
			g.sheets = append(g.sheets, boundSheet{
				name:   sheetName,
				offset: int(binary.LittleEndian.Uint32(rec.data)),
				kind:   rec.data[5],
			})
		}
	}
}

// sheetBuilder collects the cells of one sheet before they are laid out in rows.
type sheetBuilder struct {
	rows map[int]map[int]*models.Cell
}

func (b *sheetBuilder) touch(row int) map[int]*models.Cell {
	cells, ok := b.rows[row]
	if !ok {
		cells = make(map[int]*models.Cell)
		b.rows[row] = cells
	}
	return cells
}

func (b *sheetBuilder) set(row, col int, cell *models.Cell) {
	cell.Ref, _ = excelize.CoordinatesToCellName(col+1, row+1)
	b.touch(row)[col] = cell
}

func (b *sheetBuilder) build(name string) *models.Sheet {
	indexes := make([]int, 0, len(b.rows))
	for index := range b.rows {
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)

	sheet := &models.Sheet{Name: name, Rows: make([]*models.Row, 0, len(indexes))}
	for _, index := range indexes {
		cells := b.rows[index]
		last := -1
		for col := range cells {
			last = max(last, col)
		}
		row := &models.Row{Index: index, Cells: make([]*models.Cell, last+1)}
		for col, cell := range cells {
			row.Cells[col] = cell
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet
}

// cellHeader reads the row and column every cell record starts with.
func cellHeader(rec record, size int) (row, col int, err error) {
	if len(rec.data) < size {
		return 0, 0, truncated(rec)
	}
	return int(binary.LittleEndian.Uint16(rec.data)), int(binary.LittleEndian.Uint16(rec.data[2:])), nil
}

func readSheet(r *recordReader, g *xlsGlobals, bs boundSheet) (*models.Sheet, error) {
	if err := r.seek(bs.offset); err != nil {
		return nil, err
	}
	bof, err := r.next()
	if err != nil || bof.typ != recBOF {
		return nil, fmt.Errorf("%w: sheet substream does not start with BOF", ErrUnrecognizedFormat)
	}

	b := &sheetBuilder{rows: make(map[int]map[int]*models.Cell)}
	// a FORMULA with a string result is followed by a STRING record
	var pending *models.Cell
	// charts embedded in a worksheet are nested BOF/EOF substreams
	depth := 1
	for depth > 0 {
		rec, err := r.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch rec.typ {
		case recBOF:
			depth++
			continue
		case recEOF:
			depth--
			continue
		}
		if depth > 1 {
			continue
		}
		if err := decodeSheetRecord(rec, g, b, &pending); err != nil {
			return nil, err
		}
	}
	return b.build(bs.name), nil
}

func decodeSheetRecord(rec record, g *xlsGlobals, b *sheetBuilder, pending **models.Cell) error {
	switch rec.typ {
	case recRow:
		if len(rec.data) < 2 {
			return truncated(rec)
		}
		b.touch(int(binary.LittleEndian.Uint16(rec.data)))

	case recNumber:
		row, col, err := cellHeader(rec, 14)
		if err != nil {
			return err
		}
		v := math.Float64frombits(binary.LittleEndian.Uint64(rec.data[6:]))
		b.set(row, col, &models.Cell{Kind: models.KindNumeric, Number: v})

	case recRK:
		row, col, err := cellHeader(rec, 10)
		if err != nil {
			return err
		}
		v := decodeRK(binary.LittleEndian.Uint32(rec.data[6:]))
		b.set(row, col, &models.Cell{Kind: models.KindNumeric, Number: v})

	case recMulRK:
		row, first, err := cellHeader(rec, 6)
		if err != nil {
			return err
		}
		n := (len(rec.data) - 6) / 6
		for i := 0; i < n; i++ {
			v := decodeRK(binary.LittleEndian.Uint32(rec.data[4+i*6+2:]))
			b.set(row, first+i, &models.Cell{Kind: models.KindNumeric, Number: v})
		}

	case recBlank:
		row, col, err := cellHeader(rec, 6)
		if err != nil {
			return err
		}
		b.set(row, col, &models.Cell{Kind: models.KindBlank})

	case recMulBlank:
		row, first, err := cellHeader(rec, 6)
		if err != nil {
			return err
		}
		n := (len(rec.data) - 6) / 2
		for i := 0; i < n; i++ {
			b.set(row, first+i, &models.Cell{Kind: models.KindBlank})
		}

	case recBoolErr:
		row, col, err := cellHeader(rec, 8)
		if err != nil {
			return err
		}
		b.set(row, col, &models.Cell{Kind: models.KindOther})

	case recLabelSST:
		row, col, err := cellHeader(rec, 10)
		if err != nil {
			return err
		}
		index := int(binary.LittleEndian.Uint32(rec.data[6:]))
		if index >= len(g.sst) {
			return fmt.Errorf("%w: shared string %d out of range", ErrUnrecognizedFormat, index)
		}
		b.set(row, col, &models.Cell{Kind: models.KindText, Text: g.sst[index]})

	case recLabel, recRString:
		row, col, err := cellHeader(rec, 8)
		if err != nil {
			return err
		}
		text, _, err := g.strings.long(rec.data[6:])
		if err != nil {
			return truncated(rec)
		}
		b.set(row, col, &models.Cell{Kind: models.KindText, Text: text})

	case recFormula:
		row, col, err := cellHeader(rec, 20)
		if err != nil {
			return err
		}
		cell := &models.Cell{Kind: models.KindFormula}
		cell.Cached = formulaResult(rec.data[6:14])
		if cell.Cached == nil {
			*pending = cell
		}
		b.set(row, col, cell)

	case recString:
		if *pending == nil {
			return nil
		}
		text, _, err := g.strings.long(rec.data)
		if err != nil {
			return truncated(rec)
		}
		(*pending).Cached = &models.Value{Kind: models.KindText, Text: text}
		*pending = nil
	}
	return nil
}

// formulaResult decodes the cached result of a FORMULA record. It returns nil
// for a string result, which is stored in the following STRING record.
func formulaResult(b []byte) *models.Value {
	if b[6] != 0xFF || b[7] != 0xFF {
		return &models.Value{Kind: models.KindNumeric, Number: math.Float64frombits(binary.LittleEndian.Uint64(b))}
	}
	switch b[0] {
	case 0x00:
		return nil
	case 0x03:
		return &models.Value{Kind: models.KindText}
	default:
		// boolean or error
		return &models.Value{Kind: models.KindOther}
	}
}

// storedResultEvaluator answers formula cells with the result saved in the
// file. Legacy workbooks keep formulas only in compiled form.
type storedResultEvaluator struct{}

// NewStoredResultEvaluator returns an Evaluator that reports each formula
// cell's cached result.
func NewStoredResultEvaluator() models.Evaluator {
	return storedResultEvaluator{}
}

func (storedResultEvaluator) Evaluate(sheet string, cell *models.Cell) (models.Value, error) {
	if cell.Cached == nil {
		return models.Value{}, fmt.Errorf("%w: %s!%s has no stored result", models.ErrNotImplemented, sheet, cell.Ref)
	}
	return *cell.Cached, nil
}
