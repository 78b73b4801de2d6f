package output

import (
	"bufio"
	"io"
	"strings"

	"github.com/ukaji3/excel2csv-go/pkg/excel2csv/models"
)

// RowFormat describes how resolved fields are joined into a line.
type RowFormat struct {
	// Delimiter is the raw field delimiter ("," or "\t").
	Delimiter string
	// Quote wraps the delimiter in double quotes and opens/closes the line with one.
	// Fields themselves are not escaped.
	Quote bool
}

// EffectiveDelimiter returns the separator actually inserted between fields.
func (f RowFormat) EffectiveDelimiter() string {
	if f.Quote {
		return `"` + f.Delimiter + `"`
	}
	return f.Delimiter
}

// FormatRow joins fields into a line without terminator. A row with no fields
// is always the empty string.
func (f RowFormat) FormatRow(fields []string) string {
	if len(fields) == 0 {
		return ""
	}
	line := strings.Join(fields, f.EffectiveDelimiter())
	if f.Quote {
		return `"` + line + `"`
	}
	return line
}

// SheetWriter writes the rows of a sheet as delimited lines.
type SheetWriter struct {
	w      *bufio.Writer
	res    *Resolver
	format RowFormat
	lines  int
}

// NewSheetWriter creates a SheetWriter on w.
func NewSheetWriter(w io.Writer, res *Resolver, format RowFormat) *SheetWriter {
	return &SheetWriter{
		w:      bufio.NewWriter(w),
		res:    res,
		format: format,
	}
}

// Fields resolves every column of row, from 0 to the last populated one.
func (sw *SheetWriter) Fields(sheet string, row *models.Row) []string {
	fields := make([]string, len(row.Cells))
	for col := range row.Cells {
		fields[col] = sw.res.Resolve(sheet, row.Cell(col))
	}
	return fields
}

// WriteRow writes a single line for row.
func (sw *SheetWriter) WriteRow(sheet string, row *models.Row) error {
	if _, err := sw.w.WriteString(sw.format.FormatRow(sw.Fields(sheet, row))); err != nil {
		return err
	}
	if err := sw.w.WriteByte('\n'); err != nil {
		return err
	}
	sw.lines++
	return nil
}

// WriteSheet writes one line per present row of sheet and flushes.
func (sw *SheetWriter) WriteSheet(sheet *models.Sheet) error {
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		if err := sw.WriteRow(sheet.Name, row); err != nil {
			return err
		}
	}
	return sw.w.Flush()
}

// Lines returns the number of lines written so far.
func (sw *SheetWriter) Lines() int {
	return sw.lines
}
