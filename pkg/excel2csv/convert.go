package excel2csv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/ukaji3/excel2csv-go/pkg/excel2csv/models"
	"github.com/ukaji3/excel2csv-go/pkg/excel2csv/output"
	"github.com/ukaji3/excel2csv-go/pkg/excel2csv/parser"
	"golang.org/x/text/encoding"
)

// Result reports the outcome of a conversion run.
type Result struct {
	// Files lists the written output files in sheet order.
	Files []string
	// Failed lists the sheets whose output could not be written.
	Failed []string
	// Lines maps each written file to its line count.
	Lines map[string]int
}

// Convert converts the workbook at path into one delimited file per sheet.
//
// The input stays open until every sheet has been processed. A missing input,
// an unrecognized format or invalid options fail the whole run before any file
// is created. A sheet whose output cannot be written yields a *SheetError; the
// remaining sheets are still converted unless opts.FailFast is set, and all
// sheet errors are joined into the returned error.
func Convert(path string, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	book, err := parser.Open(path, parser.OpenOptions{Logger: opts.logger()})
	if err != nil {
		return nil, err
	}
	defer book.Close()

	return ConvertWorkbook(book.Workbook, book.Evaluator, opts)
}

// ConvertWorkbook writes an already decoded workbook. eval may be nil when the
// workbook holds no formulas.
func ConvertWorkbook(wb *models.Workbook, eval models.Evaluator, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	charset := opts.CharsetName()
	enc, err := output.LookupCharset(charset)
	if err != nil {
		return nil, err
	}

	log := opts.logger()
	dir := opts.outputDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	resolver := output.NewResolver(eval, log)
	format := opts.RowFormat()
	result := &Result{Lines: make(map[string]int)}

	var errs []error
	for _, sheet := range wb.Sheets {
		path := filepath.Join(dir, SheetFileName(sheet.Name, opts.delimiter()))
		lines, err := writeSheetFile(path, sheet, resolver, enc, format)
		if err != nil {
			sheetErr := NewSheetError(sheet.Name, path, err)
			log.WithError(err).WithField("sheet", sheet.Name).Error("sheet not written")
			result.Failed = append(result.Failed, sheet.Name)
			if opts.FailFast {
				return result, sheetErr
			}
			errs = append(errs, sheetErr)
			continue
		}

		log.WithFields(logrus.Fields{
			"sheet":   sheet.Name,
			"file":    path,
			"lines":   lines,
			"charset": charset,
		}).Info("sheet converted")
		result.Files = append(result.Files, path)
		result.Lines[path] = lines
	}

	return result, errors.Join(errs...)
}

// writeSheetFile writes sheet to a new file at path. The file is flushed and
// closed before it returns.
func writeSheetFile(path string, sheet *models.Sheet, resolver *output.Resolver, enc encoding.Encoding, format output.RowFormat) (lines int, err error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	ew := output.NewEncodingWriter(f, enc)
	sw := output.NewSheetWriter(ew, resolver, format)
	if err := sw.WriteSheet(sheet); err != nil {
		return sw.Lines(), err
	}
	return sw.Lines(), ew.Close()
}

var unsafeFileChars = strings.NewReplacer(string(os.PathSeparator), "_", "/", "_", "\\", "_")

// SheetFileName returns the output file name for a sheet: the sheet name with
// path separators replaced, plus the delimiter's extension.
func SheetFileName(sheetName string, d Delimiter) string {
	name := unsafeFileChars.Replace(sheetName)
	if name == "" || name == "." || name == ".." {
		name = "sheet"
	}
	return name + d.Extension()
}
