package excel2csv

import (
	"fmt"

	"github.com/ukaji3/excel2csv-go/pkg/excel2csv/parser"
)

// ErrFileNotFound indicates the input file does not exist or cannot be read.
var ErrFileNotFound = parser.ErrFileNotFound

// ErrUnrecognizedFormat indicates the input is not a supported workbook.
var ErrUnrecognizedFormat = parser.ErrUnrecognizedFormat

// ErrEncryptedWorkbook indicates a password-protected workbook.
var ErrEncryptedWorkbook = parser.ErrEncryptedWorkbook

// SheetError represents a failure to write one sheet's output file.
type SheetError struct {
	SheetName string
	Path      string
	Err       error
}

func (e *SheetError) Error() string {
	return fmt.Sprintf("writing sheet %q to %s: %v", e.SheetName, e.Path, e.Err)
}

func (e *SheetError) Unwrap() error {
	return e.Err
}

// NewSheetError creates a new SheetError.
func NewSheetError(sheetName, path string, err error) *SheetError {
	return &SheetError{
		SheetName: sheetName,
		Path:      path,
		Err:       err,
	}
}
