package models

import "errors"

// ErrFormulaParse indicates a formula could not be parsed.
var ErrFormulaParse = errors.New("formula parse error")

// ErrNotImplemented indicates a formula uses an operation the evaluation engine does not support.
var ErrNotImplemented = errors.New("formula operation not implemented")

// Format is the container format a workbook was decoded from.
type Format string

const (
	// FormatXLSX is an Office Open XML workbook.
	FormatXLSX Format = "xlsx"
	// FormatXLS is a legacy BIFF workbook.
	FormatXLS Format = "xls"
)

// Workbook represents a decoded workbook.
type Workbook struct {
	// Name is the workbook file name (no path).
	Name string
	// Format is the decoded container format.
	Format Format
	// Sheets holds the sheets in workbook order.
	Sheets []*Sheet
}

// Evaluator computes the value of a formula cell.
// Errors wrap ErrFormulaParse or ErrNotImplemented when the failure is one of those.
type Evaluator interface {
	Evaluate(sheet string, cell *Cell) (Value, error)
}
