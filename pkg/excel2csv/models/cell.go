// Package models defines the read-only workbook data model the converter works on.
package models

// CellKind is the stored type of a cell.
type CellKind int

const (
	// KindBlank is a cell that exists but holds no value.
	KindBlank CellKind = iota
	// KindNumeric holds a float64 in Number.
	KindNumeric
	// KindText holds a string in Text.
	KindText
	// KindFormula holds an expression in Formula, resolved by an Evaluator.
	KindFormula
	// KindOther covers booleans, errors and anything else with no text rendering.
	KindOther
)

func (k CellKind) String() string {
	switch k {
	case KindBlank:
		return "blank"
	case KindNumeric:
		return "numeric"
	case KindText:
		return "text"
	case KindFormula:
		return "formula"
	default:
		return "other"
	}
}

// Cell represents a single stored cell.
type Cell struct {
	// Ref is the A1-style reference of the cell (e.g. "B7").
	Ref string
	// Kind is the stored type.
	Kind CellKind
	// Number is the value of a numeric cell.
	Number float64
	// Text is the value of a text cell.
	Text string
	// Formula is the expression of a formula cell, without the leading '='.
	// It is empty when the source format stores formulas only in compiled form.
	Formula string
	// Cached is the formula result saved in the file, nil when none was stored.
	Cached *Value
}

// Value is the result of evaluating a formula.
// Kind is one of KindNumeric, KindText or KindOther.
type Value struct {
	Kind   CellKind
	Number float64
	Text   string
}
