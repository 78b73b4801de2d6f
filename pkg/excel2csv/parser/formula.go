package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ukaji3/excel2csv-go/pkg/excel2csv/models"
	"github.com/xuri/efp"
	"github.com/xuri/excelize/v2"
)

var numericResult = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?$`)

var errorLiterals = map[string]bool{
	"#NULL!":        true,
	"#DIV/0!":       true,
	"#VALUE!":       true,
	"#REF!":         true,
	"#NAME?":        true,
	"#NUM!":         true,
	"#N/A":          true,
	"#GETTING_DATA": true,
	"#SPILL!":       true,
	"#CALC!":        true,
	"#UNKNOWN!":     true,
	"#FIELD!":       true,
	"#BLOCKED!":     true,
	"#CONNECT!":     true,
	"#BUSY!":        true,
	"#EXTERNAL!":    true,
	"#PYTHON!":      true,
	"#TIMEOUT!":     true,
}

// calcEvaluator evaluates formulas with the excelize calculation engine.
type calcEvaluator struct {
	f *excelize.File
}

// NewCalcEvaluator returns an Evaluator backed by excelize's CalcCellValue.
func NewCalcEvaluator(f *excelize.File) models.Evaluator {
	return &calcEvaluator{f: f}
}

func (e *calcEvaluator) Evaluate(sheet string, cell *models.Cell) (models.Value, error) {
	if err := CheckFormulaSyntax(cell.Formula); err != nil {
		return models.Value{}, err
	}

	result, err := e.f.CalcCellValue(sheet, cell.Ref, excelize.Options{RawCellValue: true})
	if err != nil {
		msg := err.Error()
		switch {
		case strings.Contains(msg, "not support"):
			return models.Value{}, fmt.Errorf("%w: %s", models.ErrNotImplemented, msg)
		case strings.Contains(msg, "formula not valid"):
			return models.Value{}, fmt.Errorf("%w: =%s", models.ErrFormulaParse, cell.Formula)
		case errorLiterals[result] || errorLiterals[msg]:
			return models.Value{Kind: models.KindOther}, nil
		}
		return models.Value{}, fmt.Errorf("evaluating =%s: %w", cell.Formula, err)
	}
	return preferCached(ClassifyResult(result), cell.Cached), nil
}

// preferCached returns the stored result in place of a computed number when
// both agree to the 15 significant digits the engine reports. The stored
// double keeps the digits the engine rounds away.
func preferCached(computed models.Value, cached *models.Value) models.Value {
	if computed.Kind != models.KindNumeric || cached == nil || cached.Kind != models.KindNumeric {
		return computed
	}
	if significant15(computed.Number) != significant15(cached.Number) {
		return computed
	}
	return *cached
}

func significant15(v float64) string {
	return strconv.FormatFloat(v, 'g', 15, 64)
}

// ClassifyResult maps a textual calculation result to a Value. Booleans,
// error literals and the empty result have no text rendering and become KindOther.
func ClassifyResult(result string) models.Value {
	switch {
	case result == "", result == "TRUE", result == "FALSE", errorLiterals[result]:
		return models.Value{Kind: models.KindOther}
	case numericResult.MatchString(result):
		if v, err := strconv.ParseFloat(result, 64); err == nil {
			return models.Value{Kind: models.KindNumeric, Number: v}
		}
	}
	return models.Value{Kind: models.KindText, Text: result}
}

// CheckFormulaSyntax tokenizes formula and reports ErrFormulaParse for empty
// input, unknown tokens or unbalanced parentheses.
func CheckFormulaSyntax(formula string) error {
	if strings.TrimSpace(strings.TrimPrefix(formula, "=")) == "" {
		return fmt.Errorf("%w: empty formula", models.ErrFormulaParse)
	}

	ps := efp.ExcelParser()
	depth := 0
	for _, token := range ps.Parse(formula) {
		switch token.TType {
		case efp.TokenTypeUnknown:
			return fmt.Errorf("%w: unexpected %q in =%s", models.ErrFormulaParse, token.TValue, formula)
		case efp.TokenTypeFunction, efp.TokenTypeSubexpression:
			switch token.TSubType {
			case efp.TokenSubTypeStart:
				depth++
			case efp.TokenSubTypeStop:
				depth--
			}
		}
		if depth < 0 {
			return fmt.Errorf("%w: unbalanced parentheses in =%s", models.ErrFormulaParse, formula)
		}
	}
	if depth != 0 {
		return fmt.Errorf("%w: unbalanced parentheses in =%s", models.ErrFormulaParse, formula)
	}
	return nil
}
