// Package output renders decoded cells as text and writes delimited sheet files.
package output

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/ukaji3/excel2csv-go/pkg/excel2csv/models"
)

// BlankMarker is emitted for blank cells and for every value that has no text rendering.
const BlankMarker = " "

var lineBreaks = strings.NewReplacer("\n", " ", "\r", " ")

// Resolver turns a single cell into its plain-text representation.
type Resolver struct {
	eval models.Evaluator
	log  logrus.FieldLogger
}

// NewResolver creates a Resolver. eval may be nil for workbooks without formulas;
// log receives formula evaluation failures.
func NewResolver(eval models.Evaluator, log logrus.FieldLogger) *Resolver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Resolver{eval: eval, log: log}
}

// Resolve returns the text for cell on the named sheet. An absent (nil) cell
// yields the empty string. Resolve never fails: evaluation problems degrade to
// BlankMarker and are reported to the logger.
func (r *Resolver) Resolve(sheet string, cell *models.Cell) string {
	if cell == nil {
		return ""
	}
	switch cell.Kind {
	case models.KindNumeric:
		return FormatNumber(cell.Number)
	case models.KindText:
		return ScrubText(cell.Text)
	case models.KindFormula:
		return r.resolveFormula(sheet, cell)
	default:
		return BlankMarker
	}
}

func (r *Resolver) resolveFormula(sheet string, cell *models.Cell) string {
	value, err := r.evaluate(sheet, cell)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"sheet":  sheet,
			"cell":   cell.Ref,
			"reason": failureReason(err),
		}).Warn(err.Error())
		return BlankMarker
	}
	switch value.Kind {
	case models.KindNumeric:
		return FormatNumber(value.Number)
	case models.KindText:
		return ScrubText(value.Text)
	default:
		return BlankMarker
	}
}

func (r *Resolver) evaluate(sheet string, cell *models.Cell) (value models.Value, err error) {
	if r.eval == nil {
		return value, fmt.Errorf("%w: no evaluation engine for =%s", models.ErrNotImplemented, cell.Formula)
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("evaluating =%s: %v", cell.Formula, p)
		}
	}()
	return r.eval.Evaluate(sheet, cell)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, models.ErrFormulaParse):
		return "parse"
	case errors.Is(err, models.ErrNotImplemented):
		return "not_implemented"
	default:
		return "evaluation"
	}
}

// FormatNumber renders v as locale-independent decimal text with no exponent
// and no grouping. Integral values carry no fractional part.
func FormatNumber(v float64) string {
	if v == 0 {
		// also folds -0
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ScrubText replaces every '\n' and every '\r' with a single space.
func ScrubText(s string) string {
	return lineBreaks.Replace(s)
}
