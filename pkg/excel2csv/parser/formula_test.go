package parser

import (
	"errors"
	"testing"

	"github.com/ukaji3/excel2csv-go/pkg/excel2csv/models"
)

func TestCheckFormulaSyntax(t *testing.T) {
	tests := []struct {
		formula string
		valid   bool
	}{
		{"SUM(A1:A3)", true},
		{"A1+B1*2", true},
		{`IF(A1>0,"pos","neg")`, true},
		{"(1+2)*3", true},
		{"SUM(1,2", false},
		{"(1+2", false},
		{"", false},
		{"=", false},
		{"   ", false},
	}

	for _, tt := range tests {
		err := CheckFormulaSyntax(tt.formula)
		if tt.valid && err != nil {
			t.Errorf("CheckFormulaSyntax(%q) = %v, expected nil", tt.formula, err)
		}
		if !tt.valid && !errors.Is(err, models.ErrFormulaParse) {
			t.Errorf("CheckFormulaSyntax(%q) = %v, expected ErrFormulaParse", tt.formula, err)
		}
	}
}

func TestClassifyResult(t *testing.T) {
	tests := []struct {
		input    string
		expected models.Value
	}{
		{"42", models.Value{Kind: models.KindNumeric, Number: 42}},
		{"-0.5", models.Value{Kind: models.KindNumeric, Number: -0.5}},
		{"1.5E+20", models.Value{Kind: models.KindNumeric, Number: 1.5e20}},
		{"hello", models.Value{Kind: models.KindText, Text: "hello"}},
		{"Inf", models.Value{Kind: models.KindText, Text: "Inf"}},
		{"0x10", models.Value{Kind: models.KindText, Text: "0x10"}},
		{"", models.Value{Kind: models.KindOther}},
		{"TRUE", models.Value{Kind: models.KindOther}},
		{"FALSE", models.Value{Kind: models.KindOther}},
		{"#DIV/0!", models.Value{Kind: models.KindOther}},
		{"#N/A", models.Value{Kind: models.KindOther}},
	}

	for _, tt := range tests {
		result := ClassifyResult(tt.input)
		if result != tt.expected {
			t.Errorf("ClassifyResult(%q) = %+v, expected %+v", tt.input, result, tt.expected)
		}
	}
}

func TestCalcEvaluator(t *testing.T) {
	sheetData := `<row r="1"><c r="A1"><v>4</v></c><c r="B1"><v>6</v></c>` +
		`<c r="C1"><f>A1*B1</f></c>` +
		`<c r="D1" t="str"><f>"x"&amp;"y"</f></c>` +
		`<c r="E1"><f>1/0</f></c>` +
		`<c r="F1" t="b"><f>A1&lt;B1</f></c>` +
		`<c r="G1"><f>AVERAGE(A1,B1)</f></c>` +
		`<c r="H1"><f>B1/8</f></c></row>`
	book := openTestBook(t, writeTestPackage(t, []testSheet{{Name: "Calc", SheetData: sheetData}}, nil))
	row := book.Workbook.Sheets[0].Rows[0]

	tests := []struct {
		col      int
		expected models.Value
	}{
		{2, models.Value{Kind: models.KindNumeric, Number: 24}},
		{3, models.Value{Kind: models.KindText, Text: "xy"}},
		{4, models.Value{Kind: models.KindOther}},
		{5, models.Value{Kind: models.KindOther}},
		{6, models.Value{Kind: models.KindNumeric, Number: 5}},
		{7, models.Value{Kind: models.KindNumeric, Number: 0.75}},
	}

	for _, tt := range tests {
		cell := row.Cell(tt.col)
		value, err := book.Evaluator.Evaluate("Calc", cell)
		if err != nil {
			t.Errorf("Evaluate(%s) failed: %v", cell.Ref, err)
			continue
		}
		if value != tt.expected {
			t.Errorf("Evaluate(%s) = %+v, expected %+v", cell.Ref, value, tt.expected)
		}
	}
}

func TestCalcEvaluatorFailures(t *testing.T) {
	sheetData := `<row r="1"><c r="A1"><f>SUM(1,2</f></c><c r="B1"><f>NOSUCHFUNCTION(1)</f></c></row>`
	book := openTestBook(t, writeTestPackage(t, []testSheet{{Name: "Bad", SheetData: sheetData}}, nil))
	row := book.Workbook.Sheets[0].Rows[0]

	if _, err := book.Evaluator.Evaluate("Bad", row.Cell(0)); !errors.Is(err, models.ErrFormulaParse) {
		t.Errorf("Evaluate(A1) = %v, expected ErrFormulaParse", err)
	}

	if _, err := book.Evaluator.Evaluate("Bad", row.Cell(1)); !errors.Is(err, models.ErrNotImplemented) {
		t.Errorf("Evaluate(B1) = %v, expected ErrNotImplemented", err)
	}
}

func TestCalcEvaluatorCachedPrecision(t *testing.T) {
	// the engine reports 15 significant digits; the stored results keep all 17
	sheetData := `<row r="1"><c r="A1"><v>1152921504606846976</v></c>` +
		`<c r="B1"><f>A1</f><v>1152921504606846976</v></c>` +
		`<c r="C1"><f>1/3</f><v>0.33333333333333331</v></c>` +
		`<c r="D1"><f>4/6</f><v>0.66666666666666663</v></c>` +
		`<c r="E1"><f>2+3</f><v>99</v></c>` +
		`<c r="F1"><f>1/3</f></c>` +
		`<c r="G1" t="str"><f>"a"&amp;"b"</f><v>stale</v></c></row>`
	book := openTestBook(t, writeTestPackage(t, []testSheet{{Name: "Calc", SheetData: sheetData}}, nil))
	row := book.Workbook.Sheets[0].Rows[0]

	tests := []struct {
		col      int
		expected models.Value
	}{
		{1, models.Value{Kind: models.KindNumeric, Number: 1 << 60}},
		{2, models.Value{Kind: models.KindNumeric, Number: 1.0 / 3}},
		{3, models.Value{Kind: models.KindNumeric, Number: 4.0 / 6}},
		// a stored result that disagrees with the engine is ignored
		{4, models.Value{Kind: models.KindNumeric, Number: 5}},
		// without a stored result the engine's digits are kept
		{5, models.Value{Kind: models.KindNumeric, Number: 0.333333333333333}},
		{6, models.Value{Kind: models.KindText, Text: "ab"}},
	}

	for _, tt := range tests {
		cell := row.Cell(tt.col)
		value, err := book.Evaluator.Evaluate("Calc", cell)
		if err != nil {
			t.Errorf("Evaluate(%s) failed: %v", cell.Ref, err)
			continue
		}
		if value != tt.expected {
			t.Errorf("Evaluate(%s) = %+v, expected %+v", cell.Ref, value, tt.expected)
		}
	}
}

func TestPreferCached(t *testing.T) {
	numeric := func(v float64) models.Value { return models.Value{Kind: models.KindNumeric, Number: v} }
	cached := func(v models.Value) *models.Value { return &v }

	tests := []struct {
		name     string
		computed models.Value
		cached   *models.Value
		expected models.Value
	}{
		{"no stored result", numeric(0.333333333333333), nil, numeric(0.333333333333333)},
		{"agreeing stored result", numeric(0.333333333333333), cached(numeric(1.0 / 3)), numeric(1.0 / 3)},
		{"disagreeing stored result", numeric(0.5), cached(numeric(0.25)), numeric(0.5)},
		{"text result", models.Value{Kind: models.KindText, Text: "x"}, cached(numeric(1)), models.Value{Kind: models.KindText, Text: "x"}},
		{"stored text", numeric(1), cached(models.Value{Kind: models.KindText, Text: "1"}), numeric(1)},
	}

	for _, tt := range tests {
		if result := preferCached(tt.computed, tt.cached); result != tt.expected {
			t.Errorf("%s: preferCached = %+v, expected %+v", tt.name, result, tt.expected)
		}
	}
}
