// Package excel2csv converts spreadsheet workbooks into one delimited text file per sheet.
package excel2csv

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/ukaji3/excel2csv-go/pkg/excel2csv/output"
)

// Delimiter is the field delimiter written between cell values.
type Delimiter string

const (
	// DelimiterComma writes comma-separated values to .csv files.
	DelimiterComma Delimiter = ","
	// DelimiterTab writes tab-separated values to .tsv files.
	DelimiterTab Delimiter = "\t"
)

// Extension returns the output file extension for the delimiter.
func (d Delimiter) Extension() string {
	if d == DelimiterTab {
		return ".tsv"
	}
	return ".csv"
}

// Options configures a conversion run. It is not modified during the run.
type Options struct {
	// Delimiter is DelimiterComma or DelimiterTab.
	Delimiter Delimiter
	// Quote wraps the delimiter in double quotes (`","`) and opens and closes
	// every non-empty line with one. Fields are not escaped.
	Quote bool
	// Charset is the output character encoding. Empty means UTF-8.
	Charset string
	// OutputDir receives the per-sheet files. Empty means the working directory.
	OutputDir string
	// FailFast stops at the first sheet whose output cannot be written.
	// By default the remaining sheets are still converted.
	FailFast bool
	// Logger is the diagnostic channel. Nil means the logrus standard logger.
	Logger logrus.FieldLogger
}

// DefaultOptions returns comma-separated, unquoted, UTF-8 output in the working directory.
func DefaultOptions() Options {
	return Options{
		Delimiter: DelimiterComma,
		Charset:   output.DefaultCharset,
		OutputDir: ".",
	}
}

// Validate reports unusable option values.
func (o Options) Validate() error {
	switch o.Delimiter {
	case DelimiterComma, DelimiterTab, "":
	default:
		return fmt.Errorf("unsupported delimiter %q", string(o.Delimiter))
	}
	if _, err := output.LookupCharset(o.Charset); err != nil {
		return err
	}
	return nil
}

// RowFormat returns the serializer settings for these options.
func (o Options) RowFormat() output.RowFormat {
	return output.RowFormat{
		Delimiter: string(o.delimiter()),
		Quote:     o.Quote,
	}
}

// CharsetName returns the configured charset, defaulting to UTF-8.
func (o Options) CharsetName() string {
	if o.Charset == "" {
		return output.DefaultCharset
	}
	return o.Charset
}

func (o Options) delimiter() Delimiter {
	if o.Delimiter == "" {
		return DelimiterComma
	}
	return o.Delimiter
}

func (o Options) outputDir() string {
	if o.OutputDir == "" {
		return "."
	}
	return o.OutputDir
}

func (o Options) logger() logrus.FieldLogger {
	if o.Logger == nil {
		return logrus.StandardLogger()
	}
	return o.Logger
}
