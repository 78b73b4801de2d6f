// Package main provides the CLI entry point for excel2csv.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/ukaji3/excel2csv-go/pkg/excel2csv"
	"golang.org/x/text/message"
)

type cliOptions struct {
	input     string
	csv       bool
	tab       bool
	quote     bool
	charset   string
	outputDir string
	failFast  bool
	lang      string
	verbose   bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	p := newPrinter(detectLanguage(args, os.Getenv))
	rootCmd := newRootCommand(p, stderr)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCommand(p *message.Printer, stderr io.Writer) *cobra.Command {
	opts := &cliOptions{}
	rootCmd := &cobra.Command{
		Use:           "excel2csv [-i] input.xlsx",
		Short:         p.Sprintf(msgShort),
		Long:          p.Sprintf(msgLong),
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return convert(cmd, p, opts, args, stderr)
		},
	}
	registerFlags(rootCmd.Flags(), p, opts)
	return rootCmd
}

func registerFlags(fs *pflag.FlagSet, p *message.Printer, opts *cliOptions) {
	fs.StringVarP(&opts.input, "input", "i", "", p.Sprintf(msgInput))
	fs.BoolVar(&opts.csv, "csv", false, p.Sprintf(msgCSV))
	fs.BoolVar(&opts.tab, "tab", false, p.Sprintf(msgTab))
	fs.BoolVar(&opts.quote, "dq", false, p.Sprintf(msgQuote))
	fs.StringVarP(&opts.charset, "charset", "c", "UTF-8", p.Sprintf(msgCharset))
	fs.StringVarP(&opts.outputDir, "output-dir", "o", ".", p.Sprintf(msgOutputDir))
	fs.BoolVar(&opts.failFast, "fail-fast", false, p.Sprintf(msgFailFast))
	fs.StringVar(&opts.lang, "lang", "", p.Sprintf(msgLang))
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, p.Sprintf(msgVerbose))
}

func convert(cmd *cobra.Command, p *message.Printer, opts *cliOptions, args []string, stderr io.Writer) error {
	inputPath := opts.input
	if len(args) == 1 {
		if inputPath != "" {
			return errors.New(p.Sprintf(msgBothInput))
		}
		inputPath = args[0]
	}
	if inputPath == "" {
		if err := cmd.Help(); err != nil {
			return err
		}
		return errors.New(p.Sprintf(msgNoInput))
	}

	log := newLogger(stderr, opts.verbose)
	if opts.csv && opts.tab {
		log.Warn("--tab overrides --csv")
	}
	convertOpts := excel2csv.Options{
		Delimiter: opts.delimiter(),
		Quote:     opts.quote,
		Charset:   opts.charset,
		OutputDir: opts.outputDir,
		FailFast:  opts.failFast,
		Logger:    log,
	}

	result, err := excel2csv.Convert(inputPath, convertOpts)
	switch {
	case errors.Is(err, excel2csv.ErrFileNotFound):
		return fmt.Errorf("file not found: %s", inputPath)
	case errors.Is(err, excel2csv.ErrEncryptedWorkbook), errors.Is(err, excel2csv.ErrUnrecognizedFormat):
		return fmt.Errorf("cannot read %s: %w", inputPath, err)
	case err != nil && result != nil:
		return fmt.Errorf("%d of %d sheets failed: %w", len(result.Failed), len(result.Failed)+len(result.Files), err)
	case err != nil:
		return fmt.Errorf("conversion failed: %w", err)
	}

	for _, file := range result.Files {
		log.WithField("lines", result.Lines[file]).Debug(file)
	}
	return nil
}

// delimiter applies --tab and --csv; --tab wins when both are given.
func (o *cliOptions) delimiter() excel2csv.Delimiter {
	if o.tab {
		return excel2csv.DelimiterTab
	}
	return excel2csv.DelimiterComma
}

func newLogger(w io.Writer, verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	log.SetLevel(logrus.WarnLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}
