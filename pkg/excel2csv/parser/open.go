// Package parser decodes workbook files into the converter's data model.
package parser

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/ukaji3/excel2csv-go/pkg/excel2csv/models"
	"github.com/xuri/excelize/v2"
)

// ErrFileNotFound indicates the input path does not resolve to a readable file.
var ErrFileNotFound = errors.New("file not found")

// ErrUnrecognizedFormat indicates the input cannot be decoded as a supported workbook.
var ErrUnrecognizedFormat = errors.New("unrecognized workbook format")

// ErrEncryptedWorkbook indicates a password-protected workbook.
var ErrEncryptedWorkbook = errors.New("encrypted workbooks are not supported")

// OpenOptions configures Open.
type OpenOptions struct {
	// Logger receives format detection details. Nil means the logrus standard logger.
	Logger logrus.FieldLogger
}

// Book is an opened workbook. It holds the input file until Close.
type Book struct {
	// Workbook is the decoded data.
	Workbook *models.Workbook
	// Evaluator resolves formula cells.
	Evaluator models.Evaluator

	file *os.File
	xlsx *excelize.File
}

// Open reads and decodes the workbook at path.
func Open(path string, opts OpenOptions) (*Book, error) {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("%w: %s is a directory", ErrFileNotFound, path)
	}

	book, err := decode(file, info.Size(), filepath.Base(path), log)
	if err != nil {
		file.Close()
		return nil, err
	}
	return book, nil
}

func decode(file *os.File, size int64, name string, log logrus.FieldLogger) (*Book, error) {
	format, err := DetectFormat(file, log)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"file": name, "format": format}).Debug("detected workbook format")

	book := &Book{file: file}
	switch format {
	case models.FormatXLSX:
		wb, f, err := loadXLSX(file, size, name, log)
		if err != nil {
			return nil, err
		}
		book.Workbook = wb
		book.xlsx = f
		book.Evaluator = NewCalcEvaluator(f)
	case models.FormatXLS:
		wb, err := loadXLS(io.NewSectionReader(file, 0, size), name, log)
		if err != nil {
			return nil, err
		}
		book.Workbook = wb
		book.Evaluator = NewStoredResultEvaluator()
	default:
		return nil, ErrUnrecognizedFormat
	}
	return book, nil
}

// Close releases the decoder and the input file.
func (b *Book) Close() error {
	var errs []error
	if b.xlsx != nil {
		errs = append(errs, b.xlsx.Close())
		b.xlsx = nil
	}
	if b.file != nil {
		errs = append(errs, b.file.Close())
		b.file = nil
	}
	return errors.Join(errs...)
}
