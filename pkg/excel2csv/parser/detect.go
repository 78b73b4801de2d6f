package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/richardlehane/mscfb"
	"github.com/richardlehane/msoleps"
	"github.com/sirupsen/logrus"
	"github.com/ukaji3/excel2csv-go/pkg/excel2csv/models"
)

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// OLE stream names that identify the payload of a compound file.
const (
	streamWorkbook    = "Workbook" // BIFF8
	streamBook        = "Book"     // BIFF5
	streamEncrypted   = "EncryptedPackage"
	streamSummaryInfo = "SummaryInformation"
)

// initialSummaryInfo is the control character mscfb strips from the
// summary information stream name.
const initialSummaryInfo uint16 = 0x0005

// DetectFormat identifies the container format from the leading bytes and,
// for compound files, from the streams they hold.
func DetectFormat(ra io.ReaderAt, log logrus.FieldLogger) (models.Format, error) {
	header := make([]byte, len(oleMagic))
	n, err := ra.ReadAt(header, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	header = header[:n]

	switch {
	case bytes.HasPrefix(header, zipMagic):
		return models.FormatXLSX, nil
	case bytes.Equal(header, oleMagic):
		return inspectCompoundFile(ra, log)
	default:
		return "", ErrUnrecognizedFormat
	}
}

func inspectCompoundFile(ra io.ReaderAt, log logrus.FieldLogger) (models.Format, error) {
	doc, err := mscfb.New(ra)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnrecognizedFormat, err)
	}

	var format models.Format
	encrypted := false
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		switch entry.Name {
		case streamWorkbook, streamBook:
			format = models.FormatXLS
		case streamEncrypted:
			encrypted = true
		case streamSummaryInfo:
			if entry.Initial == initialSummaryInfo {
				logSummaryInfo(entry, log)
			}
		}
	}

	switch {
	case encrypted:
		return "", ErrEncryptedWorkbook
	case format == "":
		return "", fmt.Errorf("%w: compound file holds no workbook stream", ErrUnrecognizedFormat)
	}
	return format, nil
}

// logSummaryInfo writes the document properties (title, author, ...) at debug level.
func logSummaryInfo(r io.Reader, log logrus.FieldLogger) {
	props, err := msoleps.NewFrom(r)
	if err != nil {
		log.WithError(err).Debug("unreadable summary information")
		return
	}
	fields := logrus.Fields{}
	for _, prop := range props.Property {
		if s := prop.String(); s != "" {
			fields[prop.Name] = s
		}
	}
	log.WithFields(fields).Debug("document summary information")
}
