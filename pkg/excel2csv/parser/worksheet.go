package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"io/fs"
	"path"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// rawCell is a <c> element as stored in a worksheet part.
type rawCell struct {
	ref      string
	col      int // 0-based
	typ      string
	value    string
	hasValue bool
	formula  bool
	inline   string
}

// rawRow is a <row> element; cells are in document order.
type rawRow struct {
	index int // 0-based
	cells []rawCell
}

// lastCol returns the highest populated column index, or -1 for a row without cells.
func (r rawRow) lastCol() int {
	last := -1
	for _, c := range r.cells {
		if c.col > last {
			last = c.col
		}
	}
	return last
}

// sheetPartPaths maps sheet names to their worksheet part inside the package.
func sheetPartPaths(r *zip.Reader) (map[string]string, error) {
	workbookXML, err := readPart(r, "xl/workbook.xml")
	if err != nil {
		return nil, err
	}
	if workbookXML == nil {
		return nil, ErrUnrecognizedFormat
	}
	relsXML, err := readPart(r, "xl/_rels/workbook.xml.rels")
	if err != nil {
		return nil, err
	}
	return worksheetParts(workbookXML, relsXML)
}

// scanWorksheet reads the row/cell skeleton of a worksheet part. Rows and cells
// missing from the part are missing from the result.
func scanWorksheet(r *zip.Reader, name string) ([]rawRow, error) {
	data, err := readPart(r, name)
	if err != nil || data == nil {
		return nil, err
	}

	var rows []rawRow
	nextRow := 0
	decoder := xml.NewDecoder(bytes.NewReader(data))
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		se, ok := token.(xml.StartElement)
		if !ok || se.Name.Local != "row" {
			continue
		}
		row, err := parseRow(decoder, se, nextRow)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
		nextRow = row.index + 1
	}
	return rows, nil
}

func parseRow(decoder *xml.Decoder, start xml.StartElement, defaultIndex int) (rawRow, error) {
	row := rawRow{index: defaultIndex}
	for _, attr := range start.Attr {
		if attr.Name.Local == "r" {
			if n, err := strconv.Atoi(attr.Value); err == nil && n > 0 {
				row.index = n - 1
			}
		}
	}

	nextCol := 0
	depth := 1
	for depth > 0 {
		token, err := decoder.Token()
		if err != nil {
			return row, err
		}
		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local != "c" {
				depth++
				continue
			}
			cell, err := parseCell(decoder, t, row.index, nextCol)
			if err != nil {
				return row, err
			}
			row.cells = append(row.cells, cell)
			nextCol = cell.col + 1
		case xml.EndElement:
			depth--
		}
	}
	return row, nil
}

func parseCell(decoder *xml.Decoder, start xml.StartElement, rowIndex, defaultCol int) (rawCell, error) {
	cell := rawCell{col: defaultCol}
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "r":
			if col, _, err := excelize.CellNameToCoordinates(attr.Value); err == nil {
				cell.ref = attr.Value
				cell.col = col - 1
			}
		case "t":
			cell.typ = attr.Value
		}
	}
	if cell.ref == "" {
		cell.ref, _ = excelize.CoordinatesToCellName(cell.col+1, rowIndex+1)
	}

	depth := 1
	for depth > 0 {
		token, err := decoder.Token()
		if err != nil {
			return cell, err
		}
		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "v":
				text, err := readElementText(decoder)
				if err != nil {
					return cell, err
				}
				cell.value = text
				cell.hasValue = true
			case "f":
				cell.formula = true
				if _, err := readElementText(decoder); err != nil {
					return cell, err
				}
			case "is":
				text, err := readInlineString(decoder)
				if err != nil {
					return cell, err
				}
				cell.inline = text
			default:
				depth++
			}
		case xml.EndElement:
			depth--
		}
	}
	return cell, nil
}

// readInlineString collects the <t> runs of an <is> element, skipping phonetic runs.
func readInlineString(decoder *xml.Decoder) (string, error) {
	var sb strings.Builder
	depth := 1
	for depth > 0 {
		token, err := decoder.Token()
		if err != nil {
			return sb.String(), err
		}
		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				text, err := readElementText(decoder)
				if err != nil {
					return sb.String(), err
				}
				sb.WriteString(text)
			case "rPh":
				if err := decoder.Skip(); err != nil {
					return sb.String(), err
				}
			default:
				depth++
			}
		case xml.EndElement:
			depth--
		}
	}
	return sb.String(), nil
}

func readElementText(decoder *xml.Decoder) (string, error) {
	var sb strings.Builder
	depth := 1
	for depth > 0 {
		token, err := decoder.Token()
		if err != nil {
			return sb.String(), err
		}
		switch t := token.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}
	return sb.String(), nil
}

// workbookPart is the subset of xl/workbook.xml needed to find sheet parts.
type workbookPart struct {
	Sheets []struct {
		Name string `xml:"name,attr"`
		// r:id, matched in both transitional and strict namespaces
		RelID string `xml:"id,attr"`
	} `xml:"sheets>sheet"`
}

// relationshipsPart is a package relationships (.rels) part.
type relationshipsPart struct {
	Relationships []struct {
		ID     string `xml:"Id,attr"`
		Type   string `xml:"Type,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// readPart returns the content of the named part, or nil when the package
// does not contain it.
func readPart(r *zip.Reader, name string) ([]byte, error) {
	f, err := r.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// partPath resolves a relationship target against the directory of its source part.
func partPath(baseDir, target string) string {
	if strings.HasPrefix(target, "/") {
		return path.Clean(strings.TrimPrefix(target, "/"))
	}
	return path.Join(baseDir, target)
}

// worksheetParts joins the workbook's sheet list with its relationships.
// Sheets whose relationship is not a worksheet (chart sheets, dialogs) are left out.
func worksheetParts(workbookXML, relsXML []byte) (map[string]string, error) {
	var wb workbookPart
	if err := xml.Unmarshal(workbookXML, &wb); err != nil {
		return nil, err
	}
	var rels relationshipsPart
	if len(relsXML) > 0 {
		if err := xml.Unmarshal(relsXML, &rels); err != nil {
			return nil, err
		}
	}

	targets := make(map[string]string, len(rels.Relationships))
	for _, rel := range rels.Relationships {
		if strings.HasSuffix(rel.Type, "/worksheet") {
			targets[rel.ID] = partPath("xl", rel.Target)
		}
	}

	parts := make(map[string]string, len(wb.Sheets))
	for _, sheet := range wb.Sheets {
		if target, ok := targets[sheet.RelID]; ok && sheet.Name != "" {
			parts[sheet.Name] = target
		}
	}
	return parts, nil
}
