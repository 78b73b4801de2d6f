package models

// Row represents a row present in the source sheet.
type Row struct {
	// Index is the row index (0-based).
	Index int
	// Cells is addressed by column index; its length is the last populated
	// column + 1. A nil entry is an absent cell.
	Cells []*Cell
}

// Cell returns the cell at column col, or nil when it is absent.
func (r *Row) Cell(col int) *Cell {
	if col < 0 || col >= len(r.Cells) {
		return nil
	}
	return r.Cells[col]
}

// Sheet represents one worksheet. Rows holds only the rows present in the
// source, in document order.
type Sheet struct {
	Name string
	Rows []*Row
}
