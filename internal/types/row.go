package types

// SourceSheetColumn is the synthetic column added to every extracted row to
// record which sheet it came from.
const SourceSheetColumn = "_SourceSheet"

// Row is one extracted spreadsheet row, keyed by header name. Cell values
// are kept as strings exactly as the tabular reader produced them.
type Row map[string]string

// Clone returns an independent copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// IsBlank reports whether every field in the row is empty.
func (r Row) IsBlank() bool {
	for _, v := range r {
		if v != "" {
			return false
		}
	}
	return true
}
