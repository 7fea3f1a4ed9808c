package sheet

import "strings"

// ParseCSV tokenizes spreadsheet CSV export text into rows of fields.
//
// Google's gviz export is close to RFC 4180 but not strict, and a
// malformed trailing quote must never take the whole program down, so
// this is a best-effort single-pass scanner rather than encoding/csv:
// it never returns an error, an unterminated quote just flushes
// whatever was accumulated. Quoted fields may contain delimiters and
// line terminators, "" inside quotes decodes to a literal quote, and
// blank lines are skipped entirely.
//
// The first row of a sheet export is the header; dropping it is the
// caller's job.
func ParseCSV(text string) [][]string {
	var rows [][]string
	var row []string
	var field strings.Builder
	inQuotes := false

	flushField := func() {
		row = append(row, field.String())
		field.Reset()
	}
	flushRow := func() {
		if len(row) == 0 && field.Len() == 0 {
			// Blank line, not a row.
			return
		}
		flushField()
		rows = append(rows, row)
		row = nil
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(text) && text[i+1] == '"' {
				// Escaped quote inside a quoted field.
				field.WriteByte('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case c == ',' && !inQuotes:
			flushField()
		case (c == '\n' || c == '\r') && !inQuotes:
			if c == '\r' && i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			flushRow()
		default:
			field.WriteByte(c)
		}
	}
	flushRow()

	return rows
}
