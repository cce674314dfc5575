package recordstore

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

const delimiter = ','

// encodeTable renders the header and every row in schema order. Plain values
// are written bare, so files without delimiters in their data stay in the
// original comma-joined layout. Values holding a delimiter, quote, line break
// or edge whitespace are quoted csv-style.
func encodeTable(schema []string, rows []Record) []byte {
	var buf bytes.Buffer
	writeLine(&buf, schema)

	line := make([]string, len(schema))
	for _, row := range rows {
		for i, field := range schema {
			v, ok := row[field]
			if !ok {
				v = Null
			}
			line[i] = v
		}
		writeLine(&buf, line)
	}
	return buf.Bytes()
}

func writeLine(buf *bytes.Buffer, values []string) {
	for i, v := range values {
		if i > 0 {
			buf.WriteByte(delimiter)
		}
		// a lone empty value would otherwise become a blank line, which
		// readers skip
		if needsQuotes(v) || (len(values) == 1 && v == "") {
			buf.WriteByte('"')
			buf.WriteString(strings.ReplaceAll(v, `"`, `""`))
			buf.WriteByte('"')
			continue
		}
		buf.WriteString(v)
	}
	buf.WriteByte('\n')
}

func needsQuotes(v string) bool {
	if v == "" {
		return false
	}
	if strings.ContainsAny(v, string(delimiter)+"\"\r\n") {
		return true
	}
	return strings.TrimSpace(v) != v
}

// decodeTable parses a table file. The first non-empty line is the schema.
func decodeTable(path string, data []byte) ([]string, []Record, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delimiter
	r.FieldsPerRecord = -1

	var schema []string
	var rows []Record
	for {
		values, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				line = perr.Line
			}
			return nil, nil, &ParseError{Path: path, Line: line, Reason: "invalid line", Err: err}
		}
		line, _ := r.FieldPos(0)

		if isBlank(values, len(schema)) {
			continue
		}

		if schema == nil {
			if err := validateSchema(values); err != nil {
				return nil, nil, &ParseError{Path: path, Line: line, Reason: "invalid header", Err: err}
			}
			schema = values
			continue
		}

		if len(values) != len(schema) {
			return nil, nil, &ParseError{
				Path:   path,
				Line:   line,
				Reason: fmt.Sprintf("expected %d columns, got %d", len(schema), len(values)),
			}
		}

		rec := make(Record, len(schema))
		for i, field := range schema {
			rec[field] = values[i]
		}
		rows = append(rows, rec)
	}

	if schema == nil {
		return nil, nil, &ParseError{Path: path, Reason: "missing header line"}
	}
	return schema, rows, nil
}

// isBlank treats a whitespace-only line as empty unless the table has a
// single column, where it is a legitimate value.
func isBlank(values []string, width int) bool {
	if len(values) != 1 || width == 1 {
		return false
	}
	return strings.TrimSpace(values[0]) == ""
}

func validateSchema(fields []string) error {
	if len(fields) == 0 {
		return ErrEmptySchema
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f == "" {
			return fmt.Errorf("empty field name")
		}
		if seen[f] {
			return fmt.Errorf("duplicate field %q", f)
		}
		seen[f] = true
	}
	return nil
}
