package recordstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/moby/sys/atomicwriter"
)

// Table is an ordered set of records sharing one schema, bound to one file.
// Every mutation rewrites the whole file before returning, so the in-memory
// copy and the file agree whenever control is back with the caller.
//
// A Table is not safe for concurrent use, and changes made to the file by
// another process are only seen after Reload.
type Table struct {
	path   string
	schema []string
	fields map[string]int
	rows   []Record
}

func newTable(path string, schema []string, rows []Record) *Table {
	fields := make(map[string]int, len(schema))
	for i, f := range schema {
		fields[f] = i
	}
	return &Table{
		path:   path,
		schema: slices.Clone(schema),
		fields: fields,
		rows:   rows,
	}
}

// CreateFile creates an empty table at path and writes its header. It fails
// if the schema is empty or the file already exists.
func CreateFile(path string, schema []string) (*Table, error) {
	return CreateFileWith(path, schema, nil, false)
}

// CreateFileWith creates a table at path holding recs and writes it once.
// Records are validated as for InsertAll before anything touches disk, so a
// failure leaves no file behind.
func CreateFileWith(path string, schema []string, recs []Record, allowMissing bool) (*Table, error) {
	if err := validateSchema(schema); err != nil {
		if errors.Is(err, ErrEmptySchema) {
			return nil, err
		}
		return nil, fmt.Errorf("recordstore: invalid schema for %s: %w", path, err)
	}

	exists, err := fileExists(path)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, path)
	}

	t := newTable(path, schema, nil)
	rows := make([]Record, 0, len(recs))
	for _, rec := range recs {
		row, err := t.normalize(rec, allowMissing)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, &PersistenceError{Path: path, Op: "creating directory for", Err: err}
	}

	t.rows = rows
	if err := t.Save(); err != nil {
		return nil, err
	}
	return t, nil
}

// LoadFile parses an existing table file.
func LoadFile(path string) (*Table, error) {
	schema, rows, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return newTable(path, schema, rows), nil
}

func readFile(path string) ([]string, []Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, &NotFoundError{Path: path}
		}
		return nil, nil, &PersistenceError{Path: path, Op: "reading", Err: err}
	}
	return decodeTable(path, data)
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, &PersistenceError{Path: path, Op: "checking", Err: err}
}

// Path returns the file backing the table.
func (t *Table) Path() string { return t.path }

// Schema returns the field names in file order.
func (t *Table) Schema() []string { return slices.Clone(t.schema) }

// Len returns the number of records.
func (t *Table) Len() int { return len(t.rows) }

// HasField reports whether field is part of the schema.
func (t *Table) HasField(field string) bool {
	_, ok := t.fields[field]
	return ok
}

func (t *Table) checkField(field string) error {
	if !t.HasField(field) {
		return &UnknownFieldError{Path: t.path, Field: field}
	}
	return nil
}

// Query returns copies of every record whose field equals value exactly.
func (t *Table) Query(field, value string) ([]Record, error) {
	if err := t.checkField(field); err != nil {
		return nil, err
	}
	var found []Record
	for _, row := range t.rows {
		if row[field] == value {
			found = append(found, row.Clone())
		}
	}
	return found, nil
}

// Contains reports whether any record's field equals value.
func (t *Table) Contains(field, value string) (bool, error) {
	if err := t.checkField(field); err != nil {
		return false, err
	}
	for _, row := range t.rows {
		if row[field] == value {
			return true, nil
		}
	}
	return false, nil
}

// Insert appends rec and rewrites the file. Every field in rec must exist in
// the schema. Schema fields missing from rec are an error unless
// allowMissing is set, in which case they are stored as Null.
func (t *Table) Insert(rec Record, allowMissing bool) error {
	return t.InsertAll([]Record{rec}, allowMissing)
}

// InsertAll appends recs with a single rewrite. Either every record is
// added or, on the first invalid record, none is.
func (t *Table) InsertAll(recs []Record, allowMissing bool) error {
	rows := make([]Record, 0, len(recs))
	for _, rec := range recs {
		row, err := t.normalize(rec, allowMissing)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil
	}

	prev := t.rows
	t.rows = append(slices.Clip(prev), rows...)
	if err := t.Save(); err != nil {
		t.rows = prev
		return err
	}
	return nil
}

func (t *Table) normalize(rec Record, allowMissing bool) (Record, error) {
	for field := range rec {
		if err := t.checkField(field); err != nil {
			return nil, err
		}
	}

	row := rec.Clone()
	var missing []string
	for _, field := range t.schema {
		if _, ok := row[field]; !ok {
			missing = append(missing, field)
			row[field] = Null
		}
	}
	if len(missing) > 0 && !allowMissing {
		return nil, &IncompleteRecordError{Path: t.path, Missing: missing}
	}
	return row, nil
}

// DeleteWhere removes every record whose field equals value and rewrites the
// file. It returns the number of removed records; nothing is written when
// none match.
func (t *Table) DeleteWhere(field, value string) (int, error) {
	if err := t.checkField(field); err != nil {
		return 0, err
	}

	kept := make([]Record, 0, len(t.rows))
	for _, row := range t.rows {
		if row[field] != value {
			kept = append(kept, row)
		}
	}
	removed := len(t.rows) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	prev := t.rows
	t.rows = kept
	if err := t.Save(); err != nil {
		t.rows = prev
		return 0, err
	}
	return removed, nil
}

// Update sets field to value on every record whose keyField equals keyValue
// and rewrites the file. It returns the number of records changed.
func (t *Table) Update(keyField, keyValue, field, value string) (int, error) {
	if err := t.checkField(keyField); err != nil {
		return 0, err
	}
	if err := t.checkField(field); err != nil {
		return 0, err
	}

	next := make([]Record, len(t.rows))
	changed := 0
	for i, row := range t.rows {
		if row[keyField] == keyValue {
			row = row.Clone()
			row[field] = value
			changed++
		}
		next[i] = row
	}
	if changed == 0 {
		return 0, nil
	}

	prev := t.rows
	t.rows = next
	if err := t.Save(); err != nil {
		t.rows = prev
		return 0, err
	}
	return changed, nil
}

// ForEach calls fn with a copy of every record in insertion order. It stops
// at the first error fn returns. Records added or removed by fn are not seen
// by the running iteration.
func (t *Table) ForEach(fn func(Record) error) error {
	for _, row := range slices.Clone(t.rows) {
		if err := fn(row.Clone()); err != nil {
			return err
		}
	}
	return nil
}

// Rows returns copies of all records in insertion order.
func (t *Table) Rows() []Record {
	out := make([]Record, len(t.rows))
	for i, row := range t.rows {
		out[i] = row.Clone()
	}
	return out
}

// Save rewrites the file from the in-memory records. The new content is
// written to a temporary file and renamed over the old one.
func (t *Table) Save() error {
	data := encodeTable(t.schema, t.rows)
	if err := atomicwriter.WriteFile(t.path, data, 0644); err != nil {
		return &PersistenceError{Path: t.path, Op: "writing", Err: err}
	}
	return nil
}

// Reload re-reads the file and replaces the in-memory records when the row
// count or any value differs. It reports whether anything changed. The file
// header must still match the table schema.
func (t *Table) Reload() (bool, error) {
	schema, rows, err := readFile(t.path)
	if err != nil {
		return false, err
	}
	if !slices.Equal(schema, t.schema) {
		return false, &ParseError{Path: t.path, Line: 1, Reason: "header no longer matches table schema"}
	}

	if len(rows) == len(t.rows) {
		same := true
		for i := range rows {
			if !t.sameRow(rows[i], t.rows[i]) {
				same = false
				break
			}
		}
		if same {
			return false, nil
		}
	}
	t.rows = rows
	return true, nil
}

func (t *Table) sameRow(a, b Record) bool {
	for _, field := range t.schema {
		if a[field] != b[field] {
			return false
		}
	}
	return true
}
