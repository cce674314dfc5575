package recordstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Ext is the file extension of every table file.
const Ext = ".csv"

// Store resolves table names to files under one data directory. Names may
// contain forward slashes to place tables in sub-directories.
type Store struct {
	root string
}

// Open returns a Store rooted at dir, creating the directory if needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &PersistenceError{Path: dir, Op: "creating data directory", Err: err}
	}
	return &Store{root: dir}, nil
}

// Root returns the data directory.
func (s *Store) Root() string { return s.root }

// Path returns the file a table name resolves to.
func (s *Store) Path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name)+Ext)
}

// Exists reports whether the table file for name is present.
func (s *Store) Exists(name string) (bool, error) {
	return fileExists(s.Path(name))
}

// Create makes a new empty table and persists its header immediately.
func (s *Store) Create(schema []string, name string) (*Table, error) {
	return CreateFile(s.Path(name), schema)
}

// CreateWith makes a new table holding recs with a single file write.
func (s *Store) CreateWith(schema []string, name string, recs []Record, allowMissing bool) (*Table, error) {
	return CreateFileWith(s.Path(name), schema, recs, allowMissing)
}

// Load parses an existing table. A missing file yields a *NotFoundError.
func (s *Store) Load(name string) (*Table, error) {
	return LoadFile(s.Path(name))
}

// CreateOrLoad loads the table if its file exists and creates it otherwise.
// A loaded table must carry exactly the expected schema.
func (s *Store) CreateOrLoad(schema []string, name string) (*Table, error) {
	exists, err := s.Exists(name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return s.Create(schema, name)
	}

	t, err := s.Load(name)
	if err != nil {
		return nil, err
	}
	if !slices.Equal(t.schema, schema) {
		return nil, &ParseError{
			Path:   t.path,
			Line:   1,
			Reason: fmt.Sprintf("header %v does not match expected schema %v", t.schema, schema),
		}
	}
	return t, nil
}

// Remove deletes the table's file. A missing file is not an error.
func (s *Store) Remove(name string) error {
	path := s.Path(name)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &PersistenceError{Path: path, Op: "removing", Err: err}
	}
	return nil
}

// List returns the names of the tables in sub-directory dir, relative to
// dir and without extension. Hidden files are skipped. A missing directory
// yields an empty list. Order is not meaningful.
func (s *Store) List(dir string) ([]string, error) {
	path := filepath.Join(s.root, filepath.FromSlash(dir))
	entries, err := os.ReadDir(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &PersistenceError{Path: path, Op: "listing", Err: err}
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != Ext {
			continue
		}
		names = append(names, strings.TrimSuffix(name, Ext))
	}
	return names, nil
}
