// Package recordstore keeps tables of delimited, quoted rows on disk. It is the
// system of record for the file storage backend.
package recordstore

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// Delimiter separates fields within a row.
const Delimiter = ','

const fileExt = ".csv"

var ErrInvalidTable = errors.New("invalid table name")

type Store struct {
	root string

	// appendMu serializes appends so rows from concurrent writers never
	// interleave. Rewrites are not serialized here; callers that need an
	// atomic read-modify-write hold their own guard.
	appendMu sync.Mutex
}

// Open returns a store rooted at dir, creating the directory if needed.
func Open(dir string) (*Store, error) {
	const op = "recordstore.Open"

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Store{root: dir}, nil
}

// Root returns the directory holding the tables.
func (s *Store) Root() string {
	return s.root
}

// ReadAll returns every parsable row of table in file order. A table that was
// never written reads as empty. Rows that fail to parse are skipped.
func (s *Store) ReadAll(table string) ([][]string, error) {
	const op = "recordstore.Store.ReadAll"

	path, err := s.path(table)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer f.Close()

	r := newReader(bufio.NewReader(f))

	var rows [][]string
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				continue
			}
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		rows = append(rows, unescapeFields(row))
	}

	return rows, nil
}

// Append adds one row to the end of table and syncs it to stable storage
// before returning. A row whose fields are all blank is dropped.
func (s *Store) Append(table string, row []string) error {
	const op = "recordstore.Store.Append"

	if blankRow(row) {
		return nil
	}

	path, err := s.path(table)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := f.Write(EncodeRow(row)); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Rewrite replaces the whole content of table with rows. The new content is
// written to a temporary file next to the table and renamed over it, so a
// reader sees either the old table or the new one.
func (s *Store) Rewrite(table string, rows [][]string) error {
	const op = "recordstore.Store.Rewrite"

	path, err := s.path(table)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	tmpName := tmp.Name()

	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%s: %w", op, err)
	}

	w := bufio.NewWriter(tmp)
	for _, row := range rows {
		if _, err := w.Write(EncodeRow(row)); err != nil {
			return fail(err)
		}
	}

	if err := w.Flush(); err != nil {
		return fail(err)
	}

	if err := tmp.Sync(); err != nil {
		return fail(err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Remove deletes table. Removing a missing table is not an error.
func (s *Store) Remove(table string) error {
	const op = "recordstore.Store.Remove"

	path, err := s.path(table)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) path(table string) (string, error) {
	if table == "" || filepath.IsAbs(table) || strings.Contains(table, "..") || strings.ContainsRune(table, '\\') {
		return "", fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}

	return filepath.Join(s.root, filepath.FromSlash(table)+fileExt), nil
}

func blankRow(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

var (
	// The reader folds a CRLF inside a quoted field into LF, so carriage
	// returns and the escape byte itself are written as two-byte escapes.
	fieldEscaper   = strings.NewReplacer(`\`, `\\`, "\r", `\r`)
	fieldUnescaper = strings.NewReplacer(`\\`, `\`, `\r`, "\r")
)

// emptyRow is how a row holding one empty field is written; a bare newline
// would read back as no row at all.
var emptyRow = []byte("\"\"\n")

// EncodeRow renders fields as one newline-terminated row. Fields holding the
// delimiter, a quote, a line break or leading space are quoted, with embedded
// quotes doubled. Backslashes and carriage returns are escaped.
func EncodeRow(fields []string) []byte {
	if len(fields) == 1 && fields[0] == "" {
		return slices.Clone(emptyRow)
	}

	escaped := make([]string, len(fields))
	for i, f := range fields {
		escaped[i] = fieldEscaper.Replace(f)
	}

	var buf bytes.Buffer

	w := csv.NewWriter(&buf)
	w.Comma = Delimiter

	// Writing to a bytes.Buffer cannot fail.
	_ = w.Write(escaped)
	w.Flush()

	return buf.Bytes()
}

// DecodeRow parses a single encoded row. It is the inverse of EncodeRow.
func DecodeRow(line []byte) ([]string, error) {
	row, err := newReader(bytes.NewReader(line)).Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return unescapeFields(row), nil
}

func unescapeFields(row []string) []string {
	for i, f := range row {
		if strings.IndexByte(f, '\\') >= 0 {
			row[i] = fieldUnescaper.Replace(f)
		}
	}
	return row
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = Delimiter
	cr.FieldsPerRecord = -1
	return cr
}
