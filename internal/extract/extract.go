// Package extract reads delimited extract files. Each file is a sequence of
// comma-separated records; fields are trimmed and normalized to NFC before
// the caller sees them, and blank fields read as absent (empty string).
package extract

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Reader iterates the records of one extract file.
type Reader struct {
	f     *os.File
	cr    *csv.Reader
	lines int
}

// Open opens the extract file at path. A missing file is not an error: the
// returned Reader is nil and the caller skips the kind entirely.
func Open(path string, hasHeader bool) (*Reader, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open extract %s: %w", path, err)
	}
	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	r := &Reader{f: f, cr: cr}
	if hasHeader {
		if _, err := cr.Read(); err != nil && err != io.EOF {
			f.Close()
			return nil, fmt.Errorf("read header of %s: %w", path, err)
		}
	}
	return r, nil
}

// Read returns the next record with every field trimmed, or io.EOF at the
// end of the file.
func (r *Reader) Read() ([]string, error) {
	rec, err := r.cr.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("read line %d: %w", r.lines+1, err)
	}
	r.lines++
	trimAll(rec)
	return rec, nil
}

// Lines reports how many records have been read so far, excluding the
// header.
func (r *Reader) Lines() int { return r.lines }

// Close releases the underlying file.
func (r *Reader) Close() error { return r.f.Close() }

// trimAll strips surrounding whitespace from every field and normalizes the
// text to NFC so differently-composed source systems compare equal.
func trimAll(fields []string) {
	for i, f := range fields {
		f = strings.TrimSpace(f)
		if !norm.NFC.IsNormalString(f) {
			f = norm.NFC.String(f)
		}
		fields[i] = f
	}
}

// Field returns fields[i] when present, else the empty string. Extract rows
// routinely omit trailing optional columns.
func Field(fields []string, i int) string {
	if i < len(fields) {
		return fields[i]
	}
	return ""
}

// ParseDate parses a date field using the given layout. A blank field
// yields the zero time with no error.
func ParseDate(field, layout string) (time.Time, error) {
	if field == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(layout, field)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", field, err)
	}
	return t, nil
}
