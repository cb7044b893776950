// Package tabular turns delimited text into header-keyed records with
// per-field type coercion.
package tabular

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

const DefaultMaxBytes int64 = 4 << 20

var (
	ErrEmpty         = errors.New("dataset has no header row")
	ErrHeader        = errors.New("invalid header row")
	ErrRowShape      = errors.New("row has the wrong number of fields")
	ErrTooLarge      = errors.New("dataset exceeds size limit")
	ErrMalformedText = errors.New("malformed delimited text")
)

// Record is one data row keyed by column name. Values are int64, float64, bool
// or string.
type Record map[string]any

type Dataset struct {
	Columns []string `json:"columns"`
	Rows    []Record `json:"rows"`
}

type Options struct {
	// Comma defaults to ','.
	Comma rune
	// MaxBytes caps the input; 0 means DefaultMaxBytes, negative disables the cap.
	MaxBytes int64
	// DisableCoercion keeps every value as a string.
	DisableCoercion bool
}

// RowError locates a failure by 1-based input line.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }
func (e *RowError) Unwrap() error { return e.Err }

// Parse reads delimited text: the first record names the columns, blank lines
// are skipped, and every later record must have exactly one field per column.
func Parse(r io.Reader, opts Options) (*Dataset, error) {
	limit := opts.MaxBytes
	if limit == 0 {
		limit = DefaultMaxBytes
	}
	if limit > 0 {
		r = &capReader{r: r, remaining: limit}
	}

	cr := csv.NewReader(bufio.NewReader(r))
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	// Row shape is checked here so the error can carry our sentinel.
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, wrapReadErr(err)
	}
	columns, err := normalizeHeader(header)
	if err != nil {
		return nil, &RowError{Line: 1, Err: err}
	}

	ds := &Dataset{Columns: columns, Rows: []Record{}}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, wrapReadErr(err)
		}
		line, _ := cr.FieldPos(0)
		if isBlank(rec) {
			continue
		}
		if len(rec) != len(columns) {
			return nil, &RowError{
				Line: line,
				Err:  fmt.Errorf("%w: want %d, got %d", ErrRowShape, len(columns), len(rec)),
			}
		}
		row := make(Record, len(columns))
		for i, col := range columns {
			if opts.DisableCoercion {
				row[col] = rec[i]
			} else {
				row[col] = Coerce(rec[i])
			}
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds, nil
}

func normalizeHeader(header []string) ([]string, error) {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		h = strings.TrimSpace(h)
		if h == "" {
			return nil, fmt.Errorf("%w: column %d has no name", ErrHeader, i+1)
		}
		if prev, dup := seen[h]; dup {
			return nil, fmt.Errorf("%w: column %q repeated at %d and %d", ErrHeader, h, prev+1, i+1)
		}
		seen[h] = i
		out[i] = h
	}
	return out, nil
}

// csv.Reader already drops fully empty lines; this also drops lines of only
// delimiters and whitespace, e.g. ",,".
func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func wrapReadErr(err error) error {
	if errors.Is(err, ErrTooLarge) {
		return err
	}
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &RowError{Line: pe.StartLine, Err: fmt.Errorf("%w: %v", ErrMalformedText, pe.Err)}
	}
	return err
}

// Numbers are accepted in plain decimal and exponent notation only, so ids
// like "0x1F", "NaN" or "Inf" stay strings.
var floatPattern = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?$`)

// Coerce converts a field to int64, float64 or bool when it parses
// unambiguously, and returns it unchanged otherwise.
func Coerce(field string) any {
	s := strings.TrimSpace(field)
	if s == "" {
		return field
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	if !floatPattern.MatchString(s) {
		return field
	}
	if !strings.ContainsAny(s, ".eE") {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return field
	}
	return f
}

type capReader struct {
	r         io.Reader
	remaining int64
}

func (c *capReader) Read(p []byte) (int, error) {
	if c.remaining < 0 {
		return 0, ErrTooLarge
	}
	// Read one byte past the cap so an input of exactly the cap still passes.
	if int64(len(p)) > c.remaining+1 {
		p = p[:c.remaining+1]
	}
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		return 0, ErrTooLarge
	}
	return n, err
}
