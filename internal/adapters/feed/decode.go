package feed

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Format names a feed encoding.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat parses a configured format name. An empty name yields "".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// FormatFor returns explicit when set, otherwise the format implied by the
// location's extension. Unknown extensions default to CSV.
func FormatFor(location string, explicit Format) Format {
	if explicit != "" {
		return explicit
	}
	loc := location
	if i := strings.IndexAny(loc, "?#"); i >= 0 {
		loc = loc[:i]
	}
	if strings.EqualFold(path.Ext(loc), ".json") {
		return FormatJSON
	}
	return FormatCSV
}

// Table is a decoded payload: a header and records aligned to it. Records
// may be shorter than the header.
type Table struct {
	Header  []string
	Records [][]string
}

// Decode reads a whole payload in the given format.
func Decode(r io.Reader, format Format) (*Table, error) {
	switch format {
	case FormatCSV, "":
		return decodeCSV(r)
	case FormatJSON:
		return decodeJSON(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func decodeCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: csv header: %w", ErrDecode, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	t := &Table{Header: trimAll(header)}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: csv: %w", ErrDecode, err)
		}
		t.Records = append(t.Records, trimAll(rec))
	}
	return t, nil
}

//go:embed rows.schema.json
var rowsSchemaJSON string

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource("rows.schema.json", strings.NewReader(rowsSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, compiledSchemaErr = compiler.Compile("rows.schema.json")
	})
	return compiledSchema, compiledSchemaErr
}

// decodeJSON reads an array of flat objects. The header is the union of keys
// in sorted order; numbers keep their literal text, booleans become
// "true"/"false" and null becomes empty.
func decodeJSON(r io.Reader) (*Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read: %w", ErrDecode, err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return &Table{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("%w: json: %w", ErrDecode, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("%w: json: trailing content", ErrDecode)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchema, err)
	}

	items, _ := value.([]any)
	seen := map[string]struct{}{}
	var header []string
	for _, item := range items {
		for k := range item.(map[string]any) {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				header = append(header, k)
			}
		}
	}
	slices.Sort(header)

	t := &Table{Header: trimAll(header), Records: make([][]string, 0, len(items))}
	for _, item := range items {
		obj := item.(map[string]any)
		rec := make([]string, len(header))
		for i, k := range header {
			rec[i] = scalarString(obj[k])
		}
		t.Records = append(t.Records, rec)
	}
	return t, nil
}

func scalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(x)
	}
}

func trimAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	return out
}
