package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// record is one CSV line addressed by header name, so column order in
// the feed does not matter and extra columns are ignored.
type record struct {
	index map[string]int
	cells []string
}

func (r record) get(column string) string {
	i, ok := r.index[column]
	if !ok || i >= len(r.cells) {
		return ""
	}
	return r.cells[i]
}

// feedReader streams records from a vendor CSV.
type feedReader struct {
	csv   *csv.Reader
	index map[string]int
	line  int
}

// newFeedReader decodes src per the named encoding and reads the
// header. Vendor feeds are ragged and quote carelessly, so the reader
// is lenient about both.
func newFeedReader(src io.Reader, encoding string) (*feedReader, error) {
	decoded, err := decodeReader(src, encoding)
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(decoded)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(strings.ToLower(col))] = i
	}
	if _, ok := index["sku"]; !ok {
		return nil, errors.New("feed has no sku column")
	}
	return &feedReader{csv: cr, index: index, line: 1}, nil
}

// Next returns the next record and its 1-based line number, or io.EOF.
func (f *feedReader) Next() (record, int, error) {
	cells, err := f.csv.Read()
	if err != nil {
		return record{}, f.line, err
	}
	f.line++
	return record{index: f.index, cells: cells}, f.line, nil
}

func decodeReader(src io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "utf-8", "utf8":
		return src, nil
	case "windows-1252", "cp1252":
		return transform.NewReader(src, charmap.Windows1252.NewDecoder()), nil
	case "latin-1", "iso-8859-1":
		return transform.NewReader(src, charmap.ISO8859_1.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("unsupported feed encoding %q", encoding)
	}
}
