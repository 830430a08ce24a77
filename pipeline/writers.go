package pipeline

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aluiziolira/go-scrape-rentals/models"
)

// rowSink is the buffered file shared by the text exporters. Rows are laid
// out in models.Columns order whatever the encoding.
type rowSink struct {
	mu   sync.Mutex
	path string
	file *os.File
	buf  *bufio.Writer
	rows int
}

func openSink(filename string) (*rowSink, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", filepath.Base(filename), err)
	}
	return &rowSink{path: filename, file: f, buf: bufio.NewWriter(f)}, nil
}

func (s *rowSink) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	flushErr := s.buf.Flush()
	closeErr := s.file.Close()
	if flushErr != nil {
		return fmt.Errorf("flush %s: %w", filepath.Base(s.path), flushErr)
	}
	return closeErr
}

func (s *rowSink) validate() error {
	return validateFile(s.path)
}

// CSVWriter writes a header of display column names followed by one line per record.
type CSVWriter struct {
	sink *rowSink
	enc  *csv.Writer
}

// NewCSVWriter creates filename and writes the header.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	sink, err := openSink(filename)
	if err != nil {
		return nil, err
	}
	w := &CSVWriter{sink: sink, enc: csv.NewWriter(sink.buf)}
	if err := w.writeRow(models.Columns); err != nil {
		sink.close()
		return nil, fmt.Errorf("csv header: %w", err)
	}
	return w, nil
}

func (w *CSVWriter) writeRow(values []string) error {
	if err := w.enc.Write(values); err != nil {
		return err
	}
	w.enc.Flush()
	return w.enc.Error()
}

// Write appends records.
func (w *CSVWriter) Write(records []*models.CardRecord) error {
	w.sink.mu.Lock()
	defer w.sink.mu.Unlock()
	for _, rec := range records {
		if err := w.writeRow(rec.Values()); err != nil {
			return fmt.Errorf("csv row %d: %w", w.sink.rows+1, err)
		}
		w.sink.rows++
	}
	return nil
}

// Close flushes and closes the file.
func (w *CSVWriter) Close() error { return w.sink.close() }

// Validate checks the file exists and holds at least the header.
func (w *CSVWriter) Validate() error { return w.sink.validate() }

// JSONWriter writes one object per line keyed by the display column names,
// so its schema matches the spreadsheet header.
type JSONWriter struct {
	sink *rowSink
}

// NewJSONWriter creates filename.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	sink, err := openSink(filename)
	if err != nil {
		return nil, err
	}
	return &JSONWriter{sink: sink}, nil
}

// Write appends records as JSON lines.
func (w *JSONWriter) Write(records []*models.CardRecord) error {
	w.sink.mu.Lock()
	defer w.sink.mu.Unlock()
	for _, rec := range records {
		line, err := encodeRow(rec.Values())
		if err != nil {
			return fmt.Errorf("json row %d: %w", w.sink.rows+1, err)
		}
		if _, err := w.sink.buf.Write(line); err != nil {
			return fmt.Errorf("json row %d: %w", w.sink.rows+1, err)
		}
		w.sink.rows++
	}
	return w.sink.buf.Flush()
}

// encodeRow renders values as an object whose keys follow models.Columns
// in order. A map would be encoded with sorted keys.
func encodeRow(values []string) ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, col := range models.Columns {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(values[i])
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteString("}\n")
	return b.Bytes(), nil
}

// Close flushes and closes the file.
func (w *JSONWriter) Close() error { return w.sink.close() }

// Validate checks the file exists and is not empty.
func (w *JSONWriter) Validate() error { return w.sink.validate() }

func validateFile(name string) error {
	info, err := os.Stat(name)
	if err != nil {
		return fmt.Errorf("stat %s: %w", filepath.Base(name), err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("%s is empty", filepath.Base(name))
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
