package pipeline

import (
	"fmt"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/aluiziolira/go-scrape-rentals/models"
)

// SheetName is the worksheet holding exported rows.
const SheetName = "Car Data"

// XLSXWriter buffers rows in a workbook and saves it on Close.
type XLSXWriter struct {
	path string
	file *excelize.File
	row  int
	mu   sync.Mutex
}

// NewXLSXWriter creates a workbook with the header row in place.
func NewXLSXWriter(filename string) (*XLSXWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	w := &XLSXWriter{path: filename, file: f}
	if err := w.appendRow(models.Columns); err != nil {
		f.Close()
		return nil, fmt.Errorf("write xlsx header: %w", err)
	}
	if err := f.SetColWidth(SheetName, "A", "K", 22); err != nil {
		f.Close()
		return nil, fmt.Errorf("set column width: %w", err)
	}
	return w, nil
}

// Write appends records below the last written row.
func (xw *XLSXWriter) Write(records []*models.CardRecord) error {
	xw.mu.Lock()
	defer xw.mu.Unlock()

	for _, rec := range records {
		if err := xw.appendRow(rec.Values()); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", xw.row+1, err)
		}
	}
	return nil
}

func (xw *XLSXWriter) appendRow(values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, xw.row+1)
	if err != nil {
		return err
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	if err := xw.file.SetSheetRow(SheetName, cell, &row); err != nil {
		return err
	}
	xw.row++
	return nil
}

// Close saves the workbook to disk.
func (xw *XLSXWriter) Close() error {
	xw.mu.Lock()
	defer xw.mu.Unlock()

	saveErr := xw.file.SaveAs(xw.path)
	closeErr := xw.file.Close()
	if saveErr != nil {
		return fmt.Errorf("save xlsx: %w", saveErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close xlsx: %w", closeErr)
	}
	return nil
}

// Validate ensures the saved workbook exists and holds data rows.
func (xw *XLSXWriter) Validate() error {
	if err := validateFile(xw.path); err != nil {
		return err
	}
	if xw.row <= 1 {
		return fmt.Errorf("xlsx has no data rows")
	}
	return nil
}

// Rows returns the number of rows written including the header.
func (xw *XLSXWriter) Rows() int {
	xw.mu.Lock()
	defer xw.mu.Unlock()
	return xw.row
}
