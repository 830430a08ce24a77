package pipeline

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-rentals/config"
	"github.com/aluiziolira/go-scrape-rentals/models"
)

type mockWriter struct {
	mu          sync.Mutex
	batches     [][]*models.CardRecord
	closed      bool
	validateErr error
}

func (mw *mockWriter) Write(records []*models.CardRecord) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	copyBatch := make([]*models.CardRecord, len(records))
	copy(copyBatch, records)
	mw.batches = append(mw.batches, copyBatch)
	return nil
}

func (mw *mockWriter) Close() error {
	mw.mu.Lock()
	mw.closed = true
	mw.mu.Unlock()
	return nil
}

func (mw *mockWriter) Validate() error {
	return mw.validateErr
}

func (mw *mockWriter) written() []*models.CardRecord {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	var out []*models.CardRecord
	for _, batch := range mw.batches {
		out = append(out, batch...)
	}
	return out
}

func (mw *mockWriter) batchSizes() []int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	sizes := make([]int, 0, len(mw.batches))
	for _, batch := range mw.batches {
		sizes = append(sizes, len(batch))
	}
	return sizes
}

type blockingWriter struct {
	blockCh chan struct{}
}

func (bw *blockingWriter) Write(records []*models.CardRecord) error {
	<-bw.blockCh
	return nil
}

func (bw *blockingWriter) Close() error {
	return nil
}

func (bw *blockingWriter) Validate() error {
	return nil
}

type failingWriter struct{}

func (failingWriter) Write([]*models.CardRecord) error { return errors.New("disk full") }
func (failingWriter) Close() error                     { return nil }
func (failingWriter) Validate() error                  { return nil }

func testRecord(name, price string) *models.CardRecord {
	rec := models.NewCardRecord()
	rec.CarName = name
	rec.Model = name + " 2024"
	rec.Year = "2024"
	rec.ActualPrice = price
	rec.OriginalVehicle = "kia seltos"
	rec.Period = "Daily"
	return rec
}

func TestPipelineProcessValidationAndRepeats(t *testing.T) {
	cfg := config.DefaultConfig()
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start(1)

	valid := testRecord("Kia Seltos", "AED 120")
	invalid := testRecord("Kia Seltos", "AED 130")
	invalid.Model = ""
	identical := testRecord("Kia Seltos", "AED 120")

	if err := p.Process(valid, invalid, identical); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := len(writer.written()); got != 2 {
		t.Fatalf("written records = %d, want 2", got)
	}

	metrics := p.GetMetrics()
	validation, ok := metrics["validation_errors"].(map[string]int)
	if !ok {
		t.Fatalf("expected validation errors map")
	}
	if validation["invalid_record"] != 1 {
		t.Fatalf("invalid_record = %d, want 1", validation["invalid_record"])
	}
	if len(validation) != 1 {
		t.Fatalf("validation errors = %v, want only invalid_record", validation)
	}
	if got := metrics["repeated_rows"].(int64); got != 1 {
		t.Fatalf("repeated_rows = %d, want 1", got)
	}
	if got := metrics["processed_records"].(int64); got != 2 {
		t.Fatalf("processed = %d, want 2", got)
	}
}

func TestPipelineSentinelRowsAreValid(t *testing.T) {
	cfg := config.DefaultConfig()
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start(1)

	if err := p.Process(models.NewCardRecord()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := len(writer.written()); got != 1 {
		t.Fatalf("written records = %d, want 1", got)
	}
}

func TestPipelineRepeatTrackingDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RepeatWindow = 0
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start(1)

	if err := p.Process(testRecord("MG 5", "AED 90"), testRecord("MG 5", "AED 90")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := len(writer.written()); got != 2 {
		t.Fatalf("written records = %d, want 2", got)
	}
	if got := p.GetMetrics()["repeated_rows"].(int64); got != 0 {
		t.Fatalf("repeated_rows = %d, want 0 when tracking is off", got)
	}
}

func TestPipelinePreservesOrderWithSingleWorker(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 3
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start(1)

	for i := 0; i < 10; i++ {
		if err := p.Process(testRecord("Car", "AED "+strconv.Itoa(i))); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got := writer.written()
	if len(got) != 10 {
		t.Fatalf("written records = %d, want 10", len(got))
	}
	for i, rec := range got {
		if want := "AED " + strconv.Itoa(i); rec.ActualPrice != want {
			t.Fatalf("row %d price = %q, want %q", i, rec.ActualPrice, want)
		}
	}
}

func TestPipelineBatchFlushThreshold(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 64
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start(1)

	for i := 0; i < 65; i++ {
		if err := p.Process(testRecord("Car "+strconv.Itoa(i), "AED 100")); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	sizes := writer.batchSizes()
	if len(sizes) != 2 {
		t.Fatalf("batch writes = %d, want 2", len(sizes))
	}
	if sizes[0] != 64 || sizes[1] != 1 {
		t.Fatalf("batch sizes = %v, want [64 1]", sizes)
	}
}

func TestPipelineProcessAfterClose(t *testing.T) {
	cfg := config.DefaultConfig()
	p := NewPipeline(context.Background(), &mockWriter{}, cfg)
	p.Start(1)
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Process(testRecord("Car", "AED 1")); !errors.Is(err, ErrPipelineClosed) {
		t.Fatalf("process after close = %v, want ErrPipelineClosed", err)
	}
}

func TestPipelineWriteErrorSurfaces(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 1
	p := NewPipeline(context.Background(), failingWriter{}, cfg)
	p.Start(1)

	_ = p.Process(testRecord("Car", "AED 1"))
	err := p.Close()
	if err == nil {
		t.Fatalf("expected write error")
	}
}

func TestPipelineCloseTimeout(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 1

	writer := &blockingWriter{blockCh: make(chan struct{})}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start(1)

	if err := p.Process(testRecord("Blocked", "AED 1")); err != nil {
		t.Fatalf("process: %v", err)
	}

	previousTimeout := drainTimeout
	drainTimeout = 25 * time.Millisecond
	t.Cleanup(func() {
		drainTimeout = previousTimeout
		close(writer.blockCh)
	})

	if err := p.Close(); err == nil || !errors.Is(err, ErrPipelineCloseTimeout) {
		t.Fatalf("expected close timeout error, got %v", err)
	}
}
