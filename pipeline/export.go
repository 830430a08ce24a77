package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-rentals/config"
	"github.com/aluiziolira/go-scrape-rentals/models"
	"github.com/aluiziolira/go-scrape-rentals/period"
)

const timestampLayout = "2006-01-02T15:04:05.000Z"

// FileName builds car_data_<vehicles>_<utc timestamp>.<ext>. An empty vehicle
// list, or one whose first entry is blank, yields the all_cars marker.
func FileName(vehicles []string, now time.Time, ext string) string {
	part := "all_cars"
	if len(vehicles) > 0 && strings.TrimSpace(vehicles[0]) != "" {
		slugs := make([]string, 0, len(vehicles))
		for _, v := range vehicles {
			slugs = append(slugs, period.FileSlug(v))
		}
		part = period.SanitizeFileName(strings.Join(slugs, "_"))
	}

	stamp := strings.NewReplacer(":", "-", ".", "-").Replace(now.UTC().Format(timestampLayout))
	return fmt.Sprintf("car_data_%s_%s.%s", part, stamp, strings.TrimPrefix(ext, "."))
}

// Export writes records to cfg.OutputDir in cfg.OutputFormat and returns the
// primary file path. The multi format writes xlsx, csv and jsonl side by side
// and returns the workbook.
func Export(ctx context.Context, records []*models.CardRecord, vehicles []string, cfg *config.Config) (string, error) {
	now := time.Now()
	writer, path, err := createWriter(cfg, vehicles, now)
	if err != nil {
		return "", err
	}

	m, err := writeAll(ctx, writer, records, cfg)
	if err != nil {
		return "", err
	}
	if err := writer.Validate(); err != nil {
		return "", fmt.Errorf("validate output: %w", err)
	}

	slog.Info("export written",
		slog.String("path", path),
		slog.Int64("rows", m["processed_records"].(int64)),
		slog.Int64("repeated", m["repeated_rows"].(int64)),
		slog.Any("rejected", m["validation_errors"]),
	)
	return path, nil
}

// writeAll pushes records through a pipeline into w and closes w. When the
// pipeline misses its drain deadline, w is closed only after the worker exits.
func writeAll(ctx context.Context, w OutputWriter, records []*models.CardRecord, cfg *config.Config) (map[string]interface{}, error) {
	p := NewPipeline(ctx, w, cfg)
	p.Start(1)
	processErr := p.Process(records...)
	closeErr := p.Close()

	if errors.Is(closeErr, ErrPipelineCloseTimeout) {
		go func() {
			p.wg.Wait()
			if err := w.Close(); err != nil {
				slog.Warn("close writer after drain timeout", slog.Any("error", err))
			}
		}()
		return nil, fmt.Errorf("drain pipeline: %w", closeErr)
	}

	writerErr := w.Close()
	switch {
	case processErr != nil:
		return nil, fmt.Errorf("export records: %w", processErr)
	case closeErr != nil:
		return nil, fmt.Errorf("drain pipeline: %w", closeErr)
	case writerErr != nil:
		return nil, fmt.Errorf("close writer: %w", writerErr)
	}
	return p.GetMetrics(), nil
}

func createWriter(cfg *config.Config, vehicles []string, now time.Time) (OutputWriter, string, error) {
	pathFor := func(ext string) string {
		return filepath.Join(cfg.OutputDir, FileName(vehicles, now, ext))
	}

	switch cfg.OutputFormat {
	case "xlsx":
		path := pathFor("xlsx")
		w, err := NewXLSXWriter(path)
		return w, path, err
	case "csv":
		path := pathFor("csv")
		w, err := NewCSVWriter(path)
		return w, path, err
	case "json":
		path := pathFor("jsonl")
		w, err := NewJSONWriter(path)
		return w, path, err
	case "multi":
		path := pathFor("xlsx")
		xw, err := NewXLSXWriter(path)
		if err != nil {
			return nil, "", err
		}
		cw, err := NewCSVWriter(pathFor("csv"))
		if err != nil {
			xw.Close()
			return nil, "", err
		}
		jw, err := NewJSONWriter(pathFor("jsonl"))
		if err != nil {
			xw.Close()
			cw.Close()
			return nil, "", err
		}
		return NewMultiWriter(xw, cw, jw), path, nil
	default:
		return nil, "", fmt.Errorf("unsupported format: %s", cfg.OutputFormat)
	}
}
