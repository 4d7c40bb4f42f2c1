package ingestor

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// FileStats is the result of ProcessFile.
type FileStats struct {
	BatchToken     string `json:"batch_token"`
	TotalLines     int    `json:"total_lines"`
	ProcessedLines int    `json:"processed_lines"`
	FailedLines    int    `json:"failed_lines"`
}

// JSONStats is the result of ProcessJSON.
type JSONStats struct {
	BatchToken       string `json:"batch_token"`
	TotalEntries     int    `json:"total_entries"`
	ProcessedEntries int    `json:"processed_entries"`
	FailedEntries    int    `json:"failed_entries"`
}

// ProcessFile reads path line by line, applying ProcessLine to each.
// Every invocation is tagged with a fresh batch token (see
// BatchTokenGenerator) threaded through the progress and error log
// lines for that run and returned to the caller for correlation.
func (ing *Ingestor) ProcessFile(ctx context.Context, path string) (FileStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileStats{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	batch := ing.tokenGen.Generate()
	stats := FileStats{BatchToken: batch}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		stats.TotalLines++
		line := scanner.Text()

		if err := ing.ProcessLine(ctx, line, "", ""); err != nil {
			stats.FailedLines++
			logLineError(batch, err)
		} else {
			stats.ProcessedLines++
		}

		if ing.progressInterval > 0 && stats.TotalLines%ing.progressInterval == 0 {
			slog.Info("ingestion progress", "batch", batch, "lines", stats.TotalLines)
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read %s: %w", path, err)
	}

	slog.Info("file ingestion complete", "batch", batch, "path", path,
		"total_lines", stats.TotalLines, "processed_lines", stats.ProcessedLines, "failed_lines", stats.FailedLines)
	return stats, nil
}

// ProcessJSON accepts a JSON document that is either a list of log
// records or a JSON-encoded string containing such a list, the shape
// of an Elasticsearch export. Each record's "message" field is
// extracted, falling back to "_source.message", and fed through the
// per-line pipeline.
func (ing *Ingestor) ProcessJSON(ctx context.Context, data []byte) (JSONStats, error) {
	batch := ing.tokenGen.Generate()

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return JSONStats{}, fmt.Errorf("parse json: %w", err)
	}
	if s, ok := raw.(string); ok {
		if err := json.Unmarshal([]byte(s), &raw); err != nil {
			return JSONStats{}, fmt.Errorf("parse nested json string: %w", err)
		}
	}

	entries, ok := raw.([]any)
	if !ok {
		return JSONStats{}, errors.New("json input must be an array of log records")
	}

	stats := JSONStats{BatchToken: batch}
	for _, item := range entries {
		stats.TotalEntries++

		record, _ := item.(map[string]any)
		message := extractMessage(record)
		if message == "" {
			stats.FailedEntries++
			continue
		}

		if err := ing.ProcessLine(ctx, message, "", ""); err != nil {
			stats.FailedEntries++
			logLineError(batch, err)
		} else {
			stats.ProcessedEntries++
		}
	}

	slog.Info("json ingestion complete", "batch", batch,
		"total_entries", stats.TotalEntries, "processed_entries", stats.ProcessedEntries, "failed_entries", stats.FailedEntries)
	return stats, nil
}

func extractMessage(record map[string]any) string {
	if record == nil {
		return ""
	}
	if msg, ok := record["message"].(string); ok && msg != "" {
		return msg
	}
	if source, ok := record["_source"].(map[string]any); ok {
		if msg, ok := source["message"].(string); ok {
			return msg
		}
	}
	return ""
}

func logLineError(batch string, err error) {
	var rej *RejectionError
	switch {
	case errors.Is(err, ErrNoMatch):
		slog.Debug("line not recognized", "batch", batch)
	case errors.As(err, &rej):
		slog.Debug("line rejected", "batch", batch, "reason", rej.Reason)
	default:
		slog.Error("store error processing line", "batch", batch, "error", err)
	}
}
