// Package archive writes generated reports to object storage as JSON snapshots.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// ObjectWriter stores one object.
type ObjectWriter interface {
	Write(ctx context.Context, name, contentType string, data []byte) error
}

// Archiver stores reports under <prefix>/<period days>/<RFC3339 timestamp>.json.
type Archiver struct {
	writer ObjectWriter
	prefix string
	retry  RetryConfig
	logger *zap.Logger
}

// New creates an Archiver that writes through w.
func New(w ObjectWriter, prefix string, retry RetryConfig, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{writer: w, prefix: prefix, retry: retry, logger: logger.Named("archive")}
}

// ObjectName returns the object path a report is stored at.
func (a *Archiver) ObjectName(periodDays int, generatedAt time.Time) string {
	return path.Join(a.prefix, strconv.Itoa(periodDays), generatedAt.UTC().Format(time.RFC3339)+".json")
}

// Archive marshals report and writes it, retrying transient failures.
func (a *Archiver) Archive(ctx context.Context, periodDays int, generatedAt time.Time, report any) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	name := a.ObjectName(periodDays, generatedAt)

	attempts := 0
	err = WithRetry(ctx, a.retry, func(ctx context.Context) error {
		attempts++
		return a.writer.Write(ctx, name, "application/json", data)
	})
	if err != nil {
		return fmt.Errorf("archive %s after %d attempt(s): %w", name, attempts, err)
	}
	a.logger.Debug("report archived", zap.String("object", name), zap.Int("bytes", len(data)))
	return nil
}

// GCSWriter writes objects to a Google Cloud Storage bucket.
type GCSWriter struct {
	bucket *storage.BucketHandle
}

// NewGCSWriter creates a GCSWriter for bucket.
func NewGCSWriter(bucket *storage.BucketHandle) *GCSWriter {
	return &GCSWriter{bucket: bucket}
}

func (g *GCSWriter) Write(ctx context.Context, name, contentType string, data []byte) error {
	w := g.bucket.Object(name).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close object: %w", err)
	}
	return nil
}
