package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	appinvoicing "github.com/clinicerp/backend/internal/application/invoicing"
	"github.com/clinicerp/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// MemoryReportArchive keeps archived reports in process memory. It is used
// when no bucket is configured.
type MemoryReportArchive struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
}

// NewMemoryReportArchive creates an empty archive
func NewMemoryReportArchive() *MemoryReportArchive {
	return &MemoryReportArchive{objects: make(map[string]memoryObject)}
}

// Upload stores a copy of data under key
func (a *MemoryReportArchive) Upload(_ context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return errors.New("archive key is required")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.objects[key] = memoryObject{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

// Download returns a copy of the object under key
func (a *MemoryReportArchive) Download(_ context.Context, key string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	obj, ok := a.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrObjectNotFound)
	}
	return append([]byte(nil), obj.data...), nil
}

// Keys lists the stored keys in order
func (a *MemoryReportArchive) Keys() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	keys := make([]string, 0, len(a.objects))
	for k := range a.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ appinvoicing.ReportArchive = (*MemoryReportArchive)(nil)

// NewReportArchive returns the S3 archive when a bucket is configured and the
// in-memory archive otherwise.
func NewReportArchive(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (appinvoicing.ReportArchive, error) {
	if cfg.Bucket == "" {
		logger.Warn("No storage bucket configured, submitted reports are archived in memory only")
		return NewMemoryReportArchive(), nil
	}
	archive, err := NewS3ReportArchive(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := archive.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return archive, nil
}
