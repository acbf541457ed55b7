// Package storage archives raw uploaded statement files so a finished import
// can be audited or replayed.
package storage

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// FileInfo contains metadata about an archived upload
type FileInfo struct {
	JobID       uuid.UUID `json:"job_id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Path        string    `json:"path"` // Internal storage path
	CreatedAt   time.Time `json:"created_at"`
}

// Archive stores the original bytes of each import, keyed by the import job
// that consumed them.
type Archive interface {
	// Save stores the raw upload for a job and returns its metadata
	Save(ctx context.Context, jobID uuid.UUID, filename string, contentType string, r io.Reader) (*FileInfo, error)

	// Open retrieves the archived upload for a job
	Open(ctx context.Context, jobID uuid.UUID) (io.ReadCloser, *FileInfo, error)

	// Delete removes the archived upload for a job
	Delete(ctx context.Context, jobID uuid.UUID) error

	// GetInfo returns metadata without reading the file
	GetInfo(ctx context.Context, jobID uuid.UUID) (*FileInfo, error)
}

// Config holds archive configuration
type Config struct {
	Enabled   bool
	LocalPath string
}

// New creates an Archive based on configuration.
func New(cfg *Config) (Archive, error) {
	return NewLocalArchive(cfg.LocalPath)
}
