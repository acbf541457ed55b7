package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalArchive implements Archive using the local filesystem. Each job gets
// one payload file plus a metadata JSON under .meta/.
type LocalArchive struct {
	basePath string
}

// NewLocalArchive creates a new local filesystem archive
func NewLocalArchive(basePath string) (*LocalArchive, error) {
	if err := os.MkdirAll(filepath.Join(basePath, ".meta"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &LocalArchive{basePath: basePath}, nil
}

// Save stores the raw upload for a job and returns its metadata
func (a *LocalArchive) Save(ctx context.Context, jobID uuid.UUID, filename string, contentType string, r io.Reader) (*FileInfo, error) {
	storedFilename := fmt.Sprintf("%s_%s", jobID.String()[:8], sanitizeFilename(filename))
	filePath := filepath.Join(a.basePath, storedFilename)

	f, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(filePath) // Cleanup on error
		return nil, fmt.Errorf("failed to write archive file: %w", err)
	}

	info := &FileInfo{
		JobID:       jobID,
		Name:        filename,
		Size:        size,
		ContentType: contentType,
		Path:        storedFilename,
		CreatedAt:   time.Now(),
	}

	if err := a.saveMetadata(jobID, info); err != nil {
		os.Remove(filePath) // Cleanup on error
		return nil, err
	}
	return info, nil
}

// Open retrieves the archived upload for a job
func (a *LocalArchive) Open(ctx context.Context, jobID uuid.UUID) (io.ReadCloser, *FileInfo, error) {
	info, err := a.GetInfo(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(filepath.Join(a.basePath, info.Path))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open archived file: %w", err)
	}
	return f, info, nil
}

// Delete removes the archived upload for a job
func (a *LocalArchive) Delete(ctx context.Context, jobID uuid.UUID) error {
	info, err := a.GetInfo(ctx, jobID)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(a.basePath, info.Path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete archived file: %w", err)
	}
	os.Remove(a.metaPath(jobID))
	return nil
}

// GetInfo returns metadata without reading the file
func (a *LocalArchive) GetInfo(_ context.Context, jobID uuid.UUID) (*FileInfo, error) {
	data, err := os.ReadFile(a.metaPath(jobID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no archived upload for job %s", jobID)
		}
		return nil, fmt.Errorf("failed to read archive metadata: %w", err)
	}

	var info FileInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse archive metadata: %w", err)
	}
	return &info, nil
}

func (a *LocalArchive) metaPath(jobID uuid.UUID) string {
	return filepath.Join(a.basePath, ".meta", jobID.String()+".json")
}

// saveMetadata saves file metadata to a JSON file
func (a *LocalArchive) saveMetadata(jobID uuid.UUID, info *FileInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal archive metadata: %w", err)
	}
	if err := os.WriteFile(a.metaPath(jobID), data, 0644); err != nil {
		return fmt.Errorf("failed to write archive metadata: %w", err)
	}
	return nil
}

// sanitizeFilename removes unsafe characters from filenames
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		"..", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}
