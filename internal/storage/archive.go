package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"timelens/internal/domain"
)

// Archive persists generation records as JSON files on the local filesystem.
// It is intended for development and test environments where PostgreSQL is
// not available.
type Archive struct {
	basePath string
}

// NewArchive initializes an Archive rooted at basePath.
func NewArchive(basePath string) (*Archive, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &Archive{basePath: basePath}, nil
}

// BasePath returns the configured root directory.
func (a *Archive) BasePath() string {
	if a == nil {
		return ""
	}
	return a.basePath
}

type record struct {
	RunID        string    `json:"run_id"`
	UserID       string    `json:"user_id"`
	Capability   string    `json:"capability"`
	PresetID     string    `json:"preset_id,omitempty"`
	State        string    `json:"state"`
	Backend      string    `json:"backend,omitempty"`
	OutputURL    string    `json:"output_url,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	FallbackUsed bool      `json:"fallback_used,omitempty"`
	ParentID     string    `json:"parent_id,omitempty"`
	GroupKey     string    `json:"group_key,omitempty"`
	SavedAt      time.Time `json:"saved_at"`
}

// SaveResult writes the record at results/<run_id>.json, replacing any
// earlier write for the same run.
func (a *Archive) SaveResult(ctx context.Context, job domain.GenerationJob, result domain.GenerationResult) error {
	if a == nil {
		return errors.New("storage: no archive configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := sanitizeKey("results/" + job.RunID + ".json")
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(record{
		RunID:        job.RunID,
		UserID:       job.UserID,
		Capability:   string(job.Capability),
		PresetID:     job.PresetID,
		State:        string(result.State),
		Backend:      result.Backend,
		OutputURL:    result.OutputURL,
		Reason:       result.Reason,
		FallbackUsed: result.FallbackUsed,
		ParentID:     job.ParentID,
		GroupKey:     job.Group,
		SavedAt:      time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode record: %w", err)
	}

	fullPath := filepath.Join(a.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("storage: ensure directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return fmt.Errorf("storage: write record: %w", err)
	}
	return nil
}

// LoadResult reads back a stored record, mainly for the admin CLI.
func (a *Archive) LoadResult(ctx context.Context, runID string) (*domain.GenerationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := sanitizeKey("results/" + runID + ".json")
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(a.basePath, filepath.FromSlash(key)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read record: %w", err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("storage: decode record: %w", err)
	}
	return &domain.GenerationResult{
		RunID:        rec.RunID,
		State:        domain.ResultState(rec.State),
		Backend:      rec.Backend,
		OutputURL:    rec.OutputURL,
		Reason:       rec.Reason,
		FallbackUsed: rec.FallbackUsed,
	}, nil
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
