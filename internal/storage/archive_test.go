package storage

import (
	"context"
	"errors"
	"testing"

	"timelens/internal/domain"
)

func TestArchiveRoundTrip(t *testing.T) {
	archive, err := NewArchive(t.TempDir())
	if err != nil {
		t.Fatalf("NewArchive: %v", err)
	}

	job := domain.GenerationJob{RunID: "run-1", UserID: "u-1", Capability: domain.CapabilityPreset, PresetID: "style-vintage-film"}
	result := domain.GenerationResult{RunID: "run-1", State: domain.StateCompleted, Backend: "stability", OutputURL: "https://cdn/out.png"}
	if err := archive.SaveResult(context.Background(), job, result); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	loaded, err := archive.LoadResult(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("LoadResult: %v", err)
	}
	if loaded.State != domain.StateCompleted || loaded.OutputURL != "https://cdn/out.png" {
		t.Fatalf("unexpected record %+v", loaded)
	}
}

func TestArchiveOverwritesSameRun(t *testing.T) {
	archive, err := NewArchive(t.TempDir())
	if err != nil {
		t.Fatalf("NewArchive: %v", err)
	}

	job := domain.GenerationJob{RunID: "run-2", UserID: "u-1"}
	first := domain.GenerationResult{RunID: "run-2", State: domain.StateFailed, Reason: "transient"}
	second := domain.GenerationResult{RunID: "run-2", State: domain.StateCompleted, OutputURL: "https://cdn/v2.png"}
	if err := archive.SaveResult(context.Background(), job, first); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := archive.SaveResult(context.Background(), job, second); err != nil {
		t.Fatalf("second save: %v", err)
	}

	loaded, err := archive.LoadResult(context.Background(), "run-2")
	if err != nil {
		t.Fatalf("LoadResult: %v", err)
	}
	if loaded.State != domain.StateCompleted {
		t.Fatalf("state = %q, want the later write", loaded.State)
	}
}

func TestArchiveMissingRun(t *testing.T) {
	archive, err := NewArchive(t.TempDir())
	if err != nil {
		t.Fatalf("NewArchive: %v", err)
	}
	if _, err := archive.LoadResult(context.Background(), "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestArchiveRejectsTraversal(t *testing.T) {
	archive, err := NewArchive(t.TempDir())
	if err != nil {
		t.Fatalf("NewArchive: %v", err)
	}
	job := domain.GenerationJob{RunID: "../../etc/passwd"}
	if err := archive.SaveResult(context.Background(), job, domain.GenerationResult{}); err == nil {
		t.Fatal("expected traversal rejection")
	}
}

func TestArchiveRequiresBasePath(t *testing.T) {
	if _, err := NewArchive("  "); err == nil {
		t.Fatal("expected error for empty base path")
	}
}
