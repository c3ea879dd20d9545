package assetindex

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/retrowaves/retrowaves/internal/safepath"
)

func TestValidateAcceptsFileWithinRoots(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "song.wav")
	if err := os.WriteFile(file, []byte("data"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	idx, err := Open(filepath.Join(dir, "index.sqlite"), safepath.Roots{dir})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer idx.Close()

	e, err := idx.Validate(file)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !e.Valid {
		t.Fatal("expected entry to be valid")
	}

	got, ok := idx.Lookup(file)
	if !ok || !got.Valid {
		t.Fatal("expected lookup to reflect validated entry")
	}
}

func TestValidateRejectsPathOutsideRoots(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	file := filepath.Join(outside, "intruder.wav")
	_ = os.WriteFile(file, []byte("x"), 0o644)

	idx, err := Open(filepath.Join(dir, "index.sqlite"), safepath.Roots{dir})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer idx.Close()

	e, err := idx.Validate(file)
	if err == nil {
		t.Fatal("expected error for path outside roots")
	}
	if e.Valid {
		t.Fatal("expected invalid entry")
	}
}

func TestValidateRejectsMissingFile(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "gone.wav")

	idx, err := Open(filepath.Join(dir, "index.sqlite"), safepath.Roots{dir})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer idx.Close()

	if _, err := idx.Validate(missing); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestIndexSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "song.wav")
	_ = os.WriteFile(file, []byte("data"), 0o644)
	dbPath := filepath.Join(dir, "index.sqlite")

	idx, err := Open(dbPath, safepath.Roots{dir})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := idx.Validate(file); err != nil {
		t.Fatalf("validate: %v", err)
	}
	idx.Close()

	reopened, err := Open(dbPath, safepath.Roots{dir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	e, ok := reopened.Lookup(file)
	if !ok || !e.Valid {
		t.Fatal("expected entry to persist across reopen")
	}
}

func TestRefresherSweepsOnStart(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "song.wav")
	_ = os.WriteFile(file, []byte("data"), 0o644)

	idx, err := Open(filepath.Join(dir, "index.sqlite"), safepath.Roots{dir})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer idx.Close()

	r := NewRefresher(idx, RefresherConfig{Paths: []string{dir}, Interval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	defer cancel()

	deadline := time.After(time.Second)
	for {
		if e, ok := idx.Lookup(file); ok && e.Valid {
			break
		}
		select {
		case <-deadline:
			t.Fatal("refresher never validated the configured path")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
