package journal

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/hushlabs/speakd/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeral(t *testing.T) {
	cfg := config.JournalConfig{RetentionMode: "ephemeral"}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Append(context.Background(), Entry{Digest: "abc"}); err != nil {
		t.Fatalf("append should be a no-op: %v", err)
	}
	entries, err := s.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if entries != nil {
		t.Fatalf("expected no entries in ephemeral mode, got %d", len(entries))
	}
}

func TestAppendAndList(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.JournalConfig{Path: filepath.Join(tmp, "journal.db"), RetentionMode: "persistent"}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	first := Entry{Digest: "d1", Model: "aura-2-thalia-en", TextChars: 13, Cached: false, Bytes: 4096, LatencyMS: 210}
	second := Entry{Digest: "d1", Model: "aura-2-thalia-en", TextChars: 13, Cached: true, Bytes: 4096, LatencyMS: 1}
	if err := s.Append(context.Background(), first); err != nil {
		t.Fatalf("append first: %v", err)
	}
	if err := s.Append(context.Background(), second); err != nil {
		t.Fatalf("append second: %v", err)
	}

	entries, err := s.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if !entries[0].Cached || entries[1].Cached {
		t.Fatal("expected newest-first ordering with cached entry on top")
	}
	if entries[0].Digest != "d1" || entries[0].Model != "aura-2-thalia-en" {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
}

func TestPruneCutoffExactWithinSecond(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.JournalConfig{Path: filepath.Join(tmp, "journal.db"), RetentionMode: "persistent", RetentionDays: 1}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	// fractional seconds chosen so a lexicographic comparison of trimmed
	// timestamp strings (".1" vs ".15") would order them wrongly
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.clock = func() time.Time { return base.Add(100 * time.Millisecond) }
	if err := s.Append(context.Background(), Entry{Digest: "expired"}); err != nil {
		t.Fatalf("append expired: %v", err)
	}
	s.clock = func() time.Time { return base.Add(200 * time.Millisecond) }
	if err := s.Append(context.Background(), Entry{Digest: "fresh"}); err != nil {
		t.Fatalf("append fresh: %v", err)
	}

	s.clock = func() time.Time { return base.Add(24 * time.Hour).Add(150 * time.Millisecond) }
	if err := s.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	entries, err := s.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry after prune, got %d", len(entries))
	}
	if entries[0].Digest != "fresh" {
		t.Fatalf("entry older than the cutoff must be pruned, kept %q", entries[0].Digest)
	}
}

func TestPruneByDaysAndEntries(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.JournalConfig{Path: filepath.Join(tmp, "journal.db"), RetentionMode: "persistent", RetentionDays: 1, MaxEntries: 1}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	s.clock = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := s.Append(context.Background(), Entry{Digest: "old"}); err != nil {
		t.Fatalf("append old: %v", err)
	}

	s.clock = func() time.Time { return time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := s.Append(context.Background(), Entry{Digest: "new"}); err != nil {
		t.Fatalf("append new: %v", err)
	}
	if err := s.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	entries, err := s.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry after prune, got %d", len(entries))
	}
	if entries[0].Digest != "new" {
		t.Fatalf("expected old entry pruned, kept %q", entries[0].Digest)
	}
}
