package cache

import (
	"os"
	"testing"
)

func TestKeyDeterministic(t *testing.T) {
	a := Key("Hello, world!", "aura-2-thalia-en")
	b := Key("Hello, world!", "aura-2-thalia-en")
	if a != b {
		t.Fatalf("same inputs produced different keys: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
}

func TestKeyVariesWithInputs(t *testing.T) {
	base := Key("hello", "aura-2-thalia-en")
	if Key("hello.", "aura-2-thalia-en") == base {
		t.Fatal("different text must produce a different key")
	}
	if Key("hello", "aura-2-orion-en") == base {
		t.Fatal("different model must produce a different key")
	}
}

func TestKeySeparatorPreventsAmbiguity(t *testing.T) {
	if Key("ab", "c") == Key("b", "ca") {
		t.Fatal("boundary shift between model and text must not collide")
	}
}

func TestLookupMissThenHit(t *testing.T) {
	s, err := New(t.TempDir(), "/static")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	digest := Key("hello", "aura-2-thalia-en")

	p, hit, err := s.Lookup(digest)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if hit {
		t.Fatal("expected miss on empty store")
	}

	audio := []byte("fake-mp3-bytes")
	if err := s.Write(digest, audio); err != nil {
		t.Fatalf("write: %v", err)
	}

	p2, hit, err := s.Lookup(digest)
	if err != nil {
		t.Fatalf("lookup after write: %v", err)
	}
	if !hit {
		t.Fatal("expected hit after write")
	}
	if p != p2 {
		t.Fatalf("candidate path changed between lookups: %s vs %s", p, p2)
	}

	got, err := os.ReadFile(p2)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(got) != string(audio) {
		t.Fatalf("stored bytes differ from written bytes")
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, "/static")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	digest := Key("temp check", "aura-2-thalia-en")
	if err := s.Write(digest, []byte("audio")); err != nil {
		t.Fatalf("write: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly the artifact, got %d entries", len(entries))
	}
	if entries[0].Name() != digest+Extension {
		t.Fatalf("unexpected artifact name %q", entries[0].Name())
	}
}

func TestLink(t *testing.T) {
	s, err := New(t.TempDir(), "/static/")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	digest := Key("hello", "aura-2-thalia-en")
	want := "/static/" + digest + ".mp3"
	if got := s.Link(digest); got != want {
		t.Fatalf("link = %q, want %q", got, want)
	}
}
