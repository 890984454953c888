package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestBoltStore_RoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "test.db")
	s, err := OpenBolt(p, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if err := s.Set("alpha", []byte("one")); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := s.Get("alpha")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "one" {
		t.Fatalf("got %q want %q", got, "one")
	}

	missing, err := s.Get("nope")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing key, got %q", missing)
	}
}

func TestBoltStore_UsedBytesCountsAllKeys(t *testing.T) {
	p := filepath.Join(t.TempDir(), "test.db")
	s, err := OpenBolt(p, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	s.Set("a", []byte("xx"))
	s.Set("bb", []byte("yyy"))

	used, err := s.UsedBytes()
	if err != nil {
		t.Fatalf("used: %v", err)
	}
	want := int64(1 + 2 + 2 + 3)
	if used != want {
		t.Fatalf("used = %d want %d", used, want)
	}

	s.Delete("a")
	used, _ = s.UsedBytes()
	if used != 5 {
		t.Fatalf("used after delete = %d want 5", used)
	}
}

func TestBoltStore_QuotaEnforced(t *testing.T) {
	p := filepath.Join(t.TempDir(), "test.db")
	s, err := OpenBolt(p, 20)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if err := s.Set("k", []byte("0123456789")); err != nil {
		t.Fatalf("set within quota: %v", err)
	}
	err = s.Set("k2", []byte("0123456789"))
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}

	// Overwriting the existing key releases its old bytes first.
	if err := s.Set("k", []byte("0123456789abcdefghi")); err != nil {
		t.Fatalf("overwrite within quota: %v", err)
	}
}

func TestMemStore_QuotaMatchesBoltSemantics(t *testing.T) {
	s := NewMem(20)

	if err := s.Set("k", []byte("0123456789")); err != nil {
		t.Fatalf("set within quota: %v", err)
	}
	if err := s.Set("k2", []byte("0123456789")); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if err := s.Set("k", []byte("0123456789abcdefghi")); err != nil {
		t.Fatalf("overwrite within quota: %v", err)
	}

	used, _ := s.UsedBytes()
	if used != 20 {
		t.Fatalf("used = %d want 20", used)
	}
}
