package updater

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStateStoreLoadEmpty(t *testing.T) {
	store, err := NewStateStore(filepath.Join(t.TempDir(), "nested"))
	if err != nil {
		t.Fatalf("NewStateStore: %v", err)
	}
	st, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st != (State{}) {
		t.Fatalf("expected zero state, got %+v", st)
	}
}

func TestStateStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStateStore(dir)
	if err != nil {
		t.Fatalf("NewStateStore: %v", err)
	}
	want := State{
		Version:         "1.2.3",
		PreviousVersion: "1.2.2",
		Channel:         ChannelBeta,
		BackupPath:      filepath.Join(dir, "cipherctl.previous"),
		UpdatedAt:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Fatalf("expected updated_at %v, got %v", want.UpdatedAt, got.UpdatedAt)
	}
	got.UpdatedAt = want.UpdatedAt
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != stateFile {
		t.Fatalf("expected only %s, got %v", stateFile, entries)
	}
}

func TestStateStoreCorrupt(t *testing.T) {
	store, err := NewStateStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStateStore: %v", err)
	}
	if err := os.WriteFile(store.Path(), []byte("version: [oops"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := store.Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestParseChannel(t *testing.T) {
	cases := map[string]string{
		"":         ChannelStable,
		"stable":   ChannelStable,
		" Stable ": ChannelStable,
		"BETA":     ChannelBeta,
	}
	for in, want := range cases {
		got, err := ParseChannel(in)
		if err != nil {
			t.Fatalf("ParseChannel(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseChannel(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := ParseChannel("nightly"); err == nil {
		t.Fatal("expected error for unknown channel")
	}
}
