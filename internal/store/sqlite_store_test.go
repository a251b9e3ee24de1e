package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	// Absent key is not an error
	data, err := s.Load(ctx, "roleforge-storage")
	if err != nil {
		t.Fatalf("Load on empty store failed: %v", err)
	}
	if data != nil {
		t.Fatalf("Expected nil for missing key, got %q", data)
	}

	if err := s.Save(ctx, "roleforge-storage", []byte(`{"characters":[]}`)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data, err = s.Load(ctx, "roleforge-storage")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(data) != `{"characters":[]}` {
		t.Errorf("Unexpected blob %q", data)
	}
}

func TestSaveOverwritesAndCountsRevisions(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	for _, v := range []string{"one", "two", "three"} {
		if err := s.Save(ctx, "k", []byte(v)); err != nil {
			t.Fatalf("Save %s failed: %v", v, err)
		}
	}

	data, _ := s.Load(ctx, "k")
	if string(data) != "three" {
		t.Errorf("Expected last write to win, got %q", data)
	}

	info, err := s.stat(ctx, "k")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Revision != 3 {
		t.Errorf("Expected revision 3, got %d", info.Revision)
	}
	if info.Size != len("three") {
		t.Errorf("Expected size %d, got %d", len("three"), info.Size)
	}
}

func TestDeleteAndList(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	s.Save(ctx, "b", []byte("2"))
	s.Save(ctx, "a", []byte("1"))

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 || list[0].Key != "a" || list[1].Key != "b" {
		t.Fatalf("Unexpected listing: %+v", list)
	}

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete(ctx, "missing"); err != nil {
		t.Fatalf("Delete of missing key failed: %v", err)
	}
	if info, _ := s.stat(ctx, "a"); info != nil {
		t.Errorf("Key not deleted")
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "roleforge.db")

	s, err := NewSQLiteStoreWithDSN(dsn)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := s.Save(ctx, "k", []byte("persisted")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	s.Close()

	s2, err := NewSQLiteStoreWithDSN(dsn)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer s2.Close()

	data, err := s2.Load(ctx, "k")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(data) != "persisted" {
		t.Errorf("Expected persisted blob, got %q", data)
	}
}

func TestVersion(t *testing.T) {
	s, err := NewSQLiteStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	v, err := s.Version(context.Background())
	if err != nil {
		t.Fatalf("Version failed: %v", err)
	}
	if v == "" {
		t.Error("Expected a version string")
	}
}

func TestVecVersion(t *testing.T) {
	s, err := NewSQLiteStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	v, err := s.VecVersion(context.Background())
	if err != nil {
		t.Fatalf("VecVersion failed: %v", err)
	}
	if !strings.HasPrefix(v, "v") {
		t.Errorf("Expected a v-prefixed version, got %q", v)
	}
}
