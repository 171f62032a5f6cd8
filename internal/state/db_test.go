package state

import (
	"bytes"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "loom.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDB_SaveLoad(t *testing.T) {
	db := openTestDB(t)

	if err := db.Save("scheduler", []byte(`{"jobs":[]}`)); err != nil {
		t.Fatalf("save: %v", err)
	}

	blob, ok, err := db.Load("scheduler")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatal("expected key to exist")
	}
	if !bytes.Equal(blob, []byte(`{"jobs":[]}`)) {
		t.Errorf("loaded blob = %q", blob)
	}
}

func TestDB_SaveReplaces(t *testing.T) {
	db := openTestDB(t)

	if err := db.Save("k", []byte("v1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := db.Save("k", []byte("v2")); err != nil {
		t.Fatalf("save again: %v", err)
	}

	blob, ok, err := db.Load("k")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if string(blob) != "v2" {
		t.Errorf("blob = %q, want v2", blob)
	}
}

func TestDB_LoadMissing(t *testing.T) {
	db := openTestDB(t)

	_, ok, err := db.Load("absent")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Error("expected ok=false for missing key")
	}
}

func TestDB_Delete(t *testing.T) {
	db := openTestDB(t)

	if err := db.Save("k", []byte("v")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := db.Delete("k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := db.Load("k"); ok {
		t.Error("expected key to be gone after delete")
	}

	// Deleting an absent key is a no-op.
	if err := db.Delete("absent"); err != nil {
		t.Errorf("delete absent: %v", err)
	}
}

func TestDB_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loom.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.Save("k", []byte("survives")); err != nil {
		t.Fatalf("save: %v", err)
	}
	db.Close()

	db2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()

	blob, ok, err := db2.Load("k")
	if err != nil || !ok {
		t.Fatalf("load after reopen: ok=%v err=%v", ok, err)
	}
	if string(blob) != "survives" {
		t.Errorf("blob = %q, want survives", blob)
	}
}

func TestMemory_SaveLoadDelete(t *testing.T) {
	m := NewMemory()

	if err := m.Save("k", []byte("v")); err != nil {
		t.Fatalf("save: %v", err)
	}
	blob, ok, _ := m.Load("k")
	if !ok || string(blob) != "v" {
		t.Errorf("load = %q ok=%v", blob, ok)
	}

	if err := m.Delete("k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := m.Load("k"); ok {
		t.Error("expected key gone")
	}
}

func TestMemory_SaveCopiesBlob(t *testing.T) {
	m := NewMemory()

	src := []byte("original")
	m.Save("k", src)
	src[0] = 'X'

	blob, _, _ := m.Load("k")
	if string(blob) != "original" {
		t.Errorf("stored blob aliased caller memory: %q", blob)
	}
}
