package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestNewSQLiteCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rag.db")
	db, err := New(context.Background(), Options{Driver: "sqlite", Path: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()
	if err := db.Exec("CREATE TABLE probe (id INTEGER)").Error; err != nil {
		t.Fatalf("exec: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file not created: %v", err)
	}
}

func TestNewUnknownDriver(t *testing.T) {
	if _, err := New(context.Background(), Options{Driver: "oracle"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
