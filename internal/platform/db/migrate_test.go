package db

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/responda/responda/migrations"
)

func TestMigrator_Migrations(t *testing.T) {
	fsys := fstest.MapFS{
		"00002_nacherfassung.sql": {Data: []byte("-- +goose Up\nCREATE TABLE b (id INT);\n-- +goose Down\nDROP TABLE b;\n")},
		"00001_patient_docs.sql":  {Data: []byte("-- +goose Up\nCREATE TABLE a (id INT);\n-- +goose Down\nDROP TABLE a;\n")},
		"README.md":               {Data: []byte("not a migration")},
	}

	got, err := NewMigrator(nil, fsys).Migrations()
	if err != nil {
		t.Fatalf("Migrations() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(got))
	}
	if got[0].Version != 1 || got[0].Name != "00001_patient_docs.sql" {
		t.Errorf("unexpected first migration %+v", got[0])
	}
	if got[1].Version != 2 {
		t.Errorf("expected version 2, got %d", got[1].Version)
	}
	if got[0].Applied || got[1].Applied {
		t.Error("migrations listed without a schema must not be marked applied")
	}
}

func TestMigrator_EmbeddedMigrations(t *testing.T) {
	got, err := NewMigrator(nil, migrations.FS).Migrations()
	if err != nil {
		t.Fatalf("Migrations() error: %v", err)
	}
	want := []string{"patient_docs", "nacherfassung", "upload_requests"}
	if len(got) != len(want) {
		t.Fatalf("expected %d migrations, got %d", len(want), len(got))
	}
	for i, w := range want {
		if got[i].Version != int64(i+1) {
			t.Errorf("migration %d: expected version %d, got %d", i, i+1, got[i].Version)
		}
		if !strings.Contains(got[i].Name, w) {
			t.Errorf("migration %d: expected name containing %s, got %s", i, w, got[i].Name)
		}
	}
}

func TestMigrator_EmbeddedMigrationsHaveDown(t *testing.T) {
	entries, err := migrations.FS.ReadDir(".")
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		data, err := migrations.FS.ReadFile(e.Name())
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), "-- +goose Up") || !strings.Contains(string(data), "-- +goose Down") {
			t.Errorf("%s: missing goose Up/Down annotations", e.Name())
		}
	}
}

func TestMigrator_RejectsInvalidSchema(t *testing.T) {
	m := NewMigrator(nil, fstest.MapFS{})
	if _, err := m.Up(context.Background(), "tenant_x; DROP SCHEMA public"); err == nil {
		t.Error("expected error for invalid schema")
	}
	if _, err := m.Status(context.Background(), "tenant-x"); err == nil {
		t.Error("expected error for invalid schema")
	}
}
