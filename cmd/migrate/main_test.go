package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeMigration(t *testing.T, dir, name, sql string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(sql), 0o644); err != nil {
		t.Fatalf("Failed to write migration: %v", err)
	}
}

func TestReadMigrations(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "0002_create_detection_runs.sql", "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.detection_runs` (run_id STRING);")
	writeMigration(t, dir, "0001_create_scored_flags.sql", "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.scored_flags` (run_id STRING);")
	writeMigration(t, dir, "notes.txt", "not a migration")
	writeMigration(t, dir, "001_bad_version.sql", "SELECT 1;")

	migrations, err := readMigrations(dir, "my-project", "procurement")
	if err != nil {
		t.Fatalf("readMigrations failed: %v", err)
	}

	if len(migrations) != 2 {
		t.Fatalf("Expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[0].Name != "create_scored_flags" {
		t.Errorf("Unexpected first migration: %+v", migrations[0])
	}
	if migrations[1].Version != 2 || migrations[1].Name != "create_detection_runs" {
		t.Errorf("Unexpected second migration: %+v", migrations[1])
	}

	if !strings.Contains(migrations[0].SQL, "`my-project.procurement.scored_flags`") {
		t.Errorf("Placeholders not substituted: %s", migrations[0].SQL)
	}
	if strings.Contains(migrations[0].SQL, "{{PROJECT_ID}}") {
		t.Errorf("Placeholder left in SQL: %s", migrations[0].SQL)
	}
}

func TestReadMigrations_ChecksumIgnoresPlaceholderValues(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "0001_init.sql", "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.t` (id INT64);")

	first, err := readMigrations(dir, "project-a", "dataset-a")
	if err != nil {
		t.Fatalf("readMigrations failed: %v", err)
	}
	second, err := readMigrations(dir, "project-b", "dataset-b")
	if err != nil {
		t.Fatalf("readMigrations failed: %v", err)
	}

	if first[0].Checksum != second[0].Checksum {
		t.Error("Checksum must not depend on project/dataset substitution")
	}
	if first[0].SQL == second[0].SQL {
		t.Error("Substituted SQL should differ between projects")
	}
}

func TestReadMigrations_MissingDir(t *testing.T) {
	if _, err := readMigrations(filepath.Join(t.TempDir(), "absent"), "p", "d"); err == nil {
		t.Error("Expected an error for a missing migrations directory")
	}
}

func TestMigrationPattern(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
	}{
		{"0001_create_scored_flags.sql", true},
		{"0002_create_detection_runs.sql", true},
		{"001_short_version.sql", false},
		{"0001_missing_extension", false},
		{"0001.sql", false},
		{"init_0001.sql", false},
	}

	for _, tt := range tests {
		if got := migrationPattern.MatchString(tt.filename); got != tt.valid {
			t.Errorf("MatchString(%q) = %v, want %v", tt.filename, got, tt.valid)
		}
	}
}
