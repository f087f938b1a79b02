package database

import (
	"testing"
	"testing/fstest"
	"time"
)

func TestParseMigrationName(t *testing.T) {
	tests := []struct {
		file    string
		id      string
		desc    string
		wantErr bool
	}{
		{"0001_create_classes.sql", "0001", "create classes", false},
		{"0004_create_ratings.sql", "0004", "create ratings", false},
		{"broken.sql", "", "", true},
		{"_missing_id.sql", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			id, desc, err := parseMigrationName(tt.file)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseMigrationName() error = %v, wantErr %v", err, tt.wantErr)
			}
			if id != tt.id || desc != tt.desc {
				t.Errorf("parseMigrationName() = %q, %q, want %q, %q", id, desc, tt.id, tt.desc)
			}
		})
	}
}

func TestLoadSortsSQLFiles(t *testing.T) {
	runner := &MigrationRunner{files: fstest.MapFS{
		"0002_b.sql": {Data: []byte("SELECT 2;")},
		"0001_a.sql": {Data: []byte("SELECT 1;")},
		"README.md":  {Data: []byte("docs")},
	}}

	migrations, err := runner.load()
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if len(migrations) != 2 || migrations[0].ID != "0001" || migrations[1].ID != "0002" {
		t.Fatalf("load() = %+v", migrations)
	}
	if migrations[1].SQL != "SELECT 2;" || migrations[1].Checksum != checksum("SELECT 2;") {
		t.Errorf("migration 0002 = %+v", migrations[1])
	}
}

func TestMergeDetectsModifiedFiles(t *testing.T) {
	at := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	migrations := []Migration{
		{ID: "0001", Checksum: checksum("a")},
		{ID: "0002", Checksum: checksum("b")},
		{ID: "0003", Checksum: checksum("c")},
	}
	applied := map[string]appliedMigration{
		"0001": {ID: "0001", Checksum: checksum("a"), AppliedAt: at},
		"0002": {ID: "0002", Checksum: checksum("changed"), AppliedAt: at},
	}

	got := merge(migrations, applied)
	if got[0].AppliedAt == nil || got[0].Modified {
		t.Errorf("0001 = %+v, want applied and unmodified", got[0])
	}
	if !got[1].Modified {
		t.Error("0002 should be reported as modified")
	}
	if got[2].AppliedAt != nil {
		t.Error("0003 should be pending")
	}
}
