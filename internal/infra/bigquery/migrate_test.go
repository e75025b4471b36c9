package bigquery

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestParseMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0002_second.sql":       {Data: []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.b` (x INT64);")},
		"m/0001_first.sql":        {Data: []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.a` (x INT64);")},
		"m/README.md":             {Data: []byte("ignored")},
		"m/001_bad_version.sql":   {Data: []byte("ignored")},
		"m/0003.sql":              {Data: []byte("ignored, no name")},
		"m/invalid_0004_test.sql": {Data: []byte("ignored")},
	}
	ds := Dataset{ProjectID: "penny-prod", DatasetID: "penny"}

	got, err := parseMigrations(fsys, "m", ds)
	if err != nil {
		t.Fatalf("parseMigrations() error = %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(got), got)
	}
	if got[0].Version != 1 || got[0].Name != "first" || got[1].Version != 2 {
		t.Errorf("unexpected order: %+v", got)
	}
	if !strings.Contains(got[0].SQL, "`penny-prod.penny.a`") {
		t.Errorf("placeholders not rendered: %s", got[0].SQL)
	}

	other, _ := parseMigrations(fsys, "m", Dataset{ProjectID: "dev", DatasetID: "scratch"})
	if other[0].Checksum != got[0].Checksum {
		t.Error("checksum should not depend on the dataset")
	}
}

func TestParseMigrations_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0001_a.sql": {Data: []byte("SELECT 1")},
		"m/0001_b.sql": {Data: []byte("SELECT 2")},
	}
	if _, err := parseMigrations(fsys, "m", Dataset{}); err == nil {
		t.Error("expected duplicate version error")
	}
}

func TestLoadMigrations_Embedded(t *testing.T) {
	got, err := LoadMigrations(Dataset{ProjectID: "p", DatasetID: "d"})
	if err != nil {
		t.Fatalf("LoadMigrations() error = %v", err)
	}

	want := []string{"init_schema_migrations", "create_analysis_runs", "create_model_outputs"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, name := range want {
		if got[i].Version != i+1 || got[i].Name != name {
			t.Errorf("migration %d = %04d_%s, want %04d_%s", i, got[i].Version, got[i].Name, i+1, name)
		}
	}
	if !strings.Contains(got[1].SQL, "`p.d.analysis_runs`") {
		t.Errorf("analysis_runs migration not rendered: %s", got[1].SQL)
	}
}

func TestPendingMigrations(t *testing.T) {
	all := []Migration{
		{Version: 1, Name: "a", Checksum: "c1"},
		{Version: 2, Name: "b", Checksum: "c2"},
		{Version: 3, Name: "c", Checksum: "c3"},
	}

	t.Run("skips applied", func(t *testing.T) {
		got, err := pendingMigrations(all, []AppliedMigration{{Version: 1, Checksum: "c1"}, {Version: 2}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 || got[0].Version != 3 {
			t.Errorf("pending = %+v, want only version 3", got)
		}
	})

	t.Run("modified migration", func(t *testing.T) {
		if _, err := pendingMigrations(all, []AppliedMigration{{Version: 2, Checksum: "old"}}); err == nil {
			t.Error("expected checksum mismatch error")
		}
	})
}
