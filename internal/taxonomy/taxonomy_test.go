package taxonomy_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/emilianohg/umbrella/internal/index"
	"github.com/emilianohg/umbrella/internal/models"
	"github.com/emilianohg/umbrella/internal/taxonomy"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadMissingDirectoryIsEmpty(t *testing.T) {
	tx, err := taxonomy.Load(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(tx.Customers)+len(tx.Projects)+len(tx.MeetingTypes) != 0 {
		t.Errorf("Load = %+v, want empty", tx)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, taxonomy.CustomersFile, `
customers:
  - name: Contoso Corporation
    aliases: [Contoso]
    domains: [contoso.com]
`)
	writeFile(t, dir, taxonomy.ProjectsFile, `
projects:
  - name: Phoenix
    customer: Contoso Corporation
  - name: Sunset
    active: false
`)
	writeFile(t, dir, taxonomy.CategoriesFile, `
meeting_types:
  - name: Standup
    keywords: [standup]
    priority: 10
    color: "#74B9FF"
`)

	tx, err := taxonomy.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := tx.Customers[0].Color; got != models.DefaultColor {
		t.Errorf("customer color = %q, want %q", got, models.DefaultColor)
	}
	if !tx.Projects[0].Active || tx.Projects[0].Kind != models.ProjectKindCustomer {
		t.Errorf("project[0] = %+v, want active customer project", tx.Projects[0])
	}
	if tx.Projects[1].Active || tx.Projects[1].Kind != models.ProjectKindInternal {
		t.Errorf("project[1] = %+v, want inactive internal project", tx.Projects[1])
	}
	if tx.MeetingTypes[0].Priority != 10 {
		t.Errorf("priority = %d, want 10", tx.MeetingTypes[0].Priority)
	}
}

func TestLoadRejectsInvalidEntries(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{"missing name", taxonomy.CustomersFile, "customers:\n  - aliases: [x]\n", "Name"},
		{"bad color", taxonomy.CategoriesFile, "meeting_types:\n  - name: Sync\n    color: blue\n", "hexcolor"},
		{"negative priority", taxonomy.CategoriesFile, "meeting_types:\n  - name: Sync\n    priority: -1\n", "min"},
		{"bad project type", taxonomy.ProjectsFile, "projects:\n  - name: P\n    type: side\n", "oneof"},
		{"empty alias", taxonomy.CustomersFile, "customers:\n  - name: C\n    aliases: [\"\"]\n", "required"},
		{"malformed yaml", taxonomy.CustomersFile, "customers: [\n", taxonomy.CustomersFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, tt.file, tt.content)
			_, err := taxonomy.Load(dir)
			if err == nil {
				t.Fatalf("Load succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestDefaultSavesAndBuilds(t *testing.T) {
	dir := t.TempDir()
	if err := taxonomy.Save(dir, taxonomy.Default()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	tx, err := taxonomy.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := taxonomy.Default()
	if len(tx.Customers) != len(want.Customers) || len(tx.Projects) != len(want.Projects) || len(tx.MeetingTypes) != len(want.MeetingTypes) {
		t.Fatalf("loaded %d/%d/%d entries", len(tx.Customers), len(tx.Projects), len(tx.MeetingTypes))
	}
	if _, err := index.Build(tx.Customers, tx.Projects, tx.MeetingTypes); err != nil {
		t.Errorf("default taxonomy does not build: %v", err)
	}
}
