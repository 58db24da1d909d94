package repository

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/emilianohg/umbrella/internal/db"
	"github.com/emilianohg/umbrella/internal/models"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.OpenPath(filepath.Join(t.TempDir(), "umbrella.sqlite"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return conn
}

func strPtr(s string) *string { return &s }

var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func finalReport() models.FinalReport {
	at := monday.Add(9 * time.Hour)
	original := models.Classification{MeetingType: "Status", Confidence: 0.4, Source: models.SourceRules}
	updated := models.Classification{Customer: strPtr("Fabrikam"), MeetingType: "Status", Confidence: 1, Source: models.SourceManual, Rationale: "set by operator"}

	report := models.TimeAllocationReport{
		WindowStart:       monday,
		WindowEnd:         monday.AddDate(0, 0, 6),
		ExpectedWorkHours: 8,
		TotalHours:        2,
		ByCustomer:        map[string]float64{"Fabrikam": 2},
		ByProject:         map[string]float64{},
		ByType:            map[string]float64{"Status": 2},
		UnallocatedHours:  6,
		Events: []models.ClassifiedEvent{{
			Event:          models.CalendarEvent{ID: "evt_009", Subject: "Project Status", Start: at, End: at.Add(2 * time.Hour)},
			Classification: updated,
		}},
	}
	fr := models.NewFinalReport(report)
	fr.Fill.Entries = []models.FillEntry{{Target: "Fabrikam", Kind: models.TargetCustomer, Percentage: 50, Hours: 3}}
	fr.CustomerTotals["Fabrikam"] += 3
	fr.Adjustments = []models.Adjustment{{
		MeetingID: "evt_009", Original: original, Updated: &updated,
		PrepMinutes: 15, Note: "renewal", CreatedAt: at.Add(time.Hour),
	}}
	return fr
}

func TestReportRepoSaveAndLoad(t *testing.T) {
	repo := NewReportRepo(openTestDB(t))

	id, err := repo.Save(finalReport())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(id) != 36 {
		t.Errorf("id = %q, want uuid", id)
	}

	run, err := repo.GetByID(id)
	if err != nil || run == nil {
		t.Fatalf("GetByID = %v, %v", run, err)
	}
	if !run.WindowStart.Equal(monday) || run.MeetingHours != 2 || run.AllocatedHours != 5 || run.MeetingCount != 1 {
		t.Errorf("run = %+v", run)
	}

	rows, err := repo.Allocations(id)
	if err != nil {
		t.Fatalf("Allocations: %v", err)
	}
	if len(rows) != 3 || rows[0].Name != "Fabrikam" || rows[0].Hours != 5 || rows[2].Kind != "unallocated" {
		t.Errorf("allocations = %+v", rows)
	}

	fill, err := repo.FillEntries(id)
	if err != nil {
		t.Fatalf("FillEntries: %v", err)
	}
	if len(fill) != 1 || fill[0].Kind != models.TargetCustomer || fill[0].Hours != 3 {
		t.Errorf("fill = %+v", fill)
	}

	adj, err := repo.Adjustments(id)
	if err != nil {
		t.Fatalf("Adjustments: %v", err)
	}
	if len(adj) != 1 || adj[0].Updated == nil || adj[0].Updated.CustomerName() != "Fabrikam" {
		t.Fatalf("adjustments = %+v", adj)
	}
	if adj[0].Original.Customer != nil || adj[0].PrepMinutes != 15 || adj[0].Note != "renewal" {
		t.Errorf("adjustment = %+v", adj[0])
	}
}

func TestReportRepoListNewestFirst(t *testing.T) {
	repo := NewReportRepo(openTestDB(t))
	clock := monday
	repo.now = func() time.Time { clock = clock.Add(time.Minute); return clock }

	first, err := repo.Save(finalReport())
	if err != nil {
		t.Fatal(err)
	}
	second, err := repo.Save(finalReport())
	if err != nil {
		t.Fatal(err)
	}

	runs, err := repo.List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != second || runs[1].ID != first {
		t.Errorf("List = %+v", runs)
	}

	limited, err := repo.List(1)
	if err != nil || len(limited) != 1 {
		t.Errorf("List(1) = %v, %v", limited, err)
	}
}

func TestReportRepoMissingAndDelete(t *testing.T) {
	repo := NewReportRepo(openTestDB(t))

	run, err := repo.GetByID("nope")
	if err != nil || run != nil {
		t.Errorf("GetByID(missing) = %v, %v", run, err)
	}

	id, err := repo.Save(finalReport())
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	rows, err := repo.Allocations(id)
	if err != nil || len(rows) != 0 {
		t.Errorf("allocations after delete = %v, %v", rows, err)
	}
}
