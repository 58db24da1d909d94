package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/emilianohg/umbrella/internal/export"
	"github.com/emilianohg/umbrella/internal/models"
)

// ReportRun is one archived, finalized allocation.
type ReportRun struct {
	ID             string
	WindowStart    time.Time
	WindowEnd      time.Time
	ExpectedHours  float64
	MeetingHours   float64
	AllocatedHours float64
	FillBaseHours  float64
	MeetingCount   int
	Cancelled      bool
	CreatedAt      time.Time
}

type ReportRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewReportRepo(db *sql.DB) *ReportRepo {
	return &ReportRepo{db: db, now: time.Now}
}

// Save archives fr in one transaction and returns the new run id.
func (r *ReportRepo) Save(fr models.FinalReport) (string, error) {
	id := uuid.NewString()

	tx, err := r.db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO report_runs (id, window_start, window_end, expected_hours, meeting_hours,
		                         allocated_hours, fill_base_hours, meeting_count, cancelled, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, fr.Report.WindowStart, fr.Report.WindowEnd, fr.Report.ExpectedWorkHours, fr.Report.TotalHours,
		fr.AllocatedHours(), fr.Fill.BaseHours, len(fr.Report.Events), fr.Cancelled, r.now())
	if err != nil {
		return "", err
	}

	for i, row := range export.Rows(fr) {
		if _, err := tx.Exec(`
			INSERT INTO allocations (run_id, position, kind, name, hours, percentage)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id, i, row.Kind, row.Name, row.Hours, row.Percentage); err != nil {
			return "", err
		}
	}

	for i, e := range fr.Fill.Entries {
		if _, err := tx.Exec(`
			INSERT INTO fill_entries (run_id, position, target, kind, percentage, hours)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id, i, e.Target, string(e.Kind), e.Percentage, e.Hours); err != nil {
			return "", err
		}
	}

	for i, a := range fr.Adjustments {
		original, err := json.Marshal(a.Original)
		if err != nil {
			return "", err
		}
		var updated sql.NullString
		if a.Updated != nil {
			b, err := json.Marshal(a.Updated)
			if err != nil {
				return "", err
			}
			updated = sql.NullString{String: string(b), Valid: true}
		}
		if _, err := tx.Exec(`
			INSERT INTO adjustments (run_id, position, meeting_id, original, updated,
			                         prep_minutes, followup_minutes, note, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, i, a.MeetingID, string(original), updated, a.PrepMinutes, a.FollowupMinutes, a.Note, a.CreatedAt); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

const runColumns = `id, window_start, window_end, expected_hours, meeting_hours, allocated_hours,
	fill_base_hours, meeting_count, cancelled, created_at`

func scanRun(sc interface{ Scan(...any) error }) (ReportRun, error) {
	var run ReportRun
	err := sc.Scan(&run.ID, &run.WindowStart, &run.WindowEnd, &run.ExpectedHours, &run.MeetingHours,
		&run.AllocatedHours, &run.FillBaseHours, &run.MeetingCount, &run.Cancelled, &run.CreatedAt)
	return run, err
}

func (r *ReportRepo) GetByID(id string) (*ReportRun, error) {
	run, err := scanRun(r.db.QueryRow(`SELECT `+runColumns+` FROM report_runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns the most recent runs first; limit <= 0 means all.
func (r *ReportRepo) List(limit int) ([]ReportRun, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(`SELECT `+runColumns+` FROM report_runs ORDER BY created_at DESC, window_start DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []ReportRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *ReportRepo) Allocations(runID string) ([]export.Row, error) {
	rows, err := r.db.Query(`
		SELECT kind, name, hours, percentage
		FROM allocations
		WHERE run_id = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []export.Row
	for rows.Next() {
		var row export.Row
		if err := rows.Scan(&row.Kind, &row.Name, &row.Hours, &row.Percentage); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *ReportRepo) FillEntries(runID string) ([]models.FillEntry, error) {
	rows, err := r.db.Query(`
		SELECT target, kind, percentage, hours
		FROM fill_entries
		WHERE run_id = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.FillEntry
	for rows.Next() {
		var e models.FillEntry
		var kind string
		if err := rows.Scan(&e.Target, &kind, &e.Percentage, &e.Hours); err != nil {
			return nil, err
		}
		e.Kind = models.TargetKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *ReportRepo) Adjustments(runID string) ([]models.Adjustment, error) {
	rows, err := r.db.Query(`
		SELECT meeting_id, original, updated, prep_minutes, followup_minutes, note, created_at
		FROM adjustments
		WHERE run_id = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Adjustment
	for rows.Next() {
		var a models.Adjustment
		var original string
		var updated sql.NullString
		if err := rows.Scan(&a.MeetingID, &original, &updated, &a.PrepMinutes, &a.FollowupMinutes, &a.Note, &a.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(original), &a.Original); err != nil {
			return nil, err
		}
		if updated.Valid {
			var c models.Classification
			if err := json.Unmarshal([]byte(updated.String), &c); err != nil {
				return nil, err
			}
			a.Updated = &c
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *ReportRepo) Delete(id string) error {
	_, err := r.db.Exec("DELETE FROM report_runs WHERE id = ?", id)
	return err
}
