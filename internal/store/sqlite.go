package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/FlowNice/job-application-agent/internal/model"
)

// Ensure SQLiteStore implements model.LeadStore.
var _ model.LeadStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS leads (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	vacancy_id         TEXT NOT NULL UNIQUE,
	vacancy_title      TEXT NOT NULL,
	company_name       TEXT NOT NULL DEFAULT '',
	vacancy_url        TEXT NOT NULL,
	recruiter_name     TEXT NOT NULL DEFAULT '',
	recruiter_email    TEXT NOT NULL DEFAULT '',
	generated_response TEXT NOT NULL DEFAULT '',
	meeting_link       TEXT,
	status             TEXT NOT NULL DEFAULT 'New',
	feedback           TEXT NOT NULL DEFAULT '',
	created_at         TEXT NOT NULL,
	updated_at         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE TABLE IF NOT EXISTS analysis_attempts (
	vacancy_id      TEXT PRIMARY KEY,
	attempts        INTEGER NOT NULL,
	last_error      TEXT NOT NULL DEFAULT '',
	next_attempt_at TEXT NOT NULL
);`

const leadColumns = `id, vacancy_id, vacancy_title, company_name, vacancy_url, recruiter_name,
	recruiter_email, generated_response, meeting_link, status, feedback, created_at, updated_at`

// SQLiteStore keeps leads in a SQLite database. The unique vacancy_id column
// is the authoritative dedup guard.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// modernc sqlite uses DSN like: file:foo.db?_pragma=busy_timeout(5000).
	// Immediate transactions take the write lock at BEGIN, so a status read and
	// its update cannot interleave with another handle on the same file.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_txlock=immediate", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// sqlite wants a single writer; every call below uses one connection at a time.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Create inserts a lead unless one already exists for the vacancy id, in
// which case the existing row is returned with created=false. The check and
// the insert are a single statement, so racing writers cannot both succeed.
func (s *SQLiteStore) Create(ctx context.Context, nl model.NewLead) (model.Lead, bool, error) {
	if nl.Status == "" {
		nl.Status = model.StatusNew
	}
	if !nl.Status.IsCreationStatus() {
		return model.Lead{}, false, fmt.Errorf("creating lead for %s with status %q: %w", nl.VacancyID, nl.Status, model.ErrIllegalTransition)
	}

	now := formatTime(s.now())
	row := s.db.QueryRowContext(ctx, `INSERT INTO leads (
		vacancy_id, vacancy_title, company_name, vacancy_url, recruiter_name, recruiter_email,
		generated_response, meeting_link, status, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(vacancy_id) DO NOTHING
	RETURNING `+leadColumns,
		nl.VacancyID, nl.Title, nl.Company, nl.URL, nl.RecruiterName, nl.RecruiterEmail,
		nl.GeneratedResponse, nullString(nl.MeetingLink), string(nl.Status), now, now,
	)

	lead, err := scanLead(row)
	if err == nil {
		return lead, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.Lead{}, false, fmt.Errorf("creating lead for %s: %w", nl.VacancyID, err)
	}

	existing, found, err := s.GetByVacancyID(ctx, nl.VacancyID)
	if err != nil {
		return model.Lead{}, false, err
	}
	if !found {
		return model.Lead{}, false, fmt.Errorf("creating lead for %s: conflict reported but no row found", nl.VacancyID)
	}
	return existing, false, nil
}

// GetByID returns the lead with the given surrogate id.
func (s *SQLiteStore) GetByID(ctx context.Context, id int64) (model.Lead, bool, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+leadColumns+" FROM leads WHERE id = ?", id)
	return lookup(row, fmt.Sprintf("lead %d", id))
}

// GetByVacancyID returns the lead for a platform vacancy id.
func (s *SQLiteStore) GetByVacancyID(ctx context.Context, vacancyID string) (model.Lead, bool, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+leadColumns+" FROM leads WHERE vacancy_id = ?", vacancyID)
	return lookup(row, "vacancy "+vacancyID)
}

// UpdateStatus moves a lead to status, enforcing the transition table.
// A non-nil feedback overwrites the stored feedback. The previous status is
// returned alongside the updated lead.
func (s *SQLiteStore) UpdateStatus(ctx context.Context, id int64, status model.Status, feedback *string) (model.Lead, model.Status, error) {
	if !status.Valid() {
		return model.Lead{}, "", fmt.Errorf("updating lead %d: %w: %q", id, model.ErrUnknownStatus, status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Lead{}, "", fmt.Errorf("updating lead %d: begin: %w", id, err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, "SELECT status FROM leads WHERE id = ?", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Lead{}, "", fmt.Errorf("updating lead %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return model.Lead{}, "", fmt.Errorf("updating lead %d: %w", id, err)
	}

	from := model.Status(current)
	if !from.CanTransition(status) {
		return model.Lead{}, "", &model.TransitionError{LeadID: id, From: from, To: status}
	}

	now := formatTime(s.now())
	if feedback != nil {
		_, err = tx.ExecContext(ctx, "UPDATE leads SET status = ?, feedback = ?, updated_at = ? WHERE id = ?",
			string(status), *feedback, now, id)
	} else {
		_, err = tx.ExecContext(ctx, "UPDATE leads SET status = ?, updated_at = ? WHERE id = ?",
			string(status), now, id)
	}
	if err != nil {
		return model.Lead{}, "", fmt.Errorf("updating lead %d: %w", id, err)
	}

	lead, err := scanLead(tx.QueryRowContext(ctx, "SELECT "+leadColumns+" FROM leads WHERE id = ?", id))
	if err != nil {
		return model.Lead{}, "", fmt.Errorf("reloading lead %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return model.Lead{}, "", fmt.Errorf("updating lead %d: commit: %w", id, err)
	}
	return lead, from, nil
}

// List returns all leads ordered by id, optionally filtered by exact status.
func (s *SQLiteStore) List(ctx context.Context, status *model.Status) ([]model.Lead, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if status != nil {
		rows, err = s.db.QueryContext(ctx, "SELECT "+leadColumns+" FROM leads WHERE status = ? ORDER BY id", string(*status))
	} else {
		rows, err = s.db.QueryContext(ctx, "SELECT "+leadColumns+" FROM leads ORDER BY id")
	}
	if err != nil {
		return nil, fmt.Errorf("listing leads: %w", err)
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("listing leads: %w", err)
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing leads: %w", err)
	}
	return leads, nil
}

// Delete removes a lead. Administrative only; the pipeline never deletes.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM leads WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting lead %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting lead %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("deleting lead %d: %w", id, model.ErrNotFound)
	}
	return nil
}

// Count returns the number of stored leads.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM leads").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting leads: %w", err)
	}
	return n, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func lookup(row rowScanner, what string) (model.Lead, bool, error) {
	lead, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Lead{}, false, nil
	}
	if err != nil {
		return model.Lead{}, false, fmt.Errorf("looking up %s: %w", what, err)
	}
	return lead, true, nil
}

func scanLead(row rowScanner) (model.Lead, error) {
	var (
		l                model.Lead
		status           string
		link             sql.NullString
		created, updated string
	)
	err := row.Scan(&l.ID, &l.VacancyID, &l.Title, &l.Company, &l.URL, &l.RecruiterName,
		&l.RecruiterEmail, &l.GeneratedResponse, &link, &status, &l.Feedback, &created, &updated)
	if err != nil {
		return model.Lead{}, err
	}
	if link.Valid {
		v := link.String
		l.MeetingLink = &v
	}
	l.Status = model.Status(status)
	if l.CreatedAt, err = parseTime(created); err != nil {
		return model.Lead{}, err
	}
	if l.UpdatedAt, err = parseTime(updated); err != nil {
		return model.Lead{}, err
	}
	return l, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}
