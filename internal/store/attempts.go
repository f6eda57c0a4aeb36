package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/FlowNice/job-application-agent/internal/model"
)

// AnalysisAttempt returns the failure record for a vacancy, if any.
func (s *SQLiteStore) AnalysisAttempt(ctx context.Context, vacancyID string) (model.AnalysisAttempt, bool, error) {
	var (
		a    model.AnalysisAttempt
		next string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT vacancy_id, attempts, last_error, next_attempt_at FROM analysis_attempts WHERE vacancy_id = ?",
		vacancyID,
	).Scan(&a.VacancyID, &a.Attempts, &a.LastError, &next)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AnalysisAttempt{}, false, nil
	}
	if err != nil {
		return model.AnalysisAttempt{}, false, fmt.Errorf("reading analysis attempts for %s: %w", vacancyID, err)
	}
	if a.NextAttemptAt, err = parseTime(next); err != nil {
		return model.AnalysisAttempt{}, false, err
	}
	return a, true, nil
}

// RecordAnalysisFailure bumps the attempt counter for a vacancy and schedules
// the next attempt backoff from now.
func (s *SQLiteStore) RecordAnalysisFailure(ctx context.Context, vacancyID string, cause error, backoff time.Duration) (model.AnalysisAttempt, error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	next := s.now().Add(backoff)

	var attempts int
	err := s.db.QueryRowContext(ctx, `INSERT INTO analysis_attempts (vacancy_id, attempts, last_error, next_attempt_at)
	VALUES (?, 1, ?, ?)
	ON CONFLICT(vacancy_id) DO UPDATE SET
		attempts = attempts + 1,
		last_error = excluded.last_error,
		next_attempt_at = excluded.next_attempt_at
	RETURNING attempts`,
		vacancyID, msg, formatTime(next),
	).Scan(&attempts)
	if err != nil {
		return model.AnalysisAttempt{}, fmt.Errorf("recording analysis failure for %s: %w", vacancyID, err)
	}

	return model.AnalysisAttempt{
		VacancyID:     vacancyID,
		Attempts:      attempts,
		LastError:     msg,
		NextAttemptAt: next.UTC(),
	}, nil
}

// ClearAnalysisFailure forgets the failure record for a vacancy.
func (s *SQLiteStore) ClearAnalysisFailure(ctx context.Context, vacancyID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM analysis_attempts WHERE vacancy_id = ?", vacancyID); err != nil {
		return fmt.Errorf("clearing analysis attempts for %s: %w", vacancyID, err)
	}
	return nil
}
