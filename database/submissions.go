package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ncklrs/next-sanity-embedded-starter-sub001/model"
)

// CreateSubmission writes rec and its action results in one transaction.
func (s *Store) CreateSubmission(ctx context.Context, rec *model.SubmissionRecord) error {
	data, err := json.Marshal(rec.ValidatedData)
	if err != nil {
		return fmt.Errorf("encode submission data: %w", err)
	}
	if rec.Status == "" {
		rec.Status = model.StatusNew
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO submission (
			id, form_id, form_name, data, raw_data,
			user_agent, referrer, ip_hash, submitted_at, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.FormID, rec.FormName, string(data), rec.RawDataJSON,
		rec.Metadata.UserAgent, rec.Metadata.Referrer, rec.Metadata.IPHash,
		rec.SubmittedAt, string(rec.Status),
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO submission_action_result (
			submission_id, position, action_type, success, error_message, timestamp
		) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range rec.ActionResults {
		_, err = stmt.ExecContext(ctx, rec.ID, i, string(r.ActionType), r.Success, r.ErrorMessage, r.Timestamp)
		if err != nil {
			return fmt.Errorf("insert action result %d: %w", i, err)
		}
	}

	return tx.Commit()
}

type SubmissionFilter struct {
	FormID string
	Status model.SubmissionStatus
	Limit  int
	Offset int
}

// ListSubmissions returns the submissions of a form, newest first.
func (s *Store) ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]model.SubmissionRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			id, form_id, form_name, data, raw_data,
			user_agent, referrer, ip_hash, submitted_at, status
		FROM submission
		WHERE form_id = ?
			AND (? = '' OR status = ?)
		ORDER BY submitted_at DESC
		LIMIT ? OFFSET ?`,
		filter.FormID, string(filter.Status), string(filter.Status), limit, filter.Offset,
	)
	if err != nil {
		return nil, err
	}

	records := []model.SubmissionRecord{}
	for rows.Next() {
		rec, err := scanSubmission(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		records = append(records, rec)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}

	for i := range records {
		if records[i].ActionResults, err = loadActionResults(ctx, s.db, records[i].ID); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func (s *Store) GetSubmission(ctx context.Context, id string) (model.SubmissionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			id, form_id, form_name, data, raw_data,
			user_agent, referrer, ip_hash, submitted_at, status
		FROM submission
		WHERE id = ?`,
		id,
	)
	rec, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, ErrNotFound
	}
	if err != nil {
		return rec, err
	}

	rec.ActionResults, err = loadActionResults(ctx, s.db, id)
	return rec, err
}

// UpdateSubmissionStatus is the only mutation allowed on a stored submission.
func (s *Store) UpdateSubmissionStatus(ctx context.Context, id string, status model.SubmissionStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE submission SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n < 1 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row scanner) (model.SubmissionRecord, error) {
	rec := model.SubmissionRecord{}
	var data string
	err := row.Scan(
		&rec.ID, &rec.FormID, &rec.FormName, &data, &rec.RawDataJSON,
		&rec.Metadata.UserAgent, &rec.Metadata.Referrer, &rec.Metadata.IPHash,
		&rec.SubmittedAt, &rec.Status,
	)
	if err != nil {
		return rec, err
	}
	if err = json.Unmarshal([]byte(data), &rec.ValidatedData); err != nil {
		return rec, fmt.Errorf("decode data of submission %s: %w", rec.ID, err)
	}
	return rec, nil
}

func loadActionResults(ctx context.Context, q querier, submissionID string) ([]model.ActionResult, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT action_type, success, error_message, timestamp
		FROM submission_action_result
		WHERE submission_id = ?
		ORDER BY position`,
		submissionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []model.ActionResult{}
	for rows.Next() {
		r := model.ActionResult{}
		if err = rows.Scan(&r.ActionType, &r.Success, &r.ErrorMessage, &r.Timestamp); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
