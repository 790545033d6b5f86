package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/ncklrs/next-sanity-embedded-starter-sub001/model"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("version conflict")
	ErrSlugTaken = errors.New("slug already in use")
)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the SQL persistence layer for forms, submissions and admin users.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateForm inserts f, assigning an ID when it has none.
func (s *Store) CreateForm(ctx context.Context, f *model.FormConfig) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.Version = 1
	f.UpdatedAt = s.now().UTC()

	settings, err := json.Marshal(f.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO form (id, slug, name, version, settings, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		f.ID, f.Slug, f.Name, f.Version, string(settings), f.UpdatedAt,
	)
	if err != nil {
		return translate(err)
	}

	if err = insertChildren(ctx, tx, *f); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateForm replaces the definition of f. f.Version must match the stored
// version, otherwise ErrConflict is returned; on success it is incremented.
func (s *Store) UpdateForm(ctx context.Context, f *model.FormConfig) error {
	settings, err := json.Marshal(f.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	updatedAt := s.now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE form
		SET
			slug = ?,
			name = ?,
			settings = ?,
			updated_at = ?,
			version = version+1
		WHERE id = ?
			AND version = ?`,
		f.Slug, f.Name, string(settings), updatedAt,
		f.ID, f.Version,
	)
	if err != nil {
		return translate(err)
	}
	// optimistic lock
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n < 1 {
		var exists bool
		err = tx.QueryRowContext(ctx, `SELECT 1 FROM form WHERE id = ?`, f.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return ErrConflict
	}

	// recreate fields and actions
	if _, err = tx.ExecContext(ctx, `DELETE FROM form_field WHERE form_id = ?`, f.ID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM form_action WHERE form_id = ?`, f.ID); err != nil {
		return err
	}
	if err = insertChildren(ctx, tx, *f); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	f.Version++
	f.UpdatedAt = updatedAt
	return nil
}

// UpsertFormBySlug creates f, or replaces the form with the same slug
// regardless of its version.
func (s *Store) UpsertFormBySlug(ctx context.Context, f *model.FormConfig) error {
	current, err := s.GetFormBySlug(ctx, f.Slug)
	if errors.Is(err, ErrNotFound) {
		return s.CreateForm(ctx, f)
	}
	if err != nil {
		return err
	}
	f.ID = current.ID
	f.Version = current.Version
	return s.UpdateForm(ctx, f)
}

func (s *Store) DeleteForm(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM form WHERE id = ?`, id)
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

// ListForms returns every form without its fields and actions.
func (s *Store) ListForms(ctx context.Context) ([]model.FormConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, slug, name, version, updated_at
		FROM form
		ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	forms := []model.FormConfig{}
	for rows.Next() {
		f := model.FormConfig{}
		if err = rows.Scan(&f.ID, &f.Slug, &f.Name, &f.Version, &f.UpdatedAt); err != nil {
			return nil, err
		}
		forms = append(forms, f)
	}
	return forms, rows.Err()
}

func (s *Store) GetFormByID(ctx context.Context, id string) (model.FormConfig, error) {
	return loadForm(ctx, s.db, `id = ?`, id)
}

func (s *Store) GetFormBySlug(ctx context.Context, slug string) (model.FormConfig, error) {
	return loadForm(ctx, s.db, `slug = ?`, slug)
}

func loadForm(ctx context.Context, q querier, where string, arg any) (model.FormConfig, error) {
	f := model.FormConfig{}
	var settings string
	err := q.QueryRowContext(ctx, `
		SELECT id, slug, name, version, settings, updated_at
		FROM form
		WHERE `+where, arg,
	).Scan(&f.ID, &f.Slug, &f.Name, &f.Version, &settings, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return f, ErrNotFound
	}
	if err != nil {
		return f, err
	}
	if err = json.Unmarshal([]byte(settings), &f.Settings); err != nil {
		return f, fmt.Errorf("decode settings of form %s: %w", f.ID, err)
	}

	if f.Fields, err = loadFields(ctx, q, f.ID); err != nil {
		return f, err
	}
	if f.Actions, err = loadActions(ctx, q, f.ID); err != nil {
		return f, err
	}
	return f, nil
}

func loadFields(ctx context.Context, q querier, formID string) ([]model.FormFieldConfig, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT
			field_key, type, name, label, required,
			placeholder, help_text, default_value, width,
			options, validation
		FROM form_field
		WHERE form_id = ?
		ORDER BY position`,
		formID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := []model.FormFieldConfig{}
	for rows.Next() {
		f := model.FormFieldConfig{}
		var opts, validation string
		err = rows.Scan(
			&f.Key, &f.Type, &f.Name, &f.Label, &f.Required,
			&f.Placeholder, &f.HelpText, &f.DefaultValue, &f.Width,
			&opts, &validation,
		)
		if err != nil {
			return nil, err
		}

		if opts != "" {
			if err = json.Unmarshal([]byte(opts), &f.Options); err != nil {
				return nil, fmt.Errorf("decode options of field %s: %w", f.Name, err)
			}
		}
		if validation != "" {
			f.Validation = &model.FieldValidation{}
			if err = json.Unmarshal([]byte(validation), f.Validation); err != nil {
				return nil, fmt.Errorf("decode validation of field %s: %w", f.Name, err)
			}
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

func loadActions(ctx context.Context, q querier, formID string) ([]model.Action, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT type, config
		FROM form_action
		WHERE form_id = ?
		ORDER BY position`,
		formID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	actions := []model.Action{}
	for rows.Next() {
		var kind, config string
		if err = rows.Scan(&kind, &config); err != nil {
			return nil, err
		}
		a := model.Action{}
		if err = json.Unmarshal([]byte(config), &a); err != nil {
			return nil, fmt.Errorf("decode %s action: %w", kind, err)
		}
		a.Kind = model.ActionKind(kind)
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

func insertChildren(ctx context.Context, tx *sql.Tx, f model.FormConfig) error {
	fieldStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO form_field (
			form_id, position, field_key, type, name, label, required,
			placeholder, help_text, default_value, width, options, validation
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer fieldStmt.Close()

	for i, field := range f.Fields {
		var opts, validation []byte
		if len(field.Options) > 0 {
			if opts, err = json.Marshal(field.Options); err != nil {
				return err
			}
		}
		if field.Validation != nil {
			if validation, err = json.Marshal(field.Validation); err != nil {
				return err
			}
		}
		_, err = fieldStmt.ExecContext(ctx,
			f.ID, i, field.Key, string(field.Type.Normalize()), field.Name, field.Label, field.Required,
			field.Placeholder, field.HelpText, field.DefaultValue, string(field.Width),
			string(opts), string(validation),
		)
		if err != nil {
			return fmt.Errorf("insert field %s: %w", field.Name, err)
		}
	}

	actionStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO form_action (form_id, position, type, config)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer actionStmt.Close()

	for i, a := range f.Actions {
		config, err := json.Marshal(a)
		if err != nil {
			return err
		}
		if _, err = actionStmt.ExecContext(ctx, f.ID, i, string(a.Kind), string(config)); err != nil {
			return fmt.Errorf("insert action %d: %w", i, err)
		}
	}
	return nil
}

func translate(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: %v", ErrSlugTaken, err)
	}
	return err
}
