package database

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidToken = errors.New("could not refresh")

// EnsureAdmin creates the admin user, or resets its password.
func (s *Store) EnsureAdmin(ctx context.Context, username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user (username, password_hash) VALUES (?, ?)
		ON CONFLICT (username) DO UPDATE SET password_hash = excluded.password_hash`,
		username, hash,
	)
	return err
}

func (s *Store) CheckPassword(ctx context.Context, username, password string) error {
	var hash []byte
	err := s.db.
		QueryRowContext(ctx, "SELECT password_hash FROM user WHERE username=?", username).
		Scan(&hash)
	if err != nil {
		return err
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(password))
}

func (s *Store) StoreToken(ctx context.Context, username, tokenID, refreshTokenID string, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO token (username, token_id, refresh_token_id, expiration) VALUES (?, ?, ?, ?)",
		username,
		tokenID,
		refreshTokenID,
		s.now().Add(ttl).Unix(),
	)
	return err
}

// ConsumeToken deletes a refresh token pair, failing when it is unknown or expired.
func (s *Store) ConsumeToken(ctx context.Context, username, tokenID, refreshTokenID string) error {
	var expiration int64
	err := s.db.
		QueryRowContext(ctx, `
			DELETE FROM token
			WHERE username = ?
				AND token_id = ?
				AND refresh_token_id = ?
			RETURNING expiration`,
			username,
			tokenID,
			refreshTokenID,
		).
		Scan(&expiration)
	if err != nil {
		return ErrInvalidToken
	}
	if expiration < s.now().Unix() {
		return ErrInvalidToken
	}
	return nil
}
