package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"decisio/api/internal/decision"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, is_email_verified,
			COALESCE(verification_token, ''), verification_expires_at, created_at, updated_at
		FROM users
		WHERE LOWER(email) = LOWER($1)
	`, email).Scan(
		&user.ID,
		&user.DisplayName,
		&user.Email,
		&user.PasswordHash,
		&user.IsEmailVerified,
		&user.VerificationToken,
		&user.VerificationExpiresAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, is_email_verified,
			COALESCE(verification_token, ''), verification_expires_at, created_at, updated_at
		FROM users
		WHERE id = $1
	`, userID).Scan(
		&user.ID,
		&user.DisplayName,
		&user.Email,
		&user.PasswordHash,
		&user.IsEmailVerified,
		&user.VerificationToken,
		&user.VerificationExpiresAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, is_email_verified, verification_token, verification_expires_at)
		VALUES ($1, $2, LOWER($3), $4, $5, NULLIF($6, ''), $7)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, user.IsEmailVerified, user.VerificationToken, user.VerificationExpiresAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET verification_token=$2, verification_expires_at=$3, updated_at=NOW()
		WHERE id=$1
	`, userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("update verification token: %w", err)
	}
	return nil
}

func (s *PostgresStore) VerifyUserEmail(ctx context.Context, token string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		UPDATE users
		SET is_email_verified=TRUE, verification_token=NULL, verification_expires_at=NULL, updated_at=NOW()
		WHERE verification_token=$1 AND verification_expires_at > NOW()
		RETURNING id, display_name, email, password_hash, is_email_verified, '', verification_expires_at, created_at, updated_at
	`, token).Scan(
		&user.ID,
		&user.DisplayName,
		&user.Email,
		&user.PasswordHash,
		&user.IsEmailVerified,
		&user.VerificationToken,
		&user.VerificationExpiresAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1
	`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateUserProfile(ctx context.Context, userID, displayName string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET display_name=$2, updated_at=NOW() WHERE id=$1
	`, userID, displayName)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, reset PasswordReset) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (id, user_id, token, expires_at)
		VALUES ($1, $2, $3, $4)
	`, reset.ID, reset.UserID, reset.Token, reset.ExpiresAt)
	if err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPasswordReset(ctx context.Context, token string) (PasswordReset, error) {
	var reset PasswordReset
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, token, expires_at, used_at, created_at
		FROM password_resets
		WHERE token=$1
	`, token).Scan(&reset.ID, &reset.UserID, &reset.Token, &reset.ExpiresAt, &reset.UsedAt, &reset.CreatedAt)
	if err != nil {
		return PasswordReset{}, err
	}
	return reset, nil
}

func (s *PostgresStore) MarkPasswordResetUsed(ctx context.Context, resetID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE password_resets SET used_at=NOW() WHERE id=$1
	`, resetID)
	if err != nil {
		return fmt.Errorf("mark password reset used: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID, displayName, email string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, display_name, email, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, display_name=EXCLUDED.display_name, email=EXCLUDED.email, expires_at=EXCLUDED.expires_at
	`, tokenHash, userID, displayName, email, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM refresh_sessions WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, display_name, email
		FROM refresh_sessions
		WHERE token_hash=$1 AND expires_at > NOW()
	`, tokenHash).Scan(&user.ID, &user.DisplayName, &user.Email)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// LoadRecords returns all of one user's decision records, newest first.
// Failures are wrapped in ErrUnavailable so callers can keep the local
// scope instead of treating them as an empty account.
func (s *PostgresStore) LoadRecords(ctx context.Context, ownerID string) ([]decision.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc
		FROM decisions
		WHERE user_id=$1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: list decisions: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	records := make([]decision.Record, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%w: scan decision: %v", ErrUnavailable, err)
		}
		var rec decision.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("%w: decode decision: %v", ErrUnavailable, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate decisions: %v", ErrUnavailable, err)
	}
	return records, nil
}

func (s *PostgresStore) UpsertRecord(ctx context.Context, ownerID string, rec decision.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode decision: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decisions (id, user_id, doc, created_at)
		VALUES ($1, $2, $3::jsonb, to_timestamp($4::double precision / 1000))
		ON CONFLICT (user_id, id) DO UPDATE SET doc=EXCLUDED.doc, updated_at=NOW()
	`, rec.ID, ownerID, string(raw), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert decision: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveRecord(ctx context.Context, ownerID, recordID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM decisions WHERE user_id=$1 AND id=$2`, ownerID, recordID)
	if err != nil {
		return fmt.Errorf("delete decision: %w", err)
	}
	return nil
}

// ClearRecords is intentionally unsupported for the remote scope.
// Accounts require per-record deletion.
func (s *PostgresStore) ClearRecords(ctx context.Context, ownerID string) error {
	return ErrBulkDeleteUnsupported
}

func (s *PostgresStore) CreateFeedback(ctx context.Context, fb Feedback) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (id, user_id, category, message)
		VALUES ($1, NULLIF($2, ''), $3, $4)
	`, fb.ID, fb.UserID, fb.Category, fb.Message)
	if err != nil {
		return fmt.Errorf("create feedback: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListFeedback(ctx context.Context, limit int) ([]Feedback, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(user_id, ''), category, message, created_at
		FROM feedback
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	items := make([]Feedback, 0)
	for rows.Next() {
		var item Feedback
		if err := rows.Scan(&item.ID, &item.UserID, &item.Category, &item.Message, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback: %w", err)
	}
	return items, nil
}

// IsNotFound reports whether err is the driver's no-rows sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
