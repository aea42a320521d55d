package verification

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"gatekeeper/pkg/domain"
	"gatekeeper/pkg/platform/sentinel"
	txcontext "gatekeeper/pkg/platform/tx"
)

//go:embed schema.sql
var schema string

// PostgresStore persists verification state in PostgreSQL. Mutations that
// touch both the member row and the pending-challenge row run inside one
// transaction; callers never observe the state tag and the pending row
// disagreeing.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed verification store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the tables if they do not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// inTx runs fn inside a transaction exposed through the context, so the
// regular store methods compose into one atomic unit.
func (s *PostgresStore) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetMember(ctx context.Context, member domain.MemberID, group domain.GroupID) (*MemberRecord, error) {
	query := `
		SELECT member_id, group_id, state, joined_at, verified_at, last_activity
		FROM members
		WHERE member_id = $1 AND group_id = $2
	`
	var (
		record       MemberRecord
		verifiedAt   sql.NullTime
		lastActivity sql.NullTime
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, member, group).Scan(
		&record.MemberID,
		&record.GroupID,
		&record.State,
		&record.JoinedAt,
		&verifiedAt,
		&lastActivity,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get member: %w", err)
	}
	if verifiedAt.Valid {
		record.VerifiedAt = verifiedAt.Time
	}
	if lastActivity.Valid {
		record.LastActivity = lastActivity.Time
	}
	return &record, nil
}

func (s *PostgresStore) EnsureMember(ctx context.Context, member domain.MemberID, group domain.GroupID, now time.Time) (bool, error) {
	query := `
		INSERT INTO members (member_id, group_id, state, joined_at)
		VALUES ($1, $2, 'unverified', $3)
		ON CONFLICT (member_id, group_id) DO NOTHING
	`
	result, err := s.execer(ctx).ExecContext(ctx, query, member, group, now)
	if err != nil {
		return false, fmt.Errorf("ensure member: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ensure member rows: %w", err)
	}
	return inserted > 0, nil
}

func (s *PostgresStore) DeleteMember(ctx context.Context, member domain.MemberID, group domain.GroupID) error {
	// pending_challenges rows go with the member via ON DELETE CASCADE.
	query := `DELETE FROM members WHERE member_id = $1 AND group_id = $2`
	if _, err := s.execer(ctx).ExecContext(ctx, query, member, group); err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertPending(ctx context.Context, pending PendingChallenge) error {
	return s.inTx(ctx, func(ctx context.Context) error {
		exec := s.execer(ctx)
		if _, err := s.EnsureMember(ctx, pending.MemberID, pending.GroupID, pending.IssuedAt); err != nil {
			return err
		}

		// Lock the member row so a racing accept cannot interleave between
		// the state check and the challenge upsert.
		var state State
		err := exec.QueryRowContext(ctx, `
			SELECT state FROM members
			WHERE member_id = $1 AND group_id = $2
			FOR UPDATE
		`, pending.MemberID, pending.GroupID).Scan(&state)
		if err != nil {
			return fmt.Errorf("lock member: %w", err)
		}
		if state == StateVerified {
			return sentinel.ErrInvalidState
		}

		if _, err := exec.ExecContext(ctx, `
			UPDATE members SET state = 'pending'
			WHERE member_id = $1 AND group_id = $2
		`, pending.MemberID, pending.GroupID); err != nil {
			return fmt.Errorf("set pending state: %w", err)
		}

		// A second concurrent issue for the same member resolves as an
		// overwrite, not a duplicate row.
		if _, err := exec.ExecContext(ctx, `
			INSERT INTO pending_challenges (member_id, group_id, expected_answer, issued_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (member_id, group_id)
			DO UPDATE SET expected_answer = EXCLUDED.expected_answer, issued_at = EXCLUDED.issued_at
		`, pending.MemberID, pending.GroupID, pending.ExpectedAnswer, pending.IssuedAt); err != nil {
			return fmt.Errorf("upsert pending challenge: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) GetPending(ctx context.Context, member domain.MemberID, group domain.GroupID) (*PendingChallenge, error) {
	query := `
		SELECT member_id, group_id, expected_answer, issued_at
		FROM pending_challenges
		WHERE member_id = $1 AND group_id = $2
	`
	var pending PendingChallenge
	err := s.execer(ctx).QueryRowContext(ctx, query, member, group).Scan(
		&pending.MemberID,
		&pending.GroupID,
		&pending.ExpectedAnswer,
		&pending.IssuedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get pending challenge: %w", err)
	}
	return &pending, nil
}

func (s *PostgresStore) DeletePending(ctx context.Context, member domain.MemberID, group domain.GroupID) (bool, error) {
	deleted := false
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		deleted, err = s.deletePendingTx(ctx, member, group, nil)
		return err
	})
	return deleted, err
}

func (s *PostgresStore) DeletePendingIssuedAt(ctx context.Context, member domain.MemberID, group domain.GroupID, issuedAt time.Time) (bool, error) {
	deleted := false
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		deleted, err = s.deletePendingTx(ctx, member, group, &issuedAt)
		return err
	})
	return deleted, err
}

func (s *PostgresStore) deletePendingTx(ctx context.Context, member domain.MemberID, group domain.GroupID, issuedAt *time.Time) (bool, error) {
	exec := s.execer(ctx)

	var (
		result sql.Result
		err    error
	)
	if issuedAt != nil {
		result, err = exec.ExecContext(ctx, `
			DELETE FROM pending_challenges
			WHERE member_id = $1 AND group_id = $2 AND issued_at = $3
		`, member, group, *issuedAt)
	} else {
		result, err = exec.ExecContext(ctx, `
			DELETE FROM pending_challenges
			WHERE member_id = $1 AND group_id = $2
		`, member, group)
	}
	if err != nil {
		return false, fmt.Errorf("delete pending challenge: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete pending rows: %w", err)
	}
	if deleted == 0 {
		return false, nil
	}

	if _, err := exec.ExecContext(ctx, `
		UPDATE members SET state = 'unverified'
		WHERE member_id = $1 AND group_id = $2 AND state = 'pending'
	`, member, group); err != nil {
		return false, fmt.Errorf("revert pending state: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) MarkVerified(ctx context.Context, member domain.MemberID, group domain.GroupID, now time.Time) error {
	return s.inTx(ctx, func(ctx context.Context) error {
		exec := s.execer(ctx)
		if _, err := exec.ExecContext(ctx, `
			DELETE FROM pending_challenges
			WHERE member_id = $1 AND group_id = $2
		`, member, group); err != nil {
			return fmt.Errorf("delete pending challenge: %w", err)
		}
		if _, err := exec.ExecContext(ctx, `
			INSERT INTO members (member_id, group_id, state, joined_at, verified_at, last_activity)
			VALUES ($1, $2, 'verified', $3, $3, $3)
			ON CONFLICT (member_id, group_id)
			DO UPDATE SET state = 'verified', verified_at = EXCLUDED.verified_at, last_activity = EXCLUDED.last_activity
		`, member, group, now); err != nil {
			return fmt.Errorf("mark verified: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) MarkUnverified(ctx context.Context, member domain.MemberID, group domain.GroupID) error {
	query := `
		UPDATE members
		SET state = 'unverified', verified_at = NULL, last_activity = NULL
		WHERE member_id = $1 AND group_id = $2
	`
	result, err := s.execer(ctx).ExecContext(ctx, query, member, group)
	if err != nil {
		return fmt.Errorf("mark unverified: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark unverified rows: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) TouchActivity(ctx context.Context, member domain.MemberID, group domain.GroupID, now time.Time) error {
	// Zero rows affected means the member is not Verified; that is the
	// documented silent no-op, not an error.
	query := `
		UPDATE members SET last_activity = $3
		WHERE member_id = $1 AND group_id = $2 AND state = 'verified'
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query, member, group, now); err != nil {
		return fmt.Errorf("touch activity: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListVerified(ctx context.Context, group domain.GroupID) ([]domain.MemberID, error) {
	query := `SELECT member_id FROM members WHERE group_id = $1 AND state = 'verified'`
	rows, err := s.db.QueryContext(ctx, query, group)
	if err != nil {
		return nil, fmt.Errorf("list verified: %w", err)
	}
	defer rows.Close()

	var members []domain.MemberID
	for rows.Next() {
		var member domain.MemberID
		if err := rows.Scan(&member); err != nil {
			return nil, fmt.Errorf("scan verified member: %w", err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list verified rows: %w", err)
	}
	return members, nil
}

func (s *PostgresStore) ListExpiredVerified(ctx context.Context, cutoff time.Time) ([]MemberKey, error) {
	query := `
		SELECT member_id, group_id FROM members
		WHERE state = 'verified' AND last_activity < $1
	`
	rows, err := s.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list expired: %w", err)
	}
	defer rows.Close()

	var keys []MemberKey
	for rows.Next() {
		var key MemberKey
		if err := rows.Scan(&key.MemberID, &key.GroupID); err != nil {
			return nil, fmt.Errorf("scan expired member: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expired rows: %w", err)
	}
	return keys, nil
}
