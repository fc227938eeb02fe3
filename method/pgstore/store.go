// Package pgstore implements method.Store on PostgreSQL with pgx.
//
// Each Mutate runs in one transaction that first takes a transaction-scoped
// advisory lock derived from the user id, so concurrent mutations for the
// same user are serialized even when the user has no rows yet. The partial
// unique index in Schema backs the single-primary invariant at the database
// level.
package pgstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/MrEthical07/goMFA/method"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the table and indexes used by Store.
const Schema = `
CREATE TABLE IF NOT EXISTS mfa_methods (
	user_id           TEXT        NOT NULL,
	name              TEXT        NOT NULL,
	secret            TEXT        NOT NULL,
	is_active         BOOLEAN     NOT NULL DEFAULT FALSE,
	is_primary        BOOLEAN     NOT NULL DEFAULT FALSE,
	counter           BIGINT      NOT NULL DEFAULT 0,
	code_generated_at TIMESTAMPTZ NULL,
	backup_codes      TEXT        NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL,
	activated_at      TIMESTAMPTZ NULL,
	PRIMARY KEY (user_id, name),
	CONSTRAINT mfa_methods_primary_is_active CHECK (NOT is_primary OR is_active)
);
CREATE UNIQUE INDEX IF NOT EXISTS mfa_methods_one_primary
	ON mfa_methods (user_id) WHERE is_primary;
`

const selectMethods = `
	SELECT name, secret, is_active, is_primary, counter, code_generated_at,
	       backup_codes, created_at, activated_at
	FROM mfa_methods
	WHERE user_id = $1`

const upsertMethod = `
	INSERT INTO mfa_methods (user_id, name, secret, is_active, is_primary, counter,
	                         code_generated_at, backup_codes, created_at, activated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (user_id, name) DO UPDATE SET
		secret = EXCLUDED.secret,
		is_active = EXCLUDED.is_active,
		is_primary = EXCLUDED.is_primary,
		counter = EXCLUDED.counter,
		code_generated_at = EXCLUDED.code_generated_at,
		backup_codes = EXCLUDED.backup_codes,
		activated_at = EXCLUDED.activated_at`

// Store is a method.Store backed by a pgx pool.
type Store struct {
	db *pgxpool.Pool
}

// New returns a store using db.
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// EnsureSchema applies Schema.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply mfa_methods schema: %w", err)
	}
	return nil
}

// Load implements method.Store.
func (s *Store) Load(ctx context.Context, userID string) (*method.Set, error) {
	methods, err := loadMethods(ctx, s.db, userID, false)
	if err != nil {
		return nil, err
	}
	return method.NewSet(userID, methods), nil
}

// Mutate implements method.Store.
func (s *Store) Mutate(ctx context.Context, userID string, fn func(*method.Set) error) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, userID); err != nil {
			return fmt.Errorf("failed to lock mfa methods: %w", err)
		}

		methods, err := loadMethods(ctx, tx, userID, true)
		if err != nil {
			return err
		}
		set := method.NewSet(userID, methods)
		if err := fn(set); err != nil {
			return err
		}

		changed := set.Changed()
		// Clear primacy before granting it so the partial unique index never
		// sees two primaries within the statement sequence.
		sort.SliceStable(changed, func(i, j int) bool {
			return !changed[i].IsPrimary && changed[j].IsPrimary
		})
		for _, m := range changed {
			if err := upsert(ctx, tx, m); err != nil {
				return err
			}
		}
		return nil
	})
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadMethods(ctx context.Context, q querier, userID string, forUpdate bool) ([]*method.Method, error) {
	query := selectMethods
	if forUpdate {
		query += " FOR UPDATE"
	}

	rows, err := q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load mfa methods: %w", err)
	}
	defer rows.Close()

	var out []*method.Method
	for rows.Next() {
		var (
			m           = &method.Method{UserID: userID}
			counter     int64
			generatedAt *time.Time
			activatedAt *time.Time
			codes       string
		)
		if err := rows.Scan(&m.Name, &m.Secret, &m.IsActive, &m.IsPrimary, &counter,
			&generatedAt, &codes, &m.CreatedAt, &activatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan mfa method: %w", err)
		}
		m.Counter = uint64(counter)
		m.CreatedAt = m.CreatedAt.UTC()
		if generatedAt != nil {
			m.CodeGeneratedAt = generatedAt.UTC()
		}
		if activatedAt != nil {
			m.ActivatedAt = activatedAt.UTC()
		}
		m.BackupCodes = splitCodes(codes)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read mfa methods: %w", err)
	}
	return out, nil
}

func upsert(ctx context.Context, tx pgx.Tx, m *method.Method) error {
	codes, err := joinCodes(m.BackupCodes)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, upsertMethod,
		m.UserID, m.Name, m.Secret, m.IsActive, m.IsPrimary, int64(m.Counter),
		nullTime(m.CodeGeneratedAt), codes, m.CreatedAt, nullTime(m.ActivatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to write mfa method %q: %w", m.Name, err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("%w: %q not written", method.ErrConflict, m.Name)
	}
	return nil
}

func joinCodes(codes []string) (string, error) {
	for _, c := range codes {
		if strings.ContainsRune(c, method.BackupCodeDelimiter) {
			return "", fmt.Errorf("backup code entry contains reserved delimiter %q", method.BackupCodeDelimiter)
		}
	}
	return strings.Join(codes, string(method.BackupCodeDelimiter)), nil
}

func splitCodes(column string) []string {
	if column == "" {
		return nil
	}
	return strings.Split(column, string(method.BackupCodeDelimiter))
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

var _ method.Store = (*Store)(nil)
