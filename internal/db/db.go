// Package db provides the account and assignment repository behind the
// reference artifact store: PostgreSQL through pgx, or an in-memory map.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonathan/resume-vault/internal/types"
)

// uniqueViolation is the SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS vault_users (
	id            UUID PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL CHECK (role IN ('bidder', 'developer', 'admin')),
	developer_id  UUID REFERENCES vault_users(id) ON DELETE SET NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS vault_users_developer_idx ON vault_users (developer_id);
`

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

var _ Users = (*DB)(nil)

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Migrate creates the tables if they do not exist.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

const userColumns = `id::text, username, password_hash, role, COALESCE(developer_id::text, ''), created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var role string
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &u.DeveloperID, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = types.Role(role)
	return &u, nil
}

func (db *DB) collect(rows pgx.Rows) ([]User, error) {
	defer rows.Close()
	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// CreateUser inserts an account and returns it.
func (db *DB) CreateUser(ctx context.Context, username, passwordHash string, role types.Role) (*User, error) {
	u, err := scanUser(db.pool.QueryRow(ctx,
		`INSERT INTO vault_users (id, username, password_hash, role)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns,
		uuid.NewString(), username, passwordHash, string(role),
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, &ErrUsernameTaken{Username: username}
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

// GetUser returns the account with id.
func (db *DB) GetUser(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, &ErrUserNotFound{ID: id}
	}
	u, err := scanUser(db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM vault_users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ErrUserNotFound{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetUserByUsername returns the account named username.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	u, err := scanUser(db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM vault_users WHERE username = $1`, username))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ErrUserNotFound{ID: username}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return u, nil
}

// ListUsers returns every account ordered by username.
func (db *DB) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+userColumns+` FROM vault_users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return db.collect(rows)
}

// ListAssignedBidders returns the bidders assigned to developerID.
func (db *DB) ListAssignedBidders(ctx context.Context, developerID string) ([]User, error) {
	if _, err := uuid.Parse(developerID); err != nil {
		return []User{}, nil
	}
	rows, err := db.pool.Query(ctx,
		`SELECT `+userColumns+` FROM vault_users
		 WHERE role = 'bidder' AND developer_id = $1 ORDER BY username`, developerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assigned bidders: %w", err)
	}
	return db.collect(rows)
}

// DeleteUser removes an account. Bidders assigned to it become unassigned.
func (db *DB) DeleteUser(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return &ErrUserNotFound{ID: id}
	}
	tag, err := db.pool.Exec(ctx, `DELETE FROM vault_users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &ErrUserNotFound{ID: id}
	}
	return nil
}

// SetRole changes an account's role and drops assignments that no longer fit.
func (db *DB) SetRole(ctx context.Context, id string, role types.Role) error {
	if _, err := uuid.Parse(id); err != nil {
		return &ErrUserNotFound{ID: id}
	}
	return pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE vault_users SET role = $2,
			   developer_id = CASE WHEN $2 = 'bidder' THEN developer_id ELSE NULL END
			 WHERE id = $1`, id, string(role))
		if err != nil {
			return fmt.Errorf("failed to set role: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return &ErrUserNotFound{ID: id}
		}
		if role != types.RoleDeveloper {
			if _, err := tx.Exec(ctx, `UPDATE vault_users SET developer_id = NULL WHERE developer_id = $1`, id); err != nil {
				return fmt.Errorf("failed to release bidders: %w", err)
			}
		}
		return nil
	})
}

// SetPassword replaces an account's password hash.
func (db *DB) SetPassword(ctx context.Context, id, passwordHash string) error {
	if _, err := uuid.Parse(id); err != nil {
		return &ErrUserNotFound{ID: id}
	}
	tag, err := db.pool.Exec(ctx, `UPDATE vault_users SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &ErrUserNotFound{ID: id}
	}
	return nil
}

// Assign assigns a bidder to a developer.
func (db *DB) Assign(ctx context.Context, bidderID, developerID string) error {
	bidder, err := db.GetUser(ctx, bidderID)
	if err != nil {
		return err
	}
	developer, err := db.GetUser(ctx, developerID)
	if err != nil {
		return err
	}
	if err := checkAssignment(bidder, developer); err != nil {
		return err
	}
	if _, err := db.pool.Exec(ctx, `UPDATE vault_users SET developer_id = $2 WHERE id = $1`, bidderID, developerID); err != nil {
		return fmt.Errorf("failed to assign bidder: %w", err)
	}
	return nil
}
