package user

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// DBTX is the interface for database operations.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Datastore handles database operations for users.
// It performs only database operations and returns raw errors.
// Business logic and error translation belong in the managers.
type Datastore struct {
	db DBTX
}

// NewDatastore creates a new user datastore.
func NewDatastore(db DBTX) *Datastore {
	return &Datastore{db: db}
}

const userColumns = `id, name, email, avatar, role, google_id, refresh_token, created_at, updated_at`

func scanUser(row interface{ Scan(dest ...any) error }) (*User, error) {
	u := &User{}
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.Avatar, &u.Role,
		&u.GoogleID, &u.RefreshToken, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Insert creates a new user record.
func (ds *Datastore) Insert(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now()

	query := `
		INSERT INTO users (id, name, email, avatar, role, google_id, refresh_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	return ds.db.QueryRowContext(ctx, query,
		u.ID, u.Name, u.Email, u.Avatar, u.Role, u.GoogleID, u.RefreshToken, now, now,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
}

// GetByID retrieves a user by ID.
// Returns sql.ErrNoRows if not found.
func (ds *Datastore) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(ds.db.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves a user by email, case-insensitively.
// Returns sql.ErrNoRows if not found.
func (ds *Datastore) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	return scanUser(ds.db.QueryRowContext(ctx, query, email))
}

// Update persists name, email, avatar and role changes.
// Returns rows affected count for caller to interpret.
func (ds *Datastore) Update(ctx context.Context, u *User) (int64, error) {
	query := `
		UPDATE users
		SET name = $2, email = $3, avatar = $4, role = $5, updated_at = NOW()
		WHERE id = $1`

	result, err := ds.db.ExecContext(ctx, query, u.ID, u.Name, u.Email, u.Avatar, u.Role)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Delete removes a user record.
// Returns rows affected count for caller to interpret.
func (ds *Datastore) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	query := `DELETE FROM users WHERE id = $1`

	result, err := ds.db.ExecContext(ctx, query, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// SetRefreshToken overwrites the stored refresh token. Passing an empty
// string clears it, which invalidates any outstanding session.
func (ds *Datastore) SetRefreshToken(ctx context.Context, id uuid.UUID, refreshToken string) (int64, error) {
	query := `UPDATE users SET refresh_token = $2, updated_at = NOW() WHERE id = $1`

	result, err := ds.db.ExecContext(ctx, query, id, refreshToken)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListQuery describes a page of the directory listing. OrderBy must be
// a whitelisted column name; callers are responsible for validating it.
type ListQuery struct {
	Search  string
	OrderBy string
	Desc    bool
	Limit   int
	Offset  int
}

// List retrieves a page of users matching the query. A non-empty search
// matches name or email as a case-insensitive substring.
func (ds *Datastore) List(ctx context.Context, q ListQuery) ([]*User, error) {
	direction := "ASC"
	if q.Desc {
		direction = "DESC"
	}

	// OrderBy is a validated column name, never raw input.
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE $1 = '' OR name ILIKE $2 OR email ILIKE $2
		ORDER BY ` + q.OrderBy + ` ` + direction + `
		LIMIT $3 OFFSET $4`

	pattern := "%" + q.Search + "%"
	rows, err := ds.db.QueryContext(ctx, query, q.Search, pattern, q.Limit, q.Offset)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	users := []*User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}

// Count returns the number of users matching the search filter.
func (ds *Datastore) Count(ctx context.Context, search string) (int, error) {
	query := `SELECT COUNT(*) FROM users WHERE $1 = '' OR name ILIKE $2 OR email ILIKE $2`

	var count int
	err := ds.db.QueryRowContext(ctx, query, search, "%"+search+"%").Scan(&count)
	return count, err
}

// CountAdmins returns the number of admin users, excluding the given ID.
// Pass uuid.Nil to count all admins.
func (ds *Datastore) CountAdmins(ctx context.Context, excludingID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM users WHERE role = 'admin' AND id <> $1`

	var count int
	err := ds.db.QueryRowContext(ctx, query, excludingID).Scan(&count)
	return count, err
}

// CountCreatedSince returns the number of users created at or after t.
func (ds *Datastore) CountCreatedSince(ctx context.Context, t time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM users WHERE created_at >= $1`

	var count int
	err := ds.db.QueryRowContext(ctx, query, t).Scan(&count)
	return count, err
}

// CountCreatedBetween returns the number of users created in [from, to).
func (ds *Datastore) CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM users WHERE created_at >= $1 AND created_at < $2`

	var count int
	err := ds.db.QueryRowContext(ctx, query, from, to).Scan(&count)
	return count, err
}

// CountActiveSessions returns the number of users holding a live
// refresh token. With one active refresh token per user this equals the
// number of active sessions.
func (ds *Datastore) CountActiveSessions(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM users WHERE refresh_token <> ''`

	var count int
	err := ds.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}
