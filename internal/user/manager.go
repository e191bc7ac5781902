package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"userboard/internal/mail"
)

// Domain errors
var (
	ErrNotFound       = errors.New("user not found")
	ErrMissingFields  = errors.New("name and email are required")
	ErrInvalidRole    = errors.New("invalid role")
	ErrDuplicateEmail = errors.New("email already in use")
	ErrAdminExists    = errors.New("only one admin account is allowed")
)

const (
	defaultPage  = 1
	defaultLimit = 10
)

// sortColumns whitelists the directory sort fields. Unknown fields fall
// back to creation time.
var sortColumns = map[string]string{
	"name":       "name",
	"email":      "email",
	"role":       "role",
	"createdAt":  "created_at",
	"created_at": "created_at",
	"updatedAt":  "updated_at",
	"updated_at": "updated_at",
}

// Manager handles business logic for the user directory.
type Manager struct {
	ds     *Datastore
	mailer mail.Mailer
}

// NewManager creates a new user manager.
func NewManager(ds *Datastore, mailer mail.Mailer) *Manager {
	return &Manager{ds: ds, mailer: mailer}
}

// ListParams are the raw listing inputs as they arrive from a request.
type ListParams struct {
	Page   int
	Limit  int
	Search string
	Sort   string
	Order  string
}

// Pagination describes the page of results returned by List.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// List returns a page of users. Non-positive page/limit fall back to
// 1/10; the sort field is whitelisted, order defaults to descending.
// A page beyond the last returns an empty slice, not an error.
func (m *Manager) List(ctx context.Context, p ListParams) ([]*User, Pagination, error) {
	page := p.Page
	if page < 1 {
		page = defaultPage
	}
	limit := p.Limit
	if limit < 1 {
		limit = defaultLimit
	}

	orderBy, ok := sortColumns[p.Sort]
	if !ok {
		orderBy = "created_at"
	}

	search := strings.TrimSpace(p.Search)

	users, err := m.ds.List(ctx, ListQuery{
		Search:  search,
		OrderBy: orderBy,
		Desc:    p.Order != "asc",
		Limit:   limit,
		Offset:  (page - 1) * limit,
	})
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to list users: %w", err)
	}

	total, err := m.ds.Count(ctx, search)
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to count users: %w", err)
	}

	return users, Pagination{
		Page:  page,
		Limit: limit,
		Total: total,
		Pages: int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

// GetByID retrieves a user by ID.
func (m *Manager) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := m.ds.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// Create adds a user to the directory and sends the welcome email in
// the background. Role defaults to user when empty.
func (m *Manager) Create(ctx context.Context, name, email, role string) (*User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" {
		return nil, ErrMissingFields
	}

	if role == "" {
		role = RoleUser
	}
	if !ValidRole(role) {
		return nil, ErrInvalidRole
	}

	// Pre-checks produce the stable error messages; the unique indexes
	// are what actually hold under concurrent requests.
	if _, err := m.ds.GetByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	if role == RoleAdmin {
		admins, err := m.ds.CountAdmins(ctx, uuid.Nil)
		if err != nil {
			return nil, fmt.Errorf("failed to count admins: %w", err)
		}
		if admins > 0 {
			return nil, ErrAdminExists
		}
	}

	u := &User{
		Name:  name,
		Email: email,
		Role:  role,
	}

	if err := m.ds.Insert(ctx, u); err != nil {
		if translated := constraintError(err); translated != nil {
			return nil, translated
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	m.dispatchWelcome(u.Email, u.Name)

	return u, nil
}

// Update applies a partial update: empty fields retain prior values.
func (m *Manager) Update(ctx context.Context, id uuid.UUID, name, email, role string) (*User, error) {
	u, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	email = strings.TrimSpace(email)
	if email != "" && !strings.EqualFold(email, u.Email) {
		if _, err := m.ds.GetByEmail(ctx, email); err == nil {
			return nil, ErrDuplicateEmail
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
	}

	if role != "" && !ValidRole(role) {
		return nil, ErrInvalidRole
	}
	if role == RoleAdmin && u.Role != RoleAdmin {
		admins, err := m.ds.CountAdmins(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to count admins: %w", err)
		}
		if admins > 0 {
			return nil, ErrAdminExists
		}
	}

	if name = strings.TrimSpace(name); name != "" {
		u.Name = name
	}
	if email != "" {
		u.Email = email
	}
	if role != "" {
		u.Role = role
	}

	rowsAffected, err := m.ds.Update(ctx, u)
	if err != nil {
		if translated := constraintError(err); translated != nil {
			return nil, translated
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrNotFound
	}

	return u, nil
}

// Delete removes a user. Deleting an already-removed user reports
// ErrNotFound again, not success.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID) error {
	rowsAffected, err := m.ds.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats are the dashboard aggregates.
type Stats struct {
	TotalUsers       int `json:"totalUsers"`
	NewSignups       int `json:"newSignups"`
	ActiveSessions   int `json:"activeSessions"`
	GrowthPercentage int `json:"growthPercentage"`
}

// Stats computes the dashboard aggregates: total users, signups since
// local midnight, live sessions (users holding a refresh token), and
// month-over-month growth. Growth is 0 when the prior 30-day window is
// empty.
func (m *Manager) Stats(ctx context.Context) (*Stats, error) {
	total, err := m.ds.Count(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	thirtyDaysAgo := now.AddDate(0, 0, -30)
	sixtyDaysAgo := now.AddDate(0, 0, -60)

	newSignups, err := m.ds.CountCreatedSince(ctx, midnight)
	if err != nil {
		return nil, fmt.Errorf("failed to count signups: %w", err)
	}

	last30, err := m.ds.CountCreatedSince(ctx, thirtyDaysAgo)
	if err != nil {
		return nil, fmt.Errorf("failed to count recent users: %w", err)
	}

	prior30, err := m.ds.CountCreatedBetween(ctx, sixtyDaysAgo, thirtyDaysAgo)
	if err != nil {
		return nil, fmt.Errorf("failed to count prior users: %w", err)
	}

	growth := 0
	if prior30 > 0 {
		growth = int(math.Round(float64(last30-prior30) / float64(prior30) * 100))
	}

	active, err := m.ds.CountActiveSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count active sessions: %w", err)
	}

	return &Stats{
		TotalUsers:       total,
		NewSignups:       newSignups,
		ActiveSessions:   active,
		GrowthPercentage: growth,
	}, nil
}

// dispatchWelcome sends the welcome email without blocking the caller.
// Failures are logged and dropped.
func (m *Manager) dispatchWelcome(email, name string) {
	if m.mailer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := m.mailer.SendWelcome(ctx, email, name); err != nil {
			log.Printf("welcome email to %s failed: %v", email, err)
		}
	}()
}

// constraintError translates unique-index violations into domain
// errors, covering the race the pre-checks cannot.
func constraintError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "users_email_unique":
			return ErrDuplicateEmail
		case "users_single_admin":
			return ErrAdminExists
		}
	}
	return nil
}
