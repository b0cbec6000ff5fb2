package accounts

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
)

// Users is the users table.
type Users interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)
	GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string) (*User, error)

	Create(ctx context.Context, user *User) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)

	SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
	SetVerified(ctx context.Context, id uuid.UUID, verified bool) error
	SetVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, verified bool) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	SetActiveTx(ctx context.Context, tx bun.IDB, id uuid.UUID, active bool) error
	SetRole(ctx context.Context, id uuid.UUID, role UserRole) error
	SetRoleTx(ctx context.Context, tx bun.IDB, id uuid.UUID, role UserRole) error

	TrackAttemptedLogin(ctx context.Context, user *User, policy LockoutPolicy, now time.Time) error
	TrackSuccessfulLogin(ctx context.Context, user *User) error

	Count(ctx context.Context) (int, error)
	List(ctx context.Context, offset, limit int) ([]*User, error)
}

type users struct {
	db *bun.DB
}

var _ Users = (*users)(nil)

// NewUsersRepository returns the bun backed Users repository.
func NewUsersRepository(db *bun.DB) Users {
	return &users{db: db}
}

func (a *users) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.GetByIDTx(ctx, a.db, id)
}

func (a *users) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err, "id", id.String())
	}
	return record, nil
}

func (a *users) GetByIdentifier(ctx context.Context, identifier string) (*User, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier)
}

// GetByIdentifierTx looks users up by id when identifier is a UUID and by
// email otherwise.
func (a *users) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string) (*User, error) {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil, accountsError(CodeNotFound).Wrap(ErrNotFound)
	}

	if id, err := uuid.Parse(trimmed); err == nil {
		return a.GetByIDTx(ctx, tx, id)
	}

	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", NormalizeEmail(trimmed)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err, "email", trimmed)
	}
	return record, nil
}

func (a *users) Create(ctx context.Context, user *User) (*User, error) {
	return a.CreateTx(ctx, a.db, user)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user)

	if _, err := tx.NewInsert().Model(user).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, accountsError(CodeEmailTaken).
				With("email", user.Email).
				Wrap(ErrEmailTaken)
		}
		return nil, internalError(err, "failed to insert user")
	}

	return user, nil
}

func (a *users) SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.SetPasswordTx(ctx, a.db, id, passwordHash)
}

func (a *users) SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	return a.updateColumns(ctx, tx, id, map[string]any{
		"password_hash":    passwordHash,
		"login_attempts":   0,
		"login_attempt_at": nil,
	})
}

func (a *users) SetVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	return a.SetVerifiedTx(ctx, a.db, id, verified)
}

func (a *users) SetVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, verified bool) error {
	return a.updateColumns(ctx, tx, id, map[string]any{"is_verified": verified})
}

func (a *users) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return a.SetActiveTx(ctx, a.db, id, active)
}

func (a *users) SetActiveTx(ctx context.Context, tx bun.IDB, id uuid.UUID, active bool) error {
	return a.updateColumns(ctx, tx, id, map[string]any{"is_active": active})
}

func (a *users) SetRole(ctx context.Context, id uuid.UUID, role UserRole) error {
	return a.SetRoleTx(ctx, a.db, id, role)
}

func (a *users) SetRoleTx(ctx context.Context, tx bun.IDB, id uuid.UUID, role UserRole) error {
	if !role.IsValid() {
		return accountsError(CodeValidationFailed).
			With("role", role).
			Errorf("unknown role %q", role)
	}
	return a.updateColumns(ctx, tx, id, map[string]any{"user_role": string(role)})
}

func (a *users) TrackSuccessfulLogin(ctx context.Context, user *User) error {
	loggedInAt := time.Now()
	err := a.updateColumns(ctx, a.db, user.ID, map[string]any{
		"last_login":       loggedInAt,
		"login_attempt_at": nil,
		"login_attempts":   0,
	})
	if err != nil {
		return err
	}

	markLoggedIn(user, loggedInAt)
	return nil
}

// TrackAttemptedLogin counts one login attempt for user in a single
// statement. Failures older than the policy cool down restart the count. It
// returns ErrTooManyLoginAttempts without counting once the account is locked.
func (a *users) TrackAttemptedLogin(ctx context.Context, user *User, policy LockoutPolicy, now time.Time) error {
	now = now.UTC()
	cutoff := now.Add(-policy.CoolDown)

	q := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("login_attempts = CASE WHEN login_attempt_at IS NULL OR login_attempt_at > ? THEN login_attempts + 1 ELSE 1 END", cutoff).
		Set("login_attempt_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", user.ID)

	if policy.MaxAttempts > 0 {
		q = q.Where("(login_attempts < ? OR login_attempt_at <= ?)", policy.MaxAttempts, cutoff)
	}

	var attempts int
	if err := q.Returning("login_attempts").Scan(ctx, &attempts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return accountsError(CodeTooManyLoginAttempts).
				With("user_id", user.ID.String()).
				Wrap(ErrTooManyLoginAttempts)
		}
		return internalError(err, "failed to track login attempt")
	}

	user.LoginAttempts = attempts
	user.LoginAttemptAt = &now
	return nil
}

func (a *users) Count(ctx context.Context) (int, error) {
	count, err := a.db.NewSelect().Model((*User)(nil)).Count(ctx)
	if err != nil {
		return 0, internalError(err, "failed to count users")
	}
	return count, nil
}

// List returns users ordered by email.
func (a *users) List(ctx context.Context, offset, limit int) ([]*User, error) {
	records := []*User{}
	err := a.db.NewSelect().
		Model(&records).
		Order("email ASC").
		Offset(offset).
		Limit(limit).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, internalError(err, "failed to list users")
	}
	return records, nil
}

func (a *users) updateColumns(ctx context.Context, tx bun.IDB, id uuid.UUID, values map[string]any) error {
	q := tx.NewUpdate().
		Model((*User)(nil)).
		Where("id = ?", id).
		Set("updated_at = ?", time.Now())

	for column, value := range values {
		q = q.Set("? = ?", bun.Ident(column), value)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return internalError(err, "failed to update user")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return accountsError(CodeNotFound).
			With("id", id.String()).
			Wrap(ErrNotFound)
	}

	return nil
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RoleMember
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	record.Email = NormalizeEmail(record.Email)

	now := time.Now()
	if record.DateJoined == nil {
		record.DateJoined = &now
	}
	record.UpdatedAt = &now
}

func notFoundOr(err error, key, value string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return accountsError(CodeNotFound).
			With(key, value).
			Wrap(ErrNotFound)
	}
	return internalError(err, "failed to query users")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
