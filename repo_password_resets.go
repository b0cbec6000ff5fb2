package accounts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// PasswordResets stores password reset requests.
type PasswordResets interface {
	CreateTx(ctx context.Context, tx bun.IDB, reset *PasswordReset) (*PasswordReset, error)
	LatestForUser(ctx context.Context, userID uuid.UUID) (*PasswordReset, error)
	MarkChangedTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int, error)
	ExpireStaleTx(ctx context.Context, tx bun.IDB, cutoff time.Time) (int, error)
}

type passwordResets struct {
	db *bun.DB
}

// NewPasswordResetsRepository returns the bun backed PasswordResets repository.
func NewPasswordResetsRepository(db *bun.DB) PasswordResets {
	return &passwordResets{db: db}
}

func (r *passwordResets) CreateTx(ctx context.Context, tx bun.IDB, reset *PasswordReset) (*PasswordReset, error) {
	if reset.ID == uuid.Nil {
		reset.ID = uuid.New()
	}

	if reset.Status == "" {
		reset.Status = ResetRequestedStatus
	}

	now := time.Now()
	if reset.CreatedAt == nil {
		reset.CreatedAt = &now
	}
	reset.UpdatedAt = &now

	if _, err := tx.NewInsert().Model(reset).Exec(ctx); err != nil {
		return nil, internalError(err, "failed to create password reset record")
	}

	return reset, nil
}

func (r *passwordResets) LatestForUser(ctx context.Context, userID uuid.UUID) (*PasswordReset, error) {
	record := &PasswordReset{}
	err := r.db.NewSelect().
		Model(record).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err, "user_id", userID.String())
	}
	return record, nil
}

// MarkChangedTx closes every open request of a user once the password changed.
func (r *passwordResets) MarkChangedTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int, error) {
	now := time.Now()
	res, err := tx.NewUpdate().
		Model((*PasswordReset)(nil)).
		Set("status = ?", ResetChangedStatus).
		Set("reseted_at = ?", now).
		Set("updated_at = ?", now).
		Where("user_id = ?", userID).
		Where("status = ?", ResetRequestedStatus).
		Exec(ctx)
	if err != nil {
		return 0, internalError(err, "failed to update password reset status")
	}

	return rowsAffected(res), nil
}

// ExpireStaleTx expires open requests created before cutoff.
func (r *passwordResets) ExpireStaleTx(ctx context.Context, tx bun.IDB, cutoff time.Time) (int, error) {
	res, err := tx.NewUpdate().
		Model((*PasswordReset)(nil)).
		Set("status = ?", ResetExpiredStatus).
		Set("updated_at = ?", time.Now()).
		Where("status = ?", ResetRequestedStatus).
		Where("created_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, internalError(err, "failed to expire password reset records")
	}

	return rowsAffected(res), nil
}

func rowsAffected(res interface{ RowsAffected() (int64, error) }) int {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return int(n)
}
