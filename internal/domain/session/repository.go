package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists sessions. Rows are never deleted.
type Repository interface {
	Create(ctx context.Context, sess *Session) error
	FindByID(ctx context.Context, id uuid.UUID) (*Session, error)
	// Revoke writes all revocation fields if the session is not revoked yet and
	// reports whether a row changed.
	Revoke(ctx context.Context, id uuid.UUID, rev Revocation) (bool, error)
	UpdateLastUsed(ctx context.Context, id uuid.UUID, t time.Time) error
	FindActiveByUserID(ctx context.Context, userID uuid.UUID, now time.Time) ([]Session, error)
	// FindReplaced returns the session that was revoked in favour of id, if any.
	FindReplaced(ctx context.Context, id uuid.UUID) (*Session, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db}
}

func (r *repository) Create(ctx context.Context, sess *Session) error {
	return r.db.WithContext(ctx).Create(sess).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	var sess Session
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&sess).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &sess, nil
}

func (r *repository) Revoke(ctx context.Context, id uuid.UUID, rev Revocation) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Session{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Updates(map[string]any{
			"revoked_at":     rev.At,
			"revoked_by":     rev.By,
			"revoked_by_ip":  rev.ByIP,
			"revoked_reason": rev.Reason,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) UpdateLastUsed(ctx context.Context, id uuid.UUID, t time.Time) error {
	return r.db.WithContext(ctx).Model(&Session{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("last_used", t).Error
}

func (r *repository) FindActiveByUserID(ctx context.Context, userID uuid.UUID, now time.Time) ([]Session, error) {
	var sessions []Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND revoked_at IS NULL AND expires_at > ?", userID, now).
		Order("issued_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *repository) FindReplaced(ctx context.Context, id uuid.UUID) (*Session, error) {
	var sess Session
	err := r.db.WithContext(ctx).Where("revoked_by = ?", id).Order("revoked_at ASC").First(&sess).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &sess, nil
}
