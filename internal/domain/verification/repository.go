package verification

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, v *Verification) error
	FindByUserID(ctx context.Context, userID uuid.UUID) (*Verification, error)
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db}
}

func (r *repository) Create(ctx context.Context, v *Verification) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*Verification, error) {
	var v Verification
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").First(&v).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (r *repository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&Verification{}).Error
}

// MemoryRepository keeps verifications in process memory.
type MemoryRepository struct {
	mu     sync.Mutex
	byUser map[uuid.UUID]Verification
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byUser: make(map[uuid.UUID]Verification)}
}

func (m *MemoryRepository) Create(_ context.Context, v *Verification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	m.byUser[v.UserID] = *v
	return nil
}

func (m *MemoryRepository) FindByUserID(_ context.Context, userID uuid.UUID) (*Verification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.byUser[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (m *MemoryRepository) DeleteByUserID(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.byUser, userID)
	return nil
}
