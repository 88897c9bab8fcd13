package opslock

import (
	"context"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-autonomax/app/entity"
	"github.com/vibast-solutions/ms-go-autonomax/app/repository"
)

// SQLStore keeps lock records in the ops_locks table.
type SQLStore struct {
	repo *repository.OpsLockRepository
}

// NewSQLStore wraps the ops lock repository as a Store.
func NewSQLStore(repo *repository.OpsLockRepository) *SQLStore {
	return &SQLStore{repo: repo}
}

func (s *SQLStore) TryAcquire(ctx context.Context, name string, now time.Time, until time.Time) (bool, error) {
	return s.repo.TryAcquire(ctx, name, now, until)
}

func (s *SQLStore) Find(ctx context.Context, name string) (*entity.OpsLock, error) {
	l, err := s.repo.FindByName(ctx, name)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return l, err
}

func (s *SQLStore) List(ctx context.Context) ([]entity.OpsLock, error) {
	return s.repo.List(ctx)
}
