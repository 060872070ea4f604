// Package prefstore persists wallet preferences such as the last connector in
// PostgreSQL.
package prefstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

type pgStore struct {
	db  *bun.DB
	now func() time.Time
}

// NewStore creates a postgres implementation of wallet.PreferenceStore.
func NewStore(db *bun.DB) *pgStore {
	return &pgStore{db: db, now: time.Now}
}

func (s *pgStore) Get(ctx context.Context, key string) (string, bool, error) {
	dao := new(PreferenceDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("key = ?", key).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get preference %s: %w", key, err)
	}
	return dao.Value, true, nil
}

func (s *pgStore) Set(ctx context.Context, key, value string) error {
	dao := &PreferenceDao{Key: key, Value: value, UpdatedAt: s.now().UTC()}
	_, err := s.db.NewInsert().
		Model(dao).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set preference %s: %w", key, err)
	}
	return nil
}

func (s *pgStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().
		Model((*PreferenceDao)(nil)).
		Where("key = ?", key).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete preference %s: %w", key, err)
	}
	return nil
}
