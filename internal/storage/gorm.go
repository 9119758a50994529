package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/rocketshoes-cart/internal/cart"
	"github.com/angelmondragon/rocketshoes-cart/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps snapshots in the cart_snapshots table.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db required")
	}
	return &GormStore{db: db, now: time.Now}, nil
}

func (s *GormStore) Load(ctx context.Context, key string) ([]byte, error) {
	var row models.CartSnapshot
	err := s.db.WithContext(ctx).Where("snapshot_key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, cart.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot %q: %w", key, err)
	}
	return []byte(row.Payload), nil
}

// Save upserts the row so the snapshot is always replaced whole.
func (s *GormStore) Save(ctx context.Context, key string, payload []byte) error {
	row := models.CartSnapshot{
		Key:       key,
		Payload:   string(payload),
		UpdatedAt: s.now().UTC(),
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "snapshot_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("saving snapshot %q: %w", key, err)
	}
	return nil
}

// Prune deletes snapshots not updated since cutoff and reports how many were removed.
func (s *GormStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("updated_at < ?", cutoff.UTC()).Delete(&models.CartSnapshot{})
	if res.Error != nil {
		return 0, fmt.Errorf("pruning snapshots: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
