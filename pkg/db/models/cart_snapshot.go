package models

import "time"

// CartSnapshot holds the serialized cart of one session.
type CartSnapshot struct {
	Key       string    `gorm:"column:snapshot_key;type:varchar(255);primaryKey"`
	Payload   string    `gorm:"column:payload;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;index:idx_cart_snapshots_updated_at"`
}

func (CartSnapshot) TableName() string {
	return "cart_snapshots"
}
