package prefstore

import (
	"time"

	"github.com/uptrace/bun"
)

// PreferenceDao maps to the 'wallet_preferences' table.
type PreferenceDao struct {
	bun.BaseModel `bun:"table:wallet_preferences,alias:wp"`
	Key           string    `bun:"key,pk,type:varchar(128)"`
	Value         string    `bun:"value,notnull,type:text"`
	UpdatedAt     time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}
