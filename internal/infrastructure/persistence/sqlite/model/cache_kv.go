package model

import "time"

type CacheKV struct {
	Key       string     `gorm:"column:key;type:text;primaryKey"`
	Value     string     `gorm:"column:value;type:text;not null"`
	ExpiresAt *time.Time `gorm:"column:expires_at;index"`
	UpdatedAt time.Time  `gorm:"column:updated_at;not null"`
}

func (CacheKV) TableName() string {
	return "cache_kv"
}
