package model

import "time"

type WorkItem struct {
	WorkItemID   uint64     `gorm:"column:work_item_id;primaryKey;autoIncrement"`
	Kind         string     `gorm:"column:kind;type:text;not null;index:idx_work_claim,priority:1"`
	Key          string     `gorm:"column:work_key;type:text;not null;uniqueIndex"`
	ExpedienteID uint64     `gorm:"column:expediente_id;not null;index"`
	LegajoID     uint64     `gorm:"column:legajo_id;not null"`
	Status       string     `gorm:"column:status;type:text;not null;index:idx_work_claim,priority:2"`
	Attempts     int        `gorm:"column:attempts;not null;default:0"`
	LastError    string     `gorm:"column:last_error;type:text;not null;default:''"`
	AvailableAt  time.Time  `gorm:"column:available_at;not null;index:idx_work_claim,priority:3"`
	LeaseToken   string     `gorm:"column:lease_token;type:text;not null;default:''"`
	LeasedUntil  *time.Time `gorm:"column:leased_until"`
	CreatedAt    time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;not null"`
}

func (WorkItem) TableName() string {
	return "work_items"
}
