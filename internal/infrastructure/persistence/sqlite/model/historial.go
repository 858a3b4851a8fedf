package model

import (
	"time"

	"gorm.io/datatypes"
)

// HistorialComentario rows are insert-only.
type HistorialComentario struct {
	ComentarioID      uint64    `gorm:"column:comentario_id;primaryKey;autoIncrement"`
	LegajoID          uint64    `gorm:"column:legajo_id;not null;index:idx_comentario_legajo_fecha,priority:1"`
	Tipo              string    `gorm:"column:tipo;type:text;not null;index"`
	Comentario        string    `gorm:"column:comentario;type:text;not null"`
	Archivo           string    `gorm:"column:archivo;type:text;not null;default:''"`
	Usuario           string    `gorm:"column:usuario;type:text;not null"`
	EstadoRelacionado string    `gorm:"column:estado_relacionado;type:text;not null;default:''"`
	CreatedAt         time.Time `gorm:"column:created_at;not null;index:idx_comentario_legajo_fecha,priority:2"`
}

func (HistorialComentario) TableName() string {
	return "historial_comentarios"
}

type AuditEvent struct {
	AuditID   uint64         `gorm:"column:audit_id;primaryKey;autoIncrement"`
	Actor     string         `gorm:"column:actor;type:text;not null"`
	Action    string         `gorm:"column:action;type:text;not null;index"`
	Entity    string         `gorm:"column:entity;type:text;not null;index:idx_audit_entity,priority:1"`
	EntityID  uint64         `gorm:"column:entity_id;not null;index:idx_audit_entity,priority:2"`
	Payload   datatypes.JSON `gorm:"column:payload;not null"`
	CreatedAt time.Time      `gorm:"column:created_at;not null;index"`
}

func (AuditEvent) TableName() string {
	return "audit_events"
}
