package model

import "time"

type AsignacionTecnico struct {
	AsignacionID  uint64     `gorm:"column:asignacion_id;primaryKey;autoIncrement"`
	Tecnico       string     `gorm:"column:tecnico;type:text;not null;index"`
	ExpedienteID  uint64     `gorm:"column:expediente_id;not null;index"`
	LegajoID      *uint64    `gorm:"column:legajo_id;index;uniqueIndex:idx_asignacion_legajo_activa,where:activa = 1"`
	Activa        bool       `gorm:"column:activa;not null;default:true;index"`
	AsignadoPor   string     `gorm:"column:asignado_por;type:text;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null"`
	DesactivadaAt *time.Time `gorm:"column:desactivada_at"`
}

func (AsignacionTecnico) TableName() string {
	return "asignaciones_tecnico"
}
