package model

import (
	"time"

	"gorm.io/datatypes"
)

type RegistroErroneo struct {
	RegistroID   uint64         `gorm:"column:registro_id;primaryKey;autoIncrement"`
	ExpedienteID uint64         `gorm:"column:expediente_id;not null;index"`
	Fila         int            `gorm:"column:fila;not null"`
	Datos        datatypes.JSON `gorm:"column:datos;not null"`
	Campo        string         `gorm:"column:campo;type:text;not null;default:''"`
	Mensaje      string         `gorm:"column:mensaje;type:text;not null"`
	Procesado    bool           `gorm:"column:procesado;not null;default:false;index"`
	ProcesadoAt  *time.Time     `gorm:"column:procesado_at"`
	LegajoID     *uint64        `gorm:"column:legajo_id"`
	CreatedAt    time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;not null"`
}

func (RegistroErroneo) TableName() string {
	return "registros_erroneos"
}
