package model

import "time"

type Expediente struct {
	ExpedienteID   uint64    `gorm:"column:expediente_id;primaryKey;autoIncrement"`
	Numero         string    `gorm:"column:numero;type:text;not null;default:''"`
	Provincia      string    `gorm:"column:provincia;type:text;not null;index"`
	Estado         string    `gorm:"column:estado;type:text;not null;index"`
	Version        int64     `gorm:"column:version;not null;default:1"`
	UsuarioCreador string    `gorm:"column:usuario_creador;type:text;not null"`
	ArchivoOrigen  string    `gorm:"column:archivo_origen;type:text;not null;default:''"`
	Validos        int64     `gorm:"column:validos;not null;default:0"`
	Erroneos       int64     `gorm:"column:erroneos;not null;default:0"`
	Aprobados      int64     `gorm:"column:aprobados;not null;default:0"`
	Rechazados     int64     `gorm:"column:rechazados;not null;default:0"`
	EnSubsanacion  int64     `gorm:"column:en_subsanacion;not null;default:0"`
	Dentro         int64     `gorm:"column:dentro;not null;default:0"`
	Fuera          int64     `gorm:"column:fuera;not null;default:0"`
	Pagados        int64     `gorm:"column:pagados;not null;default:0"`
	CreatedAt      time.Time `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time `gorm:"column:updated_at;not null"`
}

func (Expediente) TableName() string {
	return "expedientes"
}

type ExpedienteEstadoHistorial struct {
	HistorialID    uint64    `gorm:"column:historial_id;primaryKey;autoIncrement"`
	ExpedienteID   uint64    `gorm:"column:expediente_id;not null;index"`
	EstadoAnterior string    `gorm:"column:estado_anterior;type:text;not null"`
	EstadoNuevo    string    `gorm:"column:estado_nuevo;type:text;not null"`
	Usuario        string    `gorm:"column:usuario;type:text;not null"`
	Observacion    string    `gorm:"column:observacion;type:text;not null;default:''"`
	CreatedAt      time.Time `gorm:"column:created_at;not null;index"`
}

func (ExpedienteEstadoHistorial) TableName() string {
	return "expediente_estado_historial"
}
