package model

import "time"

type TipoDocumento struct {
	TipoDocumentoID uint64 `gorm:"column:tipo_documento_id;primaryKey;autoIncrement"`
	Nombre          string `gorm:"column:nombre;type:text;not null;uniqueIndex"`
	Descripcion     string `gorm:"column:descripcion;type:text;not null;default:''"`
	Requerido       bool   `gorm:"column:requerido;not null;default:false"`
	Orden           int    `gorm:"column:orden;not null;default:0"`
	Activo          bool   `gorm:"column:activo;not null;default:true"`
}

func (TipoDocumento) TableName() string {
	return "tipos_documento"
}

type DocumentoLegajo struct {
	DocumentoID     uint64    `gorm:"column:documento_id;primaryKey;autoIncrement"`
	LegajoID        uint64    `gorm:"column:legajo_id;not null;uniqueIndex:idx_documento_legajo_tipo,priority:1"`
	TipoDocumentoID uint64    `gorm:"column:tipo_documento_id;not null;uniqueIndex:idx_documento_legajo_tipo,priority:2"`
	Archivo         string    `gorm:"column:archivo;type:text;not null"`
	Hash            string    `gorm:"column:hash;type:text;not null"`
	Tamano          int64     `gorm:"column:tamano;not null;default:0"`
	Usuario         string    `gorm:"column:usuario;type:text;not null"`
	Observaciones   string    `gorm:"column:observaciones;type:text;not null;default:''"`
	Version         int64     `gorm:"column:version;not null;default:1"`
	CreatedAt       time.Time `gorm:"column:created_at;not null"`
	UpdatedAt       time.Time `gorm:"column:updated_at;not null"`
}

func (DocumentoLegajo) TableName() string {
	return "documentos_legajo"
}
