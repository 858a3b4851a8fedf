package model

import "time"

type PagoExpediente struct {
	PagoID             uint64     `gorm:"column:pago_id;primaryKey;autoIncrement"`
	ExpedienteID       uint64     `gorm:"column:expediente_id;not null;uniqueIndex"`
	Referencia         string     `gorm:"column:referencia;type:text;not null;uniqueIndex"`
	Estado             string     `gorm:"column:estado;type:text;not null"`
	TotalBeneficiarios int64      `gorm:"column:total_beneficiarios;not null"`
	MontoTotal         int64      `gorm:"column:monto_total;not null"`
	AcuseReferencia    string     `gorm:"column:acuse_referencia;type:text;not null;default:''"`
	CreatedAt          time.Time  `gorm:"column:created_at;not null"`
	ConfirmadoAt       *time.Time `gorm:"column:confirmado_at"`
}

func (PagoExpediente) TableName() string {
	return "pagos_expediente"
}

type PagoNomina struct {
	NominaID  uint64 `gorm:"column:nomina_id;primaryKey;autoIncrement"`
	PagoID    uint64 `gorm:"column:pago_id;not null;index;uniqueIndex:idx_nomina_pago_legajo,priority:1"`
	LegajoID  uint64 `gorm:"column:legajo_id;not null;uniqueIndex:idx_nomina_pago_legajo,priority:2"`
	Documento string `gorm:"column:documento;type:text;not null"`
	Titular   string `gorm:"column:titular;type:text;not null"`
	Monto     int64  `gorm:"column:monto;not null"`
	Pagado    bool   `gorm:"column:pagado;not null;default:false"`
}

func (PagoNomina) TableName() string {
	return "pagos_nomina"
}
