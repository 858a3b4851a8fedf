package model

import "time"

type Legajo struct {
	LegajoID          uint64    `gorm:"column:legajo_id;primaryKey;autoIncrement"`
	ExpedienteID      uint64    `gorm:"column:expediente_id;not null;index;uniqueIndex:idx_legajo_expediente_documento,priority:1"`
	Documento         string    `gorm:"column:documento;type:text;not null;index;uniqueIndex:idx_legajo_expediente_documento,priority:2"`
	Apellido          string    `gorm:"column:apellido;type:text;not null"`
	Nombre            string    `gorm:"column:nombre;type:text;not null;default:''"`
	FechaNacimiento   time.Time `gorm:"column:fecha_nacimiento;not null"`
	Sexo              string    `gorm:"column:sexo;type:text;not null"`
	Calle             string    `gorm:"column:calle;type:text;not null;default:''"`
	Altura            string    `gorm:"column:altura;type:text;not null;default:''"`
	Localidad         string    `gorm:"column:localidad;type:text;not null;default:''"`
	CodigoPostal      string    `gorm:"column:codigo_postal;type:text;not null;default:''"`
	Telefono          string    `gorm:"column:telefono;type:text;not null;default:''"`
	Email             string    `gorm:"column:email;type:text;not null;default:''"`
	ResponsableID     *uint64   `gorm:"column:responsable_id;index"`
	EsResponsable     bool      `gorm:"column:es_responsable;not null;default:false"`
	ArchivosPresentes bool      `gorm:"column:archivos_presentes;not null;default:false"`
	ArchivosOK        bool      `gorm:"column:archivos_ok;not null;default:false"`
	RegistroErroneoID *uint64   `gorm:"column:registro_erroneo_id"`
	Version           int64     `gorm:"column:version;not null;default:1"`
	CreatedAt         time.Time `gorm:"column:created_at;not null;index"`
	UpdatedAt         time.Time `gorm:"column:updated_at;not null"`
}

func (Legajo) TableName() string {
	return "legajos"
}

type ValidacionTecnica struct {
	LegajoID               uint64     `gorm:"column:legajo_id;primaryKey"`
	RevisionTecnico        string     `gorm:"column:revision_tecnico;type:text;not null;index"`
	SubsanacionMotivo      string     `gorm:"column:subsanacion_motivo;type:text;not null;default:''"`
	SubsanacionSolicitada  *time.Time `gorm:"column:subsanacion_solicitada_at"`
	SubsanacionEnviada     *time.Time `gorm:"column:subsanacion_enviada_at"`
	SubsanacionSolicitante string     `gorm:"column:subsanacion_solicitante;type:text;not null;default:''"`
	RevisadoPor            string     `gorm:"column:revisado_por;type:text;not null;default:''"`
	RevisadoAt             *time.Time `gorm:"column:revisado_at"`
}

func (ValidacionTecnica) TableName() string {
	return "validaciones_tecnicas"
}

type CruceResultado struct {
	LegajoID        uint64     `gorm:"column:legajo_id;primaryKey"`
	ResultadoSintys string     `gorm:"column:resultado_sintys;type:text;not null;index"`
	CruceOK         bool       `gorm:"column:cruce_ok;not null;default:false"`
	Observacion     string     `gorm:"column:observacion;type:text;not null;default:''"`
	CheckedAt       *time.Time `gorm:"column:checked_at"`
}

func (CruceResultado) TableName() string {
	return "cruce_resultados"
}

type CupoTitular struct {
	LegajoID        uint64     `gorm:"column:legajo_id;primaryKey"`
	EstadoCupo      string     `gorm:"column:estado_cupo;type:text;not null;index"`
	EsTitularActivo bool       `gorm:"column:es_titular_activo;not null;default:false;index"`
	Provincia       string     `gorm:"column:provincia;type:text;not null;index"`
	DecididoAt      *time.Time `gorm:"column:decidido_at"`
}

func (CupoTitular) TableName() string {
	return "cupo_titulares"
}

type ValidacionRenaper struct {
	LegajoID         uint64     `gorm:"column:legajo_id;primaryKey"`
	EstadoValidacion int        `gorm:"column:estado_validacion;not null;default:0;index"`
	Comentario       string     `gorm:"column:comentario;type:text;not null;default:''"`
	Archivo          string     `gorm:"column:archivo;type:text;not null;default:''"`
	Usuario          string     `gorm:"column:usuario;type:text;not null;default:''"`
	ValidadoAt       *time.Time `gorm:"column:validado_at"`
}

func (ValidacionRenaper) TableName() string {
	return "validaciones_renaper"
}
