package ports

import (
	"context"
	"time"

	"celiaquia/internal/domain/celiaquia"
	"celiaquia/internal/errs"
)

var (
	ErrExpedienteNotFound    = errs.Sentinel(errs.KindNotFound, "expediente not found")
	ErrLegajoNotFound        = errs.Sentinel(errs.KindNotFound, "legajo not found")
	ErrTipoDocumentoNotFound = errs.Sentinel(errs.KindNotFound, "tipo de documento not found")
	ErrDocumentoNotFound     = errs.Sentinel(errs.KindNotFound, "documento not found")
	ErrRegistroNotFound      = errs.Sentinel(errs.KindNotFound, "registro erroneo not found")
	ErrPagoNotFound          = errs.Sentinel(errs.KindNotFound, "pago not found")
	ErrCupoNotFound          = errs.Sentinel(errs.KindNotFound, "cupo not found")
	ErrAsignacionNotFound    = errs.Sentinel(errs.KindNotFound, "asignacion not found")

	ErrVersionConflict   = errs.Sentinel(errs.KindConflict, "version conflict")
	ErrDuplicateDocument = errs.Sentinel(errs.KindConflict, "documento already uploaded for this tipo")
	ErrLeaseLost         = errs.Sentinel(errs.KindConflict, "work item lease lost")
)

type ExpedienteCounters struct {
	Validos       int64
	Erroneos      int64
	Aprobados     int64
	Rechazados    int64
	EnSubsanacion int64
	Dentro        int64
	Fuera         int64
	Pagados       int64
}

type Expediente struct {
	ID             uint64
	Numero         string
	Provincia      string
	Estado         celiaquia.EstadoExpediente
	Version        int64
	UsuarioCreador string
	ArchivoOrigen  string
	Counters       ExpedienteCounters
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type ExpedienteFilter struct {
	Provincia string
	Estado    celiaquia.EstadoExpediente
}

type EstadoHistorial struct {
	ID             uint64
	ExpedienteID   uint64
	EstadoAnterior celiaquia.EstadoExpediente
	EstadoNuevo    celiaquia.EstadoExpediente
	Usuario        string
	Observacion    string
	CreatedAt      time.Time
}

type Legajo struct {
	ID                uint64
	ExpedienteID      uint64
	Documento         string
	Apellido          string
	Nombre            string
	FechaNacimiento   time.Time
	Sexo              string
	Calle             string
	Altura            string
	Localidad         string
	CodigoPostal      string
	Telefono          string
	Email             string
	ResponsableID     *uint64
	EsResponsable     bool
	ArchivosPresentes bool
	ArchivosOK        bool
	RegistroErroneoID *uint64
	Version           int64
	CreatedAt         time.Time
}

type ValidacionTecnica struct {
	LegajoID               uint64
	Revision               celiaquia.RevisionTecnico
	SubsanacionMotivo      string
	SubsanacionSolicitada  *time.Time
	SubsanacionEnviada     *time.Time
	SubsanacionSolicitante string
	RevisadoPor            string
	RevisadoAt             *time.Time
}

type CruceResultado struct {
	LegajoID    uint64
	Resultado   celiaquia.ResultadoSintys
	CruceOK     bool
	Observacion string
	CheckedAt   *time.Time
}

type CupoTitular struct {
	LegajoID        uint64
	Estado          celiaquia.EstadoCupo
	EsTitularActivo bool
	Provincia       string
	DecididoAt      *time.Time
}

type ValidacionRenaper struct {
	LegajoID   uint64
	Estado     celiaquia.EstadoRenaper
	Comentario string
	Archivo    string
	Usuario    string
	ValidadoAt *time.Time
}

// LegajoDetail bundles a legajo with its four 1:1 outcomes.
type LegajoDetail struct {
	Legajo     Legajo
	Validacion ValidacionTecnica
	Cruce      CruceResultado
	Cupo       CupoTitular
	Renaper    ValidacionRenaper
}

type LegajoFilter struct {
	ExpedienteID   uint64
	Revision       celiaquia.RevisionTecnico
	RenaperEstado  *celiaquia.EstadoRenaper
	CruceResultado celiaquia.ResultadoSintys
	CupoEstado     celiaquia.EstadoCupo
}

type TipoDocumento struct {
	ID          uint64
	Nombre      string
	Descripcion string
	Requerido   bool
	Orden       int
	Activo      bool
}

type DocumentoLegajo struct {
	ID              uint64
	LegajoID        uint64
	TipoDocumentoID uint64
	Archivo         string
	Hash            string
	Tamano          int64
	Usuario         string
	Observaciones   string
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Comentario struct {
	ID                uint64
	LegajoID          uint64
	Tipo              celiaquia.TipoComentario
	Comentario        string
	Archivo           string
	Usuario           string
	EstadoRelacionado string
	CreatedAt         time.Time
}

type Asignacion struct {
	ID            uint64
	Tecnico       string
	ExpedienteID  uint64
	LegajoID      *uint64
	Activa        bool
	AsignadoPor   string
	CreatedAt     time.Time
	DesactivadaAt *time.Time
}

type RegistroErroneo struct {
	ID           uint64
	ExpedienteID uint64
	Fila         int
	Datos        map[string]string
	Campo        string
	Mensaje      string
	Procesado    bool
	ProcesadoAt  *time.Time
	LegajoID     *uint64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type CupoProvincia struct {
	Provincia string
	Tamano    int64
	Activos   int64
	Version   int64
}

type PagoExpediente struct {
	ID                 uint64
	ExpedienteID       uint64
	Referencia         string
	Estado             string
	TotalBeneficiarios int64
	MontoTotal         int64
	AcuseReferencia    string
	CreatedAt          time.Time
	ConfirmadoAt       *time.Time
}

type PagoNomina struct {
	ID        uint64
	PagoID    uint64
	LegajoID  uint64
	Documento string
	Titular   string
	Monto     int64
	Pagado    bool
}

const (
	PagoEstadoEnviado    = "ENVIADO"
	PagoEstadoConfirmado = "CONFIRMADO"
)

type WorkItem struct {
	ID           uint64
	Kind         string
	Key          string
	ExpedienteID uint64
	LegajoID     uint64
	Status       string
	Attempts     int
	LastError    string
	AvailableAt  time.Time
	LeaseToken   string
	LeasedUntil  *time.Time
}

const (
	WorkStatusPending = "pending"
	WorkStatusDone    = "done"
	WorkStatusDead    = "dead"
)

type WorkClaim struct {
	Kind         string
	ExpedienteID uint64
	Limit        int
	Now          time.Time
	LeaseFor     time.Duration
	Token        string
}

type AuditEvent struct {
	ID        uint64
	Actor     string
	Action    string
	Entity    string
	EntityID  uint64
	Payload   map[string]any
	CreatedAt time.Time
}

type AuditFilter struct {
	Entity   string
	EntityID uint64
	Limit    int
}

type ExpedienteRepository interface {
	CreateExpediente(ctx context.Context, exp Expediente) (Expediente, error)
	GetExpediente(ctx context.Context, id uint64) (Expediente, error)
	ListExpedientes(ctx context.Context, filter ExpedienteFilter) ([]Expediente, error)
	// UpdateExpedienteEstado fails with ErrVersionConflict when version moved.
	UpdateExpedienteEstado(ctx context.Context, id uint64, expectedVersion int64, estado celiaquia.EstadoExpediente, at time.Time) error
	UpdateExpedienteCounters(ctx context.Context, id uint64, counters ExpedienteCounters) error
	AppendEstadoHistorial(ctx context.Context, entry EstadoHistorial) error
	ListEstadoHistorial(ctx context.Context, expedienteID uint64) ([]EstadoHistorial, error)
	GateStats(ctx context.Context, expedienteID uint64) (celiaquia.GateStats, error)
	ComputeCounters(ctx context.Context, expedienteID uint64) (ExpedienteCounters, error)
}

type LegajoRepository interface {
	// CreateLegajo inserts the legajo with its four 1:1 outcome rows in initial state.
	CreateLegajo(ctx context.Context, legajo Legajo) (Legajo, error)
	GetLegajo(ctx context.Context, id uint64) (Legajo, error)
	GetLegajoDetail(ctx context.Context, id uint64) (LegajoDetail, error)
	ListLegajos(ctx context.Context, filter LegajoFilter) ([]LegajoDetail, error)
	FindLegajoByDocumento(ctx context.Context, expedienteID uint64, documento string) (Legajo, error)
	ListLegajoIDs(ctx context.Context) ([]uint64, error)
	// TouchLegajo bumps the version; ErrVersionConflict serializes writers.
	TouchLegajo(ctx context.Context, id uint64, expectedVersion int64) error
	SetLegajoArchivos(ctx context.Context, id uint64, presentes bool, ok bool) error
	UpdateValidacionTecnica(ctx context.Context, v ValidacionTecnica) error
	UpdateValidacionRenaper(ctx context.Context, v ValidacionRenaper) error
	UpdateCruce(ctx context.Context, c CruceResultado) error
	UpdateCupoTitular(ctx context.Context, c CupoTitular) error
}

type DocumentRepository interface {
	UpsertTipoDocumento(ctx context.Context, tipo TipoDocumento) (TipoDocumento, error)
	GetTipoDocumento(ctx context.Context, id uint64) (TipoDocumento, error)
	ListTiposDocumento(ctx context.Context, onlyActive bool) ([]TipoDocumento, error)
	// CreateDocumento fails with ErrDuplicateDocument for an existing (legajo, tipo).
	CreateDocumento(ctx context.Context, doc DocumentoLegajo) (DocumentoLegajo, error)
	GetDocumento(ctx context.Context, legajoID uint64, tipoID uint64) (DocumentoLegajo, error)
	ReplaceDocumento(ctx context.Context, doc DocumentoLegajo) (DocumentoLegajo, error)
	ListDocumentos(ctx context.Context, legajoID uint64) ([]DocumentoLegajo, error)
	// CountDocumentosByArchivo counts rows pointing at a stored file; identical
	// uploads share one content address.
	CountDocumentosByArchivo(ctx context.Context, archivo string) (int64, error)
}

type HistoryRepository interface {
	AppendComentario(ctx context.Context, c Comentario) (Comentario, error)
	// ListComentarios returns newest first, ties broken by id.
	ListComentarios(ctx context.Context, legajoID uint64) ([]Comentario, error)
	AppendAudit(ctx context.Context, e AuditEvent) error
	ListAudit(ctx context.Context, filter AuditFilter) ([]AuditEvent, error)
}

type AssignmentRepository interface {
	DeactivateAsignaciones(ctx context.Context, legajoID uint64, at time.Time) (int64, error)
	CreateAsignacion(ctx context.Context, a Asignacion) (Asignacion, error)
	GetActiveAsignacion(ctx context.Context, legajoID uint64) (Asignacion, error)
	ListAsignaciones(ctx context.Context, legajoID uint64) ([]Asignacion, error)
	ListLegajosByTecnico(ctx context.Context, tecnico string) ([]LegajoDetail, error)
	ListUnassignedLegajos(ctx context.Context, expedienteID uint64) ([]Legajo, error)
}

type CupoRepository interface {
	EnsureCupoProvincia(ctx context.Context, provincia string, defaultSize int64) (CupoProvincia, error)
	SetCupoSize(ctx context.Context, provincia string, size int64) (CupoProvincia, error)
	// TryReserveSlot increments the active count only while it is below size.
	TryReserveSlot(ctx context.Context, provincia string) (bool, error)
	ReleaseSlot(ctx context.Context, provincia string) error
	CountTitularesActivos(ctx context.Context, provincia string) (int64, error)
}

type PagoRepository interface {
	GetPagoByExpediente(ctx context.Context, expedienteID uint64) (PagoExpediente, error)
	CreatePago(ctx context.Context, pago PagoExpediente, nomina []PagoNomina) (PagoExpediente, error)
	ConfirmPago(ctx context.Context, pagoID uint64, acuse string, at time.Time) error
	ListNomina(ctx context.Context, pagoID uint64) ([]PagoNomina, error)
}

type RegistroErroneoRepository interface {
	CreateRegistrosErroneos(ctx context.Context, rows []RegistroErroneo) error
	GetRegistroErroneo(ctx context.Context, id uint64) (RegistroErroneo, error)
	ListRegistrosErroneos(ctx context.Context, expedienteID uint64, onlyPending bool) ([]RegistroErroneo, error)
	UpdateRegistroDatos(ctx context.Context, id uint64, datos map[string]string, campo string, mensaje string, at time.Time) error
	// MarkRegistroProcesado flips procesado once; false means it was already processed.
	MarkRegistroProcesado(ctx context.Context, id uint64, legajoID uint64, at time.Time) (bool, error)
}

type WorkQueue interface {
	// EnqueueWork is idempotent on Key; a finished item is re-armed.
	EnqueueWork(ctx context.Context, item WorkItem) (bool, error)
	ClaimWork(ctx context.Context, claim WorkClaim) ([]WorkItem, error)
	CompleteWork(ctx context.Context, id uint64, token string, at time.Time) error
	RetryWork(ctx context.Context, id uint64, token string, lastErr string, availableAt time.Time, dead bool) error
	CountWork(ctx context.Context, kind string, status string) (int64, error)
}

// CeliaquiaRepository is the full persistence surface of the intake pipeline.
type CeliaquiaRepository interface {
	ExpedienteRepository
	LegajoRepository
	DocumentRepository
	HistoryRepository
	AssignmentRepository
	CupoRepository
	PagoRepository
	RegistroErroneoRepository
	WorkQueue
}
