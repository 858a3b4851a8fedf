package celiaquia

import (
	"fmt"
	"strings"
)

// EstadoExpediente is the persisted code of an expediente's position in the pipeline.
type EstadoExpediente string

const (
	ExpedienteIniciada          EstadoExpediente = "INICIADA"
	ExpedienteImportado         EstadoExpediente = "IMPORTADO"
	ExpedienteValidado          EstadoExpediente = "VALIDADO"
	ExpedienteCruzado           EstadoExpediente = "CRUZADO"
	ExpedienteEnRevisionTecnica EstadoExpediente = "EN_REVISION_TECNICA"
	ExpedienteEnSubsanacion     EstadoExpediente = "EN_SUBSANACION"
	ExpedienteAprobadoTecnico   EstadoExpediente = "APROBADO_TECNICO"
	ExpedienteCupoDecidido      EstadoExpediente = "CUPO_DECIDIDO"
	ExpedienteEnviadoAPago      EstadoExpediente = "ENVIADO_A_PAGO"
	ExpedienteFinalizado        EstadoExpediente = "FINALIZADO"
	ExpedienteInactivada        EstadoExpediente = "INACTIVADA"
	ExpedienteDescartado        EstadoExpediente = "DESCARTADO"
)

var expedienteLabels = map[EstadoExpediente]string{
	ExpedienteIniciada:          "Iniciada",
	ExpedienteImportado:         "Archivo importado",
	ExpedienteValidado:          "Validado RENAPER",
	ExpedienteCruzado:           "Cruce SINTYS realizado",
	ExpedienteEnRevisionTecnica: "En revisión técnica",
	ExpedienteEnSubsanacion:     "En subsanación",
	ExpedienteAprobadoTecnico:   "Aprobado técnico",
	ExpedienteCupoDecidido:      "Cupo decidido",
	ExpedienteEnviadoAPago:      "Enviado a pago",
	ExpedienteFinalizado:        "Finalizado",
	ExpedienteInactivada:        "Inactivada",
	ExpedienteDescartado:        "Descartado",
}

func ParseEstadoExpediente(raw string) (EstadoExpediente, error) {
	code := EstadoExpediente(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := expedienteLabels[code]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidEstado, raw)
	}
	return code, nil
}

func (e EstadoExpediente) Label() string { return expedienteLabels[e] }

// Terminal states accept no further transitions.
func (e EstadoExpediente) Terminal() bool {
	return e == ExpedienteFinalizado || e == ExpedienteInactivada || e == ExpedienteDescartado
}

// RevisionTecnico is the técnico's decision on a legajo.
type RevisionTecnico string

const (
	RevisionPendiente RevisionTecnico = "PENDIENTE"
	RevisionAprobado  RevisionTecnico = "APROBADO"
	RevisionRechazado RevisionTecnico = "RECHAZADO"
	RevisionSubsanar  RevisionTecnico = "SUBSANAR"
	RevisionSubsanado RevisionTecnico = "SUBSANADO"
)

var revisionLabels = map[RevisionTecnico]string{
	RevisionPendiente: "Pendiente",
	RevisionAprobado:  "Aprobado",
	RevisionRechazado: "Rechazado",
	RevisionSubsanar:  "Subsanar",
	RevisionSubsanado: "Subsanado",
}

// AllRevisiones lists every revision code; each legajo is in exactly one of them.
var AllRevisiones = []RevisionTecnico{RevisionPendiente, RevisionAprobado, RevisionRechazado, RevisionSubsanar, RevisionSubsanado}

func ParseRevisionTecnico(raw string) (RevisionTecnico, error) {
	code := RevisionTecnico(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := revisionLabels[code]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidRevision, raw)
	}
	return code, nil
}

func (r RevisionTecnico) Label() string { return revisionLabels[r] }

// ResultadoSintys is the outcome of the SINTYS cross-check.
type ResultadoSintys string

const (
	SintysSinCruce ResultadoSintys = "SIN_CRUCE"
	SintysMatch    ResultadoSintys = "MATCH"
	SintysNoMatch  ResultadoSintys = "NO_MATCH"
)

// EstadoCupo is the quota decision on a legajo.
type EstadoCupo string

const (
	CupoNoEval EstadoCupo = "NO_EVAL"
	CupoDentro EstadoCupo = "DENTRO"
	CupoFuera  EstadoCupo = "FUERA"
)

// EstadoRenaper mirrors the registry's numeric codes.
type EstadoRenaper int

const (
	RenaperNoValidado EstadoRenaper = 0
	RenaperAceptado   EstadoRenaper = 1
	RenaperRechazado  EstadoRenaper = 2
	RenaperSubsanar   EstadoRenaper = 3
)

func ParseEstadoRenaper(code int) (EstadoRenaper, error) {
	if code < int(RenaperNoValidado) || code > int(RenaperSubsanar) {
		return 0, fmt.Errorf("%w: renaper %d", ErrInvalidEstado, code)
	}
	return EstadoRenaper(code), nil
}

// Resolved is true once a registry or operator outcome is recorded.
func (e EstadoRenaper) Resolved() bool { return e != RenaperNoValidado }

func (e EstadoRenaper) Label() string {
	switch e {
	case RenaperAceptado:
		return "Aceptado"
	case RenaperRechazado:
		return "Rechazado"
	case RenaperSubsanar:
		return "Subsanar"
	default:
		return "No validado"
	}
}

// TipoComentario is the kind of a HistorialComentarios entry.
type TipoComentario string

const (
	ComentarioValidacionTecnica    TipoComentario = "VALIDACION_TECNICA"
	ComentarioSubsanacionMotivo    TipoComentario = "SUBSANACION_MOTIVO"
	ComentarioSubsanacionRespuesta TipoComentario = "SUBSANACION_RESPUESTA"
	ComentarioRenaperValidacion    TipoComentario = "RENAPER_VALIDACION"
	ComentarioObservacionGeneral   TipoComentario = "OBSERVACION_GENERAL"
	ComentarioCruceSintys          TipoComentario = "CRUCE_SINTYS"
	ComentarioPagoObservacion      TipoComentario = "PAGO_OBSERVACION"
)

func ParseTipoComentario(raw string) (TipoComentario, error) {
	code := TipoComentario(strings.ToUpper(strings.TrimSpace(raw)))
	switch code {
	case ComentarioValidacionTecnica, ComentarioSubsanacionMotivo, ComentarioSubsanacionRespuesta,
		ComentarioRenaperValidacion, ComentarioObservacionGeneral, ComentarioCruceSintys, ComentarioPagoObservacion:
		return code, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, raw)
}

// Role is the group an actor acts as.
type Role string

const (
	RoleTecnico     Role = "tecnico"
	RoleCoordinador Role = "coordinador"
	RoleProvincia   Role = "provincia"
	RoleSistema     Role = "sistema"
)

func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	switch role {
	case RoleTecnico, RoleCoordinador, RoleProvincia, RoleSistema:
		return role, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
}

// Actor is the user performing an operation.
type Actor struct {
	Username string
	Role     Role
}

// SystemActor is used for transitions driven by the orchestrator itself.
var SystemActor = Actor{Username: "sistema", Role: RoleSistema}

func (a Actor) Validate() error {
	if strings.TrimSpace(a.Username) == "" {
		return ErrActorRequired
	}
	if _, err := ParseRole(string(a.Role)); err != nil {
		return err
	}
	return nil
}
