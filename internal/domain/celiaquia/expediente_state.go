package celiaquia

import "fmt"

// Gate names the precondition that must hold before a transition is applied.
type Gate string

const (
	GateNone                Gate = ""
	GateValidRows           Gate = "at least one valid row imported"
	GateRenaperResolved     Gate = "every legajo resolved by RENAPER, rejections accepted by an operator"
	GateSintysDone          Gate = "SINTYS cross-check completed for every legajo"
	GateTecnicoAssigned     Gate = "every legajo has an active técnico"
	GateHasSubsanar         Gate = "at least one legajo in SUBSANAR"
	GateNoSubsanar          Gate = "no legajo left in SUBSANAR"
	GateRevisionClosed      Gate = "every legajo APROBADO or RECHAZADO"
	GateCupoEvaluated       Gate = "cupo evaluated for every qualifying legajo"
	GatePagoProduced        Gate = "payment handoff record produced"
	GatePagoAcknowledged    Gate = "payment acknowledgement received"
	GateExplicitAdminAction Gate = "explicit admin action"
)

// Transition is one allowed edge of the expediente state machine.
type Transition struct {
	From EstadoExpediente
	To   EstadoExpediente
	Gate Gate
	// Automatic transitions are applied by the orchestrator once the gate holds.
	Automatic bool
}

var expedienteTransitions = []Transition{
	{ExpedienteIniciada, ExpedienteImportado, GateValidRows, true},
	{ExpedienteImportado, ExpedienteValidado, GateRenaperResolved, true},
	{ExpedienteValidado, ExpedienteCruzado, GateSintysDone, true},
	{ExpedienteCruzado, ExpedienteEnRevisionTecnica, GateTecnicoAssigned, true},
	{ExpedienteEnRevisionTecnica, ExpedienteEnSubsanacion, GateHasSubsanar, true},
	{ExpedienteEnSubsanacion, ExpedienteEnRevisionTecnica, GateNoSubsanar, true},
	{ExpedienteEnRevisionTecnica, ExpedienteAprobadoTecnico, GateRevisionClosed, true},
	{ExpedienteAprobadoTecnico, ExpedienteCupoDecidido, GateCupoEvaluated, true},
	{ExpedienteCupoDecidido, ExpedienteEnviadoAPago, GatePagoProduced, false},
	{ExpedienteEnviadoAPago, ExpedienteFinalizado, GatePagoAcknowledged, false},
}

// FindTransition returns the edge from -> to, including the admin side branches
// available from every non-terminal state.
func FindTransition(from, to EstadoExpediente) (Transition, error) {
	if from.Terminal() {
		return Transition{}, fmt.Errorf("%w: %s is terminal", ErrTransitionNotAllowed, from)
	}
	if to == ExpedienteInactivada || to == ExpedienteDescartado {
		return Transition{From: from, To: to, Gate: GateExplicitAdminAction}, nil
	}
	for _, t := range expedienteTransitions {
		if t.From == from && t.To == to {
			return t, nil
		}
	}
	return Transition{}, fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, from, to)
}

// AutomaticTransitionsFrom lists edges the orchestrator may take from a state,
// in table order.
func AutomaticTransitionsFrom(from EstadoExpediente) []Transition {
	out := make([]Transition, 0, 2)
	for _, t := range expedienteTransitions {
		if t.From == from && t.Automatic {
			out = append(out, t)
		}
	}
	return out
}

// AuthorizeExpedienteTransition checks that the actor's role may request the edge.
// Admin branches and manual forcing belong to coordinadores; the pipeline edges
// are also open to the orchestrator.
func AuthorizeExpedienteTransition(t Transition, actor Actor) error {
	switch actor.Role {
	case RoleCoordinador, RoleSistema:
	default:
		return fmt.Errorf("%w: role %q cannot move an expediente to %s", ErrPermissionDenied, actor.Role, t.To)
	}
	if t.Gate == GateExplicitAdminAction && actor.Role != RoleCoordinador {
		return fmt.Errorf("%w: %s requires an admin action", ErrPermissionDenied, t.To)
	}
	return nil
}

// GateStats is the aggregate view of an expediente the gates are evaluated on.
type GateStats struct {
	Legajos           int64
	RenaperPendientes int64
	SintysPendientes  int64
	SinAsignacion     int64
	Revision          map[RevisionTecnico]int64
	CupoPendientes    int64
	PagoProducido     bool
	PagoConfirmado    bool
}

// GateHolds evaluates a gate against the aggregate stats.
func GateHolds(gate Gate, s GateStats) bool {
	switch gate {
	case GateNone, GateExplicitAdminAction:
		return true
	case GateValidRows:
		return s.Legajos > 0
	case GateRenaperResolved:
		return s.Legajos > 0 && s.RenaperPendientes == 0
	case GateSintysDone:
		return s.Legajos > 0 && s.SintysPendientes == 0
	case GateTecnicoAssigned:
		return s.Legajos > 0 && s.SinAsignacion == 0
	case GateHasSubsanar:
		return s.Revision[RevisionSubsanar] > 0
	case GateNoSubsanar:
		return s.Revision[RevisionSubsanar] == 0
	case GateRevisionClosed:
		return s.Legajos > 0 && s.Revision[RevisionAprobado]+s.Revision[RevisionRechazado] == s.Legajos
	case GateCupoEvaluated:
		return s.CupoPendientes == 0
	case GatePagoProduced:
		return s.PagoProducido
	case GatePagoAcknowledged:
		return s.PagoConfirmado
	default:
		return false
	}
}
