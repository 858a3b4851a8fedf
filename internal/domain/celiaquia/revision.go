package celiaquia

import "fmt"

type revisionEdge struct {
	from RevisionTecnico
	to   RevisionTecnico
}

var revisionRoles = map[revisionEdge]Role{
	{RevisionPendiente, RevisionAprobado}:  RoleTecnico,
	{RevisionPendiente, RevisionRechazado}: RoleTecnico,
	{RevisionPendiente, RevisionSubsanar}:  RoleTecnico,
	{RevisionSubsanar, RevisionSubsanado}:  RoleProvincia,
	{RevisionSubsanado, RevisionAprobado}:  RoleTecnico,
	{RevisionSubsanado, RevisionRechazado}: RoleTecnico,
	{RevisionSubsanado, RevisionSubsanar}:  RoleTecnico,
}

// AuthorizeRevision checks the técnico validation table. Coordinadores may
// act on behalf of técnicos.
func AuthorizeRevision(from, to RevisionTecnico, actor Actor) error {
	role, ok := revisionRoles[revisionEdge{from, to}]
	if !ok {
		return fmt.Errorf("%w: revision %s -> %s", ErrTransitionNotAllowed, from, to)
	}
	if actor.Role == role || (role == RoleTecnico && actor.Role == RoleCoordinador) {
		return nil
	}
	return fmt.Errorf("%w: role %q cannot move revision %s -> %s", ErrPermissionDenied, actor.Role, from, to)
}

// ComentarioForRevision is the history kind written for a revision change.
func ComentarioForRevision(to RevisionTecnico) TipoComentario {
	switch to {
	case RevisionSubsanar:
		return ComentarioSubsanacionMotivo
	case RevisionSubsanado:
		return ComentarioSubsanacionRespuesta
	default:
		return ComentarioValidacionTecnica
	}
}

// CanApprove reports whether the RENAPER outcome lets a técnico approve.
// Rechazado blocks approval until an operator resolves it.
func CanApprove(renaper EstadoRenaper) error {
	switch renaper {
	case RenaperNoValidado:
		return fmt.Errorf("%w: RENAPER validation pending", ErrTransitionNotAllowed)
	case RenaperRechazado:
		return fmt.Errorf("%w: RENAPER rejected the identity", ErrTransitionNotAllowed)
	}
	return nil
}
