package celiaquia

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"celiaquia/internal/bootstrap/logging"
	domain "celiaquia/internal/domain/celiaquia"
	"celiaquia/internal/ports"
)

// AssignTecnico gives a legajo a new active técnico, deactivating any
// previous assignment in the same transaction.
func (s *Service) AssignTecnico(ctx context.Context, input AssignInput) (ports.Asignacion, error) {
	if err := s.ready(ctx); err != nil {
		return ports.Asignacion{}, err
	}
	if err := requireActor(input.Actor, domain.RoleCoordinador); err != nil {
		return ports.Asignacion{}, err
	}
	tecnico := strings.TrimSpace(input.Tecnico)
	if tecnico == "" {
		return ports.Asignacion{}, fmt.Errorf("%w: tecnico is required", domain.ErrValidation)
	}

	var expedienteID uint64
	asignacion, err := ports.InTx(ctx, s.uow, func(txCtx context.Context) (ports.Asignacion, error) {
		legajo, err := s.repo.GetLegajo(txCtx, input.LegajoID)
		if err != nil {
			return ports.Asignacion{}, err
		}
		expedienteID = legajo.ExpedienteID
		if err := s.checkAssignableTx(txCtx, legajo.ExpedienteID); err != nil {
			return ports.Asignacion{}, err
		}
		a, err := s.assignTx(txCtx, legajo, tecnico, input.Actor)
		if err != nil {
			return ports.Asignacion{}, err
		}
		return a, s.refreshCountersTx(txCtx, legajo.ExpedienteID)
	})
	if err != nil {
		return ports.Asignacion{}, err
	}

	logCtx := logging.WithExpediente(componentCtx(ctx, "assign_tecnico"), expedienteID, input.LegajoID)
	logging.Info(logCtx, "tecnico assigned", slog.String("tecnico", tecnico))
	s.advanceBestEffort(logCtx, expedienteID)
	return asignacion, nil
}

// BulkAssign gives every unassigned legajo of the expediente to one técnico.
func (s *Service) BulkAssign(ctx context.Context, input BulkAssignInput) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	if err := requireActor(input.Actor, domain.RoleCoordinador); err != nil {
		return 0, err
	}
	tecnico := strings.TrimSpace(input.Tecnico)
	if tecnico == "" {
		return 0, fmt.Errorf("%w: tecnico is required", domain.ErrValidation)
	}

	assigned, err := ports.InTx(ctx, s.uow, func(txCtx context.Context) (int, error) {
		if err := s.checkAssignableTx(txCtx, input.ExpedienteID); err != nil {
			return 0, err
		}
		legajos, err := s.repo.ListUnassignedLegajos(txCtx, input.ExpedienteID)
		if err != nil {
			return 0, err
		}
		for _, legajo := range legajos {
			if _, err := s.assignTx(txCtx, legajo, tecnico, input.Actor); err != nil {
				return 0, err
			}
		}
		return len(legajos), s.refreshCountersTx(txCtx, input.ExpedienteID)
	})
	if err != nil {
		return 0, err
	}

	logCtx := logging.WithExpediente(componentCtx(ctx, "bulk_assign"), input.ExpedienteID, 0)
	logging.Info(logCtx, "legajos assigned", slog.String("tecnico", tecnico), slog.Int("count", assigned))
	s.advanceBestEffort(logCtx, input.ExpedienteID)
	return assigned, nil
}

// LegajosOf lists the legajos actively assigned to a técnico.
func (s *Service) LegajosOf(ctx context.Context, tecnico string) ([]ports.LegajoDetail, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	tecnico = strings.TrimSpace(tecnico)
	if tecnico == "" {
		return nil, fmt.Errorf("%w: tecnico is required", domain.ErrValidation)
	}
	return s.repo.ListLegajosByTecnico(ctx, tecnico)
}

func (s *Service) checkAssignableTx(ctx context.Context, expedienteID uint64) error {
	exp, err := s.repo.GetExpediente(ctx, expedienteID)
	if err != nil {
		return err
	}
	switch exp.Estado {
	case domain.ExpedienteAprobadoTecnico, domain.ExpedienteCupoDecidido, domain.ExpedienteEnviadoAPago:
		return fmt.Errorf("%w: técnico review closed on %s expediente", domain.ErrTransitionNotAllowed, exp.Estado)
	}
	if exp.Estado.Terminal() {
		return fmt.Errorf("%w: expediente is %s", domain.ErrTransitionNotAllowed, exp.Estado)
	}
	return nil
}

func (s *Service) assignTx(ctx context.Context, legajo ports.Legajo, tecnico string, actor domain.Actor) (ports.Asignacion, error) {
	if err := s.repo.TouchLegajo(ctx, legajo.ID, legajo.Version); err != nil {
		return ports.Asignacion{}, err
	}
	now := s.now()
	previous, err := s.repo.DeactivateAsignaciones(ctx, legajo.ID, now)
	if err != nil {
		return ports.Asignacion{}, err
	}
	legajoID := legajo.ID
	a, err := s.repo.CreateAsignacion(ctx, ports.Asignacion{
		Tecnico:      tecnico,
		ExpedienteID: legajo.ExpedienteID,
		LegajoID:     &legajoID,
		Activa:       true,
		AsignadoPor:  actor.Username,
		CreatedAt:    now,
	})
	if err != nil {
		return ports.Asignacion{}, err
	}
	if err := s.appendAuditTx(ctx, actor, "legajo.assign", "legajo", legajo.ID, map[string]any{
		"tecnico":    tecnico,
		"reemplazos": previous,
	}); err != nil {
		return ports.Asignacion{}, err
	}
	return a, nil
}
