package celiaquia

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"celiaquia/internal/bootstrap/logging"
	domain "celiaquia/internal/domain/celiaquia"
	"celiaquia/internal/errs"
	"celiaquia/internal/ports"
)

type appliedTransition struct {
	From domain.EstadoExpediente
	To   domain.EstadoExpediente
}

// applyTransitionTx moves the expediente one edge and records history. The
// gate is evaluated here unless the caller forces an admin branch.
func (s *Service) applyTransitionTx(ctx context.Context, exp ports.Expediente, to domain.EstadoExpediente, actor domain.Actor, observacion string) (appliedTransition, error) {
	t, err := domain.FindTransition(exp.Estado, to)
	if err != nil {
		return appliedTransition{}, err
	}
	if err := domain.AuthorizeExpedienteTransition(t, actor); err != nil {
		return appliedTransition{}, err
	}

	stats, err := s.repo.GateStats(ctx, exp.ID)
	if err != nil {
		return appliedTransition{}, err
	}
	if !domain.GateHolds(t.Gate, stats) {
		return appliedTransition{}, fmt.Errorf("%w: %s -> %s requires %s", domain.ErrTransitionNotAllowed, exp.Estado, to, t.Gate)
	}

	now := s.now()
	if err := s.repo.UpdateExpedienteEstado(ctx, exp.ID, exp.Version, to, now); err != nil {
		return appliedTransition{}, err
	}
	if err := s.repo.AppendEstadoHistorial(ctx, ports.EstadoHistorial{
		ExpedienteID:   exp.ID,
		EstadoAnterior: exp.Estado,
		EstadoNuevo:    to,
		Usuario:        actor.Username,
		Observacion:    strings.TrimSpace(observacion),
		CreatedAt:      now,
	}); err != nil {
		return appliedTransition{}, err
	}
	if err := s.appendAuditTx(ctx, actor, "expediente.transition", "expediente", exp.ID, map[string]any{
		"from": string(exp.Estado),
		"to":   string(to),
	}); err != nil {
		return appliedTransition{}, err
	}
	return appliedTransition{From: exp.Estado, To: to}, nil
}

// TransitionExpediente applies a manually requested edge. A failed request
// leaves both the estado and the history untouched.
func (s *Service) TransitionExpediente(ctx context.Context, input TransitionInput) (ports.Expediente, error) {
	if err := s.ready(ctx); err != nil {
		return ports.Expediente{}, err
	}
	if err := requireActor(input.Actor, domain.RoleCoordinador); err != nil {
		return ports.Expediente{}, err
	}
	if _, err := domain.ParseEstadoExpediente(string(input.To)); err != nil {
		return ports.Expediente{}, err
	}
	logCtx := logging.WithExpediente(componentCtx(ctx, "transition_expediente"), input.ExpedienteID, 0)

	var applied appliedTransition
	exp, err := ports.InTx(ctx, s.uow, func(txCtx context.Context) (ports.Expediente, error) {
		exp, err := s.repo.GetExpediente(txCtx, input.ExpedienteID)
		if err != nil {
			return ports.Expediente{}, err
		}
		if input.ExpectedVersion != 0 && input.ExpectedVersion != exp.Version {
			return ports.Expediente{}, ports.ErrVersionConflict
		}
		applied, err = s.applyTransitionTx(txCtx, exp, input.To, input.Actor, input.Observacion)
		if err != nil {
			return ports.Expediente{}, err
		}
		if err := s.refreshCountersTx(txCtx, exp.ID); err != nil {
			return ports.Expediente{}, err
		}
		return s.repo.GetExpediente(txCtx, exp.ID)
	})
	if err != nil {
		logging.Warn(logCtx, "transition rejected", slog.String("to", string(input.To)), slog.Any("err", errs.Loggable(err)))
		return ports.Expediente{}, err
	}

	s.metrics.ExpedienteTransition(string(applied.From), string(applied.To))
	logging.Info(logCtx, "expediente transitioned", slog.String("from", string(applied.From)), slog.String("to", string(applied.To)))
	return exp, nil
}

// Advance takes every automatic edge whose gate holds, one transaction per
// edge, and returns the resulting expediente.
func (s *Service) Advance(ctx context.Context, expedienteID uint64) (ports.Expediente, error) {
	if err := s.ready(ctx); err != nil {
		return ports.Expediente{}, err
	}
	logCtx := logging.WithExpediente(componentCtx(ctx, "advance"), expedienteID, 0)

	for step := 0; step < maxAdvanceSteps; step++ {
		var applied *appliedTransition
		err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
			exp, err := s.repo.GetExpediente(txCtx, expedienteID)
			if err != nil {
				return err
			}
			if exp.Estado.Terminal() {
				return nil
			}

			stats, err := s.repo.GateStats(txCtx, expedienteID)
			if err != nil {
				return err
			}
			for _, t := range domain.AutomaticTransitionsFrom(exp.Estado) {
				if !domain.GateHolds(t.Gate, stats) {
					continue
				}
				got, err := s.applyTransitionTx(txCtx, exp, t.To, domain.SystemActor, string(t.Gate))
				if err != nil {
					return err
				}
				applied = &got
				return s.refreshCountersTx(txCtx, expedienteID)
			}
			return nil
		})
		if err != nil {
			return ports.Expediente{}, err
		}
		if applied == nil {
			break
		}
		s.metrics.ExpedienteTransition(string(applied.From), string(applied.To))
		logging.Info(logCtx, "expediente advanced", slog.String("from", string(applied.From)), slog.String("to", string(applied.To)))
	}

	return s.repo.GetExpediente(ctx, expedienteID)
}

// advanceBestEffort runs Advance after a stage commits. The stage already
// succeeded, so failures are only logged; the worker retries later.
func (s *Service) advanceBestEffort(ctx context.Context, expedienteID uint64) {
	if _, err := s.Advance(ctx, expedienteID); err != nil {
		if errors.Is(err, ports.ErrVersionConflict) {
			logging.Debug(ctx, "advance lost a race", slog.Uint64("expediente_id", expedienteID))
			return
		}
		logging.Error(ctx, "advance expediente failed", slog.Uint64("expediente_id", expedienteID), slog.Any("err", errs.Loggable(err)))
	}
}
