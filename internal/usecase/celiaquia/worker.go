package celiaquia

import (
	"context"
	"log/slog"

	"celiaquia/internal/bootstrap/logging"
	domain "celiaquia/internal/domain/celiaquia"
	"celiaquia/internal/errs"
	"celiaquia/internal/ports"
)

type TickSummary struct {
	Renaper   WorkSummary
	Cruzados  int
	Evaluados int
	Avanzados int
}

// WorkerTick runs one pass of the background pipeline: a RENAPER batch, the
// SINTYS cross-check of VALIDADO expedientes, cupo evaluation of
// APROBADO_TECNICO ones and a final Advance sweep. Stage failures on one
// expediente are logged and do not stop the others.
func (s *Service) WorkerTick(ctx context.Context) (TickSummary, error) {
	if err := s.ready(ctx); err != nil {
		return TickSummary{}, err
	}
	logCtx := componentCtx(ctx, "worker_tick")

	var tick TickSummary
	renaper, err := s.ProcessRenaperWork(ctx, 0)
	if err != nil {
		return tick, err
	}
	tick.Renaper = renaper

	if s.sintys != nil {
		validados, err := s.repo.ListExpedientes(ctx, ports.ExpedienteFilter{Estado: domain.ExpedienteValidado})
		if err != nil {
			return tick, err
		}
		for _, exp := range validados {
			summary, err := s.CrossCheckSintys(ctx, exp.ID, domain.SystemActor)
			if err != nil {
				logging.Error(logging.WithExpediente(logCtx, exp.ID, 0), "sintys stage failed", slog.Any("err", errs.Loggable(err)))
				continue
			}
			if !summary.Unavailable {
				tick.Cruzados++
			}
		}
	}

	aprobados, err := s.repo.ListExpedientes(ctx, ports.ExpedienteFilter{Estado: domain.ExpedienteAprobadoTecnico})
	if err != nil {
		return tick, err
	}
	for _, exp := range aprobados {
		if _, err := s.EvaluateCupo(ctx, exp.ID, domain.SystemActor); err != nil {
			logging.Error(logging.WithExpediente(logCtx, exp.ID, 0), "cupo stage failed", slog.Any("err", errs.Loggable(err)))
			continue
		}
		tick.Evaluados++
	}

	all, err := s.repo.ListExpedientes(ctx, ports.ExpedienteFilter{})
	if err != nil {
		return tick, err
	}
	for _, exp := range all {
		if exp.Estado.Terminal() {
			continue
		}
		after, err := s.Advance(ctx, exp.ID)
		if err != nil {
			logging.Error(logging.WithExpediente(logCtx, exp.ID, 0), "advance sweep failed", slog.Any("err", errs.Loggable(err)))
			continue
		}
		if after.Estado != exp.Estado {
			tick.Avanzados++
		}
	}

	logging.Debug(
		logCtx,
		"worker tick completed",
		slog.Int("renaper_claimed", renaper.Claimed),
		slog.Int("cruzados", tick.Cruzados),
		slog.Int("evaluados", tick.Evaluados),
		slog.Int("avanzados", tick.Avanzados),
	)
	return tick, nil
}
