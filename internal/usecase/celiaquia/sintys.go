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

type CrossCheckSummary struct {
	Consultados  int
	Match        int
	NoMatch      int
	SinRespuesta int
	// Unavailable is set when the registry could not be reached; nothing was recorded.
	Unavailable bool
}

// CrossCheckSintys cross-checks every legajo still SIN_CRUCE. An unreachable
// registry is not an error: the legajos stay pending and the call can be
// repeated.
func (s *Service) CrossCheckSintys(ctx context.Context, expedienteID uint64, actor domain.Actor) (CrossCheckSummary, error) {
	if err := s.ready(ctx); err != nil {
		return CrossCheckSummary{}, err
	}
	if err := requireActor(actor, domain.RoleCoordinador, domain.RoleSistema); err != nil {
		return CrossCheckSummary{}, err
	}
	if s.sintys == nil {
		return CrossCheckSummary{}, errors.New("sintys client is required")
	}
	logCtx := logging.WithExpediente(componentCtx(ctx, "cross_check_sintys"), expedienteID, 0)

	exp, err := s.repo.GetExpediente(ctx, expedienteID)
	if err != nil {
		return CrossCheckSummary{}, err
	}
	if exp.Estado != domain.ExpedienteValidado {
		return CrossCheckSummary{}, fmt.Errorf("%w: SINTYS runs on VALIDADO expedientes, got %s", domain.ErrTransitionNotAllowed, exp.Estado)
	}

	pending, err := s.repo.ListLegajos(ctx, ports.LegajoFilter{ExpedienteID: expedienteID, CruceResultado: domain.SintysSinCruce})
	if err != nil {
		return CrossCheckSummary{}, err
	}
	summary := CrossCheckSummary{Consultados: len(pending)}
	if len(pending) == 0 {
		s.advanceBestEffort(logCtx, expedienteID)
		return summary, nil
	}

	queries := make([]ports.SintysQuery, 0, len(pending))
	for _, d := range pending {
		queries = append(queries, ports.SintysQuery{
			Documento:       d.Legajo.Documento,
			Apellido:        d.Legajo.Apellido,
			Nombre:          d.Legajo.Nombre,
			FechaNacimiento: d.Legajo.FechaNacimiento,
		})
	}

	verdicts, err := s.sintys.CrossCheck(ctx, queries)
	if err != nil {
		summary.Unavailable = true
		s.metrics.SintysOutcome("unavailable")
		logging.Warn(logCtx, "sintys unavailable, cross-check deferred", slog.Int("legajos", len(pending)), slog.Any("err", errs.Loggable(err)))
		return summary, nil
	}

	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		now := s.now()
		for _, d := range pending {
			verdict, ok := verdicts[d.Legajo.Documento]
			if !ok {
				summary.SinRespuesta++
				continue
			}

			current, err := s.repo.GetLegajoDetail(txCtx, d.Legajo.ID)
			if err != nil {
				return err
			}
			if current.Cruce.Resultado != domain.SintysSinCruce {
				continue
			}
			if err := s.repo.TouchLegajo(txCtx, d.Legajo.ID, current.Legajo.Version); err != nil {
				return err
			}

			resultado := domain.SintysNoMatch
			if verdict.Match {
				resultado = domain.SintysMatch
				summary.Match++
			} else {
				summary.NoMatch++
			}
			if err := s.repo.UpdateCruce(txCtx, ports.CruceResultado{
				LegajoID:    d.Legajo.ID,
				Resultado:   resultado,
				CruceOK:     verdict.Match,
				Observacion: strings.TrimSpace(verdict.Observacion),
				CheckedAt:   &now,
			}); err != nil {
				return err
			}

			body := "SINTYS: " + string(resultado)
			if verdict.Observacion != "" {
				body += " - " + verdict.Observacion
			}
			if err := s.appendComentarioTx(txCtx, d.Legajo.ID, domain.ComentarioCruceSintys, body, "", domain.SystemActor.Username, string(resultado)); err != nil {
				return err
			}
		}
		if err := s.appendAuditTx(txCtx, actor, "expediente.sintys", "expediente", expedienteID, map[string]any{
			"match":         summary.Match,
			"no_match":      summary.NoMatch,
			"sin_respuesta": summary.SinRespuesta,
		}); err != nil {
			return err
		}
		return s.refreshCountersTx(txCtx, expedienteID)
	}); err != nil {
		return CrossCheckSummary{}, err
	}

	for i := 0; i < summary.Match; i++ {
		s.metrics.SintysOutcome(string(domain.SintysMatch))
	}
	for i := 0; i < summary.NoMatch; i++ {
		s.metrics.SintysOutcome(string(domain.SintysNoMatch))
	}
	logging.Info(
		logCtx,
		"sintys cross-check recorded",
		slog.Int("match", summary.Match),
		slog.Int("no_match", summary.NoMatch),
		slog.Int("sin_respuesta", summary.SinRespuesta),
	)
	s.advanceBestEffort(logCtx, expedienteID)
	return summary, nil
}
