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

type CupoSummary struct {
	Evaluados int
	Dentro    int
	Fuera     int
	Cupo      ports.CupoProvincia
}

// SetCupo sizes a provincia's quota. It cannot shrink below the titulares
// already active.
func (s *Service) SetCupo(ctx context.Context, input SetCupoInput) (ports.CupoProvincia, error) {
	if err := s.ready(ctx); err != nil {
		return ports.CupoProvincia{}, err
	}
	if err := requireActor(input.Actor, domain.RoleCoordinador); err != nil {
		return ports.CupoProvincia{}, err
	}
	provincia := strings.TrimSpace(input.Provincia)
	if provincia == "" {
		return ports.CupoProvincia{}, fmt.Errorf("%w: provincia is required", domain.ErrValidation)
	}
	if input.Tamano < 0 {
		return ports.CupoProvincia{}, fmt.Errorf("%w: tamano must not be negative", domain.ErrValidation)
	}

	cupo, err := ports.InTx(ctx, s.uow, func(txCtx context.Context) (ports.CupoProvincia, error) {
		current, err := s.repo.EnsureCupoProvincia(txCtx, provincia, s.opts.CupoDefaultSize)
		if err != nil {
			return ports.CupoProvincia{}, err
		}
		if input.Tamano < current.Activos {
			return ports.CupoProvincia{}, fmt.Errorf("%w: provincia %s has %d active titulares", domain.ErrConflict, provincia, current.Activos)
		}
		cupo, err := s.repo.SetCupoSize(txCtx, provincia, input.Tamano)
		if err != nil {
			return ports.CupoProvincia{}, err
		}
		return cupo, s.appendAuditTx(txCtx, input.Actor, "cupo.set", "cupo", 0, map[string]any{
			"provincia": provincia,
			"anterior":  current.Tamano,
			"tamano":    input.Tamano,
		})
	})
	if err != nil {
		return ports.CupoProvincia{}, err
	}
	logging.Info(componentCtx(ctx, "set_cupo"), "cupo sized", slog.String("provincia", provincia), slog.Int64("tamano", cupo.Tamano))
	return cupo, nil
}

// EvaluateCupo decides DENTRO or FUERA for every qualifying legajo of an
// APROBADO_TECNICO expediente. Candidates are taken by creation order and each
// slot is reserved with a conditional update, so active titulares never
// exceed the provincia's size. Running it again is a no-op.
func (s *Service) EvaluateCupo(ctx context.Context, expedienteID uint64, actor domain.Actor) (CupoSummary, error) {
	if err := s.ready(ctx); err != nil {
		return CupoSummary{}, err
	}
	if err := requireActor(actor, domain.RoleCoordinador, domain.RoleSistema); err != nil {
		return CupoSummary{}, err
	}

	summary, err := ports.InTx(ctx, s.uow, func(txCtx context.Context) (CupoSummary, error) {
		exp, err := s.repo.GetExpediente(txCtx, expedienteID)
		if err != nil {
			return CupoSummary{}, err
		}
		switch exp.Estado {
		case domain.ExpedienteAprobadoTecnico:
		case domain.ExpedienteCupoDecidido, domain.ExpedienteEnviadoAPago, domain.ExpedienteFinalizado:
			return CupoSummary{}, nil
		default:
			return CupoSummary{}, fmt.Errorf("%w: cupo is evaluated on APROBADO_TECNICO expedientes, got %s", domain.ErrTransitionNotAllowed, exp.Estado)
		}

		if _, err := s.repo.EnsureCupoProvincia(txCtx, exp.Provincia, s.opts.CupoDefaultSize); err != nil {
			return CupoSummary{}, err
		}

		aceptado := domain.RenaperAceptado
		legajos, err := s.repo.ListLegajos(txCtx, ports.LegajoFilter{
			ExpedienteID:  expedienteID,
			Revision:      domain.RevisionAprobado,
			RenaperEstado: &aceptado,
			CupoEstado:    domain.CupoNoEval,
		})
		if err != nil {
			return CupoSummary{}, err
		}

		byID := make(map[uint64]ports.LegajoDetail, len(legajos))
		candidates := make([]domain.CupoCandidate, 0, len(legajos))
		for _, d := range legajos {
			if !domain.QualifiesForCupo(d.Validacion.Revision, d.Renaper.Estado) {
				continue
			}
			byID[d.Legajo.ID] = d
			candidates = append(candidates, domain.CupoCandidate{LegajoID: d.Legajo.ID, Documento: d.Legajo.Documento, CreatedAt: d.Legajo.CreatedAt})
		}
		domain.SortCupoCandidates(candidates)

		summary := CupoSummary{Evaluados: len(candidates)}
		now := s.now()
		for _, c := range candidates {
			d := byID[c.LegajoID]
			reserved, err := s.repo.TryReserveSlot(txCtx, exp.Provincia)
			if err != nil {
				return CupoSummary{}, err
			}
			estado := domain.CupoFuera
			if reserved {
				estado = domain.CupoDentro
				summary.Dentro++
			} else {
				summary.Fuera++
			}
			if err := s.repo.TouchLegajo(txCtx, d.Legajo.ID, d.Legajo.Version); err != nil {
				return CupoSummary{}, err
			}
			if err := s.repo.UpdateCupoTitular(txCtx, ports.CupoTitular{
				LegajoID:        d.Legajo.ID,
				Estado:          estado,
				EsTitularActivo: reserved,
				Provincia:       exp.Provincia,
				DecididoAt:      &now,
			}); err != nil {
				return CupoSummary{}, err
			}
		}

		cupo, err := s.repo.EnsureCupoProvincia(txCtx, exp.Provincia, s.opts.CupoDefaultSize)
		if err != nil {
			return CupoSummary{}, err
		}
		summary.Cupo = cupo

		if err := s.appendAuditTx(txCtx, actor, "expediente.cupo", "expediente", expedienteID, map[string]any{
			"dentro":  summary.Dentro,
			"fuera":   summary.Fuera,
			"activos": cupo.Activos,
			"tamano":  cupo.Tamano,
		}); err != nil {
			return CupoSummary{}, err
		}
		return summary, s.refreshCountersTx(txCtx, expedienteID)
	})
	if err != nil {
		return CupoSummary{}, err
	}

	for i := 0; i < summary.Dentro; i++ {
		s.metrics.CupoDecision(string(domain.CupoDentro))
	}
	for i := 0; i < summary.Fuera; i++ {
		s.metrics.CupoDecision(string(domain.CupoFuera))
	}
	logCtx := logging.WithExpediente(componentCtx(ctx, "evaluate_cupo"), expedienteID, 0)
	logging.Info(logCtx, "cupo evaluated", slog.Int("dentro", summary.Dentro), slog.Int("fuera", summary.Fuera))
	s.advanceBestEffort(logCtx, expedienteID)
	return summary, nil
}

// ReleaseTitular gives up an active titular slot (baja). The legajo keeps its
// DENTRO decision for the record.
func (s *Service) ReleaseTitular(ctx context.Context, input ReleaseTitularInput) (ports.LegajoDetail, error) {
	if err := s.ready(ctx); err != nil {
		return ports.LegajoDetail{}, err
	}
	if err := requireActor(input.Actor, domain.RoleCoordinador); err != nil {
		return ports.LegajoDetail{}, err
	}
	motivo := strings.TrimSpace(input.Motivo)
	if motivo == "" {
		return ports.LegajoDetail{}, fmt.Errorf("%w: motivo is required", domain.ErrValidation)
	}

	detail, err := ports.InTx(ctx, s.uow, func(txCtx context.Context) (ports.LegajoDetail, error) {
		detail, err := s.repo.GetLegajoDetail(txCtx, input.LegajoID)
		if err != nil {
			return ports.LegajoDetail{}, err
		}
		if !detail.Cupo.EsTitularActivo {
			return ports.LegajoDetail{}, fmt.Errorf("%w: legajo %d is not an active titular", domain.ErrValidation, input.LegajoID)
		}
		if err := s.repo.TouchLegajo(txCtx, detail.Legajo.ID, detail.Legajo.Version); err != nil {
			return ports.LegajoDetail{}, err
		}
		c := detail.Cupo
		c.EsTitularActivo = false
		if err := s.repo.UpdateCupoTitular(txCtx, c); err != nil {
			return ports.LegajoDetail{}, err
		}
		if err := s.repo.ReleaseSlot(txCtx, c.Provincia); err != nil {
			return ports.LegajoDetail{}, err
		}
		if err := s.appendComentarioTx(txCtx, detail.Legajo.ID, domain.ComentarioObservacionGeneral, "Baja de titular: "+motivo, "", input.Actor.Username, string(c.Estado)); err != nil {
			return ports.LegajoDetail{}, err
		}
		if err := s.appendAuditTx(txCtx, input.Actor, "legajo.baja", "legajo", detail.Legajo.ID, map[string]any{
			"provincia": c.Provincia,
			"motivo":    motivo,
		}); err != nil {
			return ports.LegajoDetail{}, err
		}
		return s.repo.GetLegajoDetail(txCtx, detail.Legajo.ID)
	})
	if err != nil {
		return ports.LegajoDetail{}, err
	}

	logging.Info(
		logging.WithExpediente(componentCtx(ctx, "release_titular"), detail.Legajo.ExpedienteID, detail.Legajo.ID),
		"titular released",
		slog.String("provincia", detail.Cupo.Provincia),
	)
	return detail, nil
}
