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

var errRegistroAlreadyProcessed = errs.Sentinel(errs.KindConflict, "registro already processed")

type ReprocessResult struct {
	Registro ports.RegistroErroneo
	Legajo   *ports.Legajo
	// Error is set when the corrected data is still invalid; the registro
	// keeps the new data and message.
	Error            *domain.RowError
	AlreadyProcessed bool
}

// ReprocessRegistro retries an erroneous row with corrected values merged
// over the stored ones. It succeeds at most once per registro; later calls
// report AlreadyProcessed without side effects.
func (s *Service) ReprocessRegistro(ctx context.Context, input ReprocessInput) (ReprocessResult, error) {
	if err := s.ready(ctx); err != nil {
		return ReprocessResult{}, err
	}
	if err := requireActor(input.Actor, domain.RoleProvincia, domain.RoleCoordinador); err != nil {
		return ReprocessResult{}, err
	}

	var (
		expedienteID uint64
		transitioned *appliedTransition
	)
	result, err := ports.InTx(ctx, s.uow, func(txCtx context.Context) (ReprocessResult, error) {
		reg, err := s.repo.GetRegistroErroneo(txCtx, input.RegistroID)
		if err != nil {
			return ReprocessResult{}, err
		}
		expedienteID = reg.ExpedienteID
		if reg.Procesado {
			return ReprocessResult{Registro: reg, AlreadyProcessed: true}, nil
		}

		exp, err := s.repo.GetExpediente(txCtx, reg.ExpedienteID)
		if err != nil {
			return ReprocessResult{}, err
		}
		if exp.Estado != domain.ExpedienteIniciada && exp.Estado != domain.ExpedienteImportado {
			return ReprocessResult{}, fmt.Errorf("%w: registros are reprocessed while the expediente is INICIADA or IMPORTADO, got %s", domain.ErrTransitionNotAllowed, exp.Estado)
		}

		datos := mergeDatos(reg.Datos, input.Datos)
		existing, referenced, err := s.reprocessContextTx(txCtx, reg)
		if err != nil {
			return ReprocessResult{}, err
		}

		now := s.now()
		plan := planImport([]ImportRow{{Fila: reg.Fila, Values: datos}}, now, existing, referenced)
		if len(plan.failures) > 0 {
			f := plan.failures[0].err
			if err := s.repo.UpdateRegistroDatos(txCtx, reg.ID, datos, f.Campo, f.Mensaje, now); err != nil {
				return ReprocessResult{}, err
			}
			if err := s.appendAuditTx(txCtx, input.Actor, "registro.reprocess_failed", "registro_erroneo", reg.ID, map[string]any{
				"campo":   f.Campo,
				"mensaje": f.Mensaje,
			}); err != nil {
				return ReprocessResult{}, err
			}
			if err := s.refreshCountersTx(txCtx, reg.ExpedienteID); err != nil {
				return ReprocessResult{}, err
			}
			reg, err = s.repo.GetRegistroErroneo(txCtx, reg.ID)
			if err != nil {
				return ReprocessResult{}, err
			}
			return ReprocessResult{Registro: reg, Error: &f}, nil
		}

		registroID := reg.ID
		created, err := s.createLegajosTx(txCtx, reg.ExpedienteID, plan, existing, &registroID)
		if err != nil {
			return ReprocessResult{}, err
		}
		legajo := created[0]
		marked, err := s.repo.MarkRegistroProcesado(txCtx, reg.ID, legajo.ID, now)
		if err != nil {
			return ReprocessResult{}, err
		}
		if !marked {
			return ReprocessResult{}, errRegistroAlreadyProcessed
		}

		if exp.Estado == domain.ExpedienteIniciada {
			applied, err := s.applyTransitionTx(txCtx, exp, domain.ExpedienteImportado, domain.SystemActor, string(domain.GateValidRows))
			if err != nil {
				return ReprocessResult{}, err
			}
			transitioned = &applied
		}
		if err := s.appendAuditTx(txCtx, input.Actor, "registro.reprocess", "registro_erroneo", reg.ID, map[string]any{
			"legajo_id": legajo.ID,
			"documento": legajo.Documento,
		}); err != nil {
			return ReprocessResult{}, err
		}
		if err := s.refreshCountersTx(txCtx, reg.ExpedienteID); err != nil {
			return ReprocessResult{}, err
		}
		reg, err = s.repo.GetRegistroErroneo(txCtx, reg.ID)
		if err != nil {
			return ReprocessResult{}, err
		}
		return ReprocessResult{Registro: reg, Legajo: &legajo}, nil
	})
	if errors.Is(err, errRegistroAlreadyProcessed) {
		reg, getErr := s.repo.GetRegistroErroneo(ctx, input.RegistroID)
		if getErr != nil {
			return ReprocessResult{}, getErr
		}
		return ReprocessResult{Registro: reg, AlreadyProcessed: true}, nil
	}
	if err != nil {
		return ReprocessResult{}, err
	}

	logCtx := logging.WithExpediente(componentCtx(ctx, "reprocess_registro"), expedienteID, 0)
	switch {
	case result.AlreadyProcessed:
		logging.Debug(logCtx, "registro already processed", slog.Uint64("registro_id", input.RegistroID))
		return result, nil
	case result.Error != nil:
		logging.Info(logCtx, "registro still invalid", slog.Uint64("registro_id", input.RegistroID), slog.String("campo", result.Error.Campo))
		return result, result.Error
	}

	s.metrics.RowsImported(1, 0)
	if transitioned != nil {
		s.metrics.ExpedienteTransition(string(transitioned.From), string(transitioned.To))
	}
	logging.Info(logCtx, "registro reprocessed", slog.Uint64("registro_id", input.RegistroID), slog.Uint64("legajo_id", result.Legajo.ID))
	return result, nil
}

// ListErroneos lists an expediente's erroneous rows by fila.
func (s *Service) ListErroneos(ctx context.Context, expedienteID uint64, onlyPending bool) ([]ports.RegistroErroneo, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListRegistrosErroneos(ctx, expedienteID, onlyPending)
}

// reprocessContextTx loads the legajos a reprocessed row may reference and
// the documentos other pending rows name as responsable.
func (s *Service) reprocessContextTx(ctx context.Context, reg ports.RegistroErroneo) (map[string]ports.Legajo, map[string]bool, error) {
	details, err := s.repo.ListLegajos(ctx, ports.LegajoFilter{ExpedienteID: reg.ExpedienteID})
	if err != nil {
		return nil, nil, err
	}
	existing := make(map[string]ports.Legajo, len(details))
	for _, d := range details {
		existing[d.Legajo.Documento] = d.Legajo
	}

	pending, err := s.repo.ListRegistrosErroneos(ctx, reg.ExpedienteID, true)
	if err != nil {
		return nil, nil, err
	}
	referenced := make(map[string]bool)
	for _, p := range pending {
		if p.ID == reg.ID {
			continue
		}
		if doc := domain.NormalizeDocumento(p.Datos[domain.ColDocumentoResponsable]); doc != "" {
			referenced[doc] = true
		}
	}
	return existing, referenced, nil
}

func mergeDatos(stored map[string]string, corrected map[string]string) map[string]string {
	out := make(map[string]string, len(stored)+len(corrected))
	for k, v := range stored {
		out[k] = v
	}
	for k, v := range corrected {
		out[strings.TrimSpace(k)] = v
	}
	return out
}
