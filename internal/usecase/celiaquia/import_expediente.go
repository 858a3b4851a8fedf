package celiaquia

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"celiaquia/internal/bootstrap/logging"
	domain "celiaquia/internal/domain/celiaquia"
	"celiaquia/internal/ports"
)

// ImportExpediente creates an expediente from parsed upload rows. Valid rows
// become legajos queued for RENAPER; the rest are kept as registros erroneos.
// One valid row is enough to reach IMPORTADO.
func (s *Service) ImportExpediente(ctx context.Context, input ImportExpedienteInput) (ImportResult, error) {
	if err := s.ready(ctx); err != nil {
		return ImportResult{}, err
	}
	if err := requireActor(input.Actor, domain.RoleProvincia, domain.RoleCoordinador); err != nil {
		return ImportResult{}, err
	}

	provincia := strings.TrimSpace(input.Provincia)
	if provincia == "" {
		return ImportResult{}, fmt.Errorf("%w: provincia is required", domain.ErrValidation)
	}
	if len(input.Rows) == 0 {
		return ImportResult{}, fmt.Errorf("%w: upload has no rows", domain.ErrValidation)
	}
	numero := strings.TrimSpace(input.Numero)
	if numero == "" {
		numero = fmt.Sprintf("EXP-%s-%s", strings.ToUpper(provincia), s.newToken()[:8])
	}

	now := s.now()
	plan := planImport(input.Rows, now, nil, nil)
	sort.SliceStable(plan.failures, func(i, j int) bool { return plan.failures[i].err.Fila < plan.failures[j].err.Fila })

	result, err := ports.InTx(ctx, s.uow, func(txCtx context.Context) (ImportResult, error) {
		exp, err := s.repo.CreateExpediente(txCtx, ports.Expediente{
			Numero:         numero,
			Provincia:      provincia,
			Estado:         domain.ExpedienteIniciada,
			UsuarioCreador: input.Actor.Username,
			ArchivoOrigen:  strings.TrimSpace(input.ArchivoOrigen),
			CreatedAt:      now,
		})
		if err != nil {
			return ImportResult{}, err
		}
		if err := s.repo.AppendEstadoHistorial(txCtx, ports.EstadoHistorial{
			ExpedienteID: exp.ID,
			EstadoNuevo:  domain.ExpedienteIniciada,
			Usuario:      input.Actor.Username,
			Observacion:  "expediente creado",
			CreatedAt:    now,
		}); err != nil {
			return ImportResult{}, err
		}

		if _, err := s.createLegajosTx(txCtx, exp.ID, plan, nil, nil); err != nil {
			return ImportResult{}, err
		}
		if err := s.createRegistrosTx(txCtx, exp.ID, plan.failures); err != nil {
			return ImportResult{}, err
		}
		if err := s.appendAuditTx(txCtx, input.Actor, "expediente.import", "expediente", exp.ID, map[string]any{
			"numero":   numero,
			"validos":  len(plan.valid),
			"erroneos": len(plan.failures),
			"archivo":  exp.ArchivoOrigen,
		}); err != nil {
			return ImportResult{}, err
		}

		if len(plan.valid) > 0 {
			if _, err := s.applyTransitionTx(txCtx, exp, domain.ExpedienteImportado, domain.SystemActor, string(domain.GateValidRows)); err != nil {
				return ImportResult{}, err
			}
		}
		if err := s.refreshCountersTx(txCtx, exp.ID); err != nil {
			return ImportResult{}, err
		}

		exp, err = s.repo.GetExpediente(txCtx, exp.ID)
		if err != nil {
			return ImportResult{}, err
		}

		out := ImportResult{Expediente: exp, Legajos: len(plan.valid)}
		for _, f := range plan.failures {
			out.Erroneos = append(out.Erroneos, f.err)
		}
		return out, nil
	})
	if err != nil {
		return ImportResult{}, err
	}

	s.metrics.RowsImported(result.Legajos, len(result.Erroneos))
	if result.Expediente.Estado == domain.ExpedienteImportado {
		s.metrics.ExpedienteTransition(string(domain.ExpedienteIniciada), string(domain.ExpedienteImportado))
	}
	logging.Info(
		logging.WithExpediente(componentCtx(ctx, "import_expediente"), result.Expediente.ID, 0),
		"expediente imported",
		slog.String("numero", result.Expediente.Numero),
		slog.Int("validos", result.Legajos),
		slog.Int("erroneos", len(result.Erroneos)),
		slog.String("estado", string(result.Expediente.Estado)),
	)
	return result, nil
}

// createLegajosTx inserts the planned candidates in dependency order and
// queues each for RENAPER. existing resolves responsables already persisted;
// registroID links a legajo recovered from an erroneous row.
func (s *Service) createLegajosTx(ctx context.Context, expedienteID uint64, plan importPlan, existing map[string]ports.Legajo, registroID *uint64) ([]ports.Legajo, error) {
	ids := make(map[string]uint64, len(plan.valid)+len(existing))
	for doc, l := range existing {
		ids[doc] = l.ID
	}

	// A fresh legajo has no documents, so it is complete only while nothing is required.
	required, err := s.requiredTiposTx(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	created := make([]ports.Legajo, 0, len(plan.valid))
	for _, c := range plan.valid {
		var responsableID *uint64
		if c.DocumentoResponsable != "" {
			id, ok := ids[c.DocumentoResponsable]
			if !ok {
				return nil, fmt.Errorf("%w: responsable %s not created", domain.ErrValidation, c.DocumentoResponsable)
			}
			responsableID = &id
		}

		candidate := legajoFromCandidate(expedienteID, c, plan.referenced[c.Documento], responsableID, now)
		candidate.RegistroErroneoID = registroID
		legajo, err := s.repo.CreateLegajo(ctx, candidate)
		if err != nil {
			return nil, err
		}
		legajo.ArchivosOK = domain.ArchivosOK(required, nil)
		if err := s.repo.SetLegajoArchivos(ctx, legajo.ID, false, legajo.ArchivosOK); err != nil {
			return nil, err
		}
		ids[c.Documento] = legajo.ID
		created = append(created, legajo)

		if err := s.enqueueRenaperTx(ctx, legajo); err != nil {
			return nil, err
		}
	}
	return created, nil
}

func (s *Service) createRegistrosTx(ctx context.Context, expedienteID uint64, failures []rowFailure) error {
	if len(failures) == 0 {
		return nil
	}
	now := s.now()
	rows := make([]ports.RegistroErroneo, 0, len(failures))
	for _, f := range failures {
		rows = append(rows, ports.RegistroErroneo{
			ExpedienteID: expedienteID,
			Fila:         f.err.Fila,
			Datos:        f.raw,
			Campo:        f.err.Campo,
			Mensaje:      f.err.Mensaje,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	return s.repo.CreateRegistrosErroneos(ctx, rows)
}

func (s *Service) enqueueRenaperTx(ctx context.Context, legajo ports.Legajo) error {
	_, err := s.repo.EnqueueWork(ctx, ports.WorkItem{
		Kind:         WorkKindRenaper,
		Key:          renaperWorkKey(legajo.ID),
		ExpedienteID: legajo.ExpedienteID,
		LegajoID:     legajo.ID,
		AvailableAt:  s.now(),
	})
	return err
}

func renaperWorkKey(legajoID uint64) string {
	return fmt.Sprintf("%s:legajo:%d", WorkKindRenaper, legajoID)
}
