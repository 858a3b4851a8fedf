package celiaquia

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"celiaquia/internal/bootstrap/logging"
	domain "celiaquia/internal/domain/celiaquia"
	"celiaquia/internal/ports"
)

// ReviewLegajo records the técnico decision on a legajo. Approval needs a
// RENAPER outcome that is not Rechazado, and asking for subsanación needs a
// motivo.
func (s *Service) ReviewLegajo(ctx context.Context, input ReviewInput) (ports.LegajoDetail, error) {
	if err := s.ready(ctx); err != nil {
		return ports.LegajoDetail{}, err
	}
	if err := requireActor(input.Actor, domain.RoleTecnico, domain.RoleCoordinador); err != nil {
		return ports.LegajoDetail{}, err
	}
	to, err := domain.ParseRevisionTecnico(string(input.Revision))
	if err != nil {
		return ports.LegajoDetail{}, err
	}
	comentario := strings.TrimSpace(input.Comentario)
	if to == domain.RevisionSubsanar && comentario == "" {
		return ports.LegajoDetail{}, fmt.Errorf("%w: subsanación requires a motivo", domain.ErrValidation)
	}

	var from domain.RevisionTecnico
	detail, err := ports.InTx(ctx, s.uow, func(txCtx context.Context) (ports.LegajoDetail, error) {
		detail, err := s.loadForRevisionTx(txCtx, input.LegajoID, input.ExpectedVersion)
		if err != nil {
			return ports.LegajoDetail{}, err
		}
		from = detail.Validacion.Revision

		if err := domain.AuthorizeRevision(from, to, input.Actor); err != nil {
			return ports.LegajoDetail{}, err
		}
		if input.Actor.Role == domain.RoleTecnico {
			if err := s.checkAssigneeTx(txCtx, detail.Legajo.ID, input.Actor.Username); err != nil {
				return ports.LegajoDetail{}, err
			}
		}
		if to == domain.RevisionAprobado {
			if err := domain.CanApprove(detail.Renaper.Estado); err != nil {
				return ports.LegajoDetail{}, err
			}
		}

		if err := s.repo.TouchLegajo(txCtx, detail.Legajo.ID, detail.Legajo.Version); err != nil {
			return ports.LegajoDetail{}, err
		}

		now := s.now()
		v := detail.Validacion
		v.Revision = to
		v.RevisadoPor = input.Actor.Username
		v.RevisadoAt = &now
		if to == domain.RevisionSubsanar {
			v.SubsanacionMotivo = comentario
			v.SubsanacionSolicitada = &now
			v.SubsanacionSolicitante = input.Actor.Username
			v.SubsanacionEnviada = nil
		}
		if err := s.repo.UpdateValidacionTecnica(txCtx, v); err != nil {
			return ports.LegajoDetail{}, err
		}
		if err := s.appendComentarioTx(txCtx, detail.Legajo.ID, domain.ComentarioForRevision(to), comentario, "", input.Actor.Username, string(to)); err != nil {
			return ports.LegajoDetail{}, err
		}
		if err := s.appendAuditTx(txCtx, input.Actor, "legajo.review", "legajo", detail.Legajo.ID, map[string]any{
			"from": string(from),
			"to":   string(to),
		}); err != nil {
			return ports.LegajoDetail{}, err
		}
		if err := s.refreshCountersTx(txCtx, detail.Legajo.ExpedienteID); err != nil {
			return ports.LegajoDetail{}, err
		}
		return s.repo.GetLegajoDetail(txCtx, detail.Legajo.ID)
	})
	if err != nil {
		return ports.LegajoDetail{}, err
	}

	logCtx := logging.WithExpediente(componentCtx(ctx, "review_legajo"), detail.Legajo.ExpedienteID, detail.Legajo.ID)
	logging.Info(logCtx, "legajo reviewed", slog.String("from", string(from)), slog.String("to", string(to)), slog.String("actor", input.Actor.Username))
	s.advanceBestEffort(logCtx, detail.Legajo.ExpedienteID)
	return detail, nil
}

// SubmitSubsanacion answers a SUBSANAR request on behalf of the provincia,
// optionally attaching or replacing a document in the same transaction.
func (s *Service) SubmitSubsanacion(ctx context.Context, input SubsanacionInput) (ports.LegajoDetail, error) {
	if err := s.ready(ctx); err != nil {
		return ports.LegajoDetail{}, err
	}
	if err := requireActor(input.Actor, domain.RoleProvincia); err != nil {
		return ports.LegajoDetail{}, err
	}
	respuesta := strings.TrimSpace(input.Respuesta)
	if respuesta == "" && input.Documento == nil {
		return ports.LegajoDetail{}, fmt.Errorf("%w: subsanación requires a respuesta or a document", domain.ErrValidation)
	}

	var stored ports.StoredFile
	if input.Documento != nil {
		upload := *input.Documento
		upload.LegajoID = input.LegajoID
		upload.Actor = input.Actor
		var err error
		if stored, err = s.storeUpload(ctx, upload); err != nil {
			return ports.LegajoDetail{}, err
		}
	}

	detail, err := ports.InTx(ctx, s.uow, func(txCtx context.Context) (ports.LegajoDetail, error) {
		detail, err := s.loadForRevisionTx(txCtx, input.LegajoID, 0)
		if err != nil {
			return ports.LegajoDetail{}, err
		}
		if err := domain.AuthorizeRevision(detail.Validacion.Revision, domain.RevisionSubsanado, input.Actor); err != nil {
			return ports.LegajoDetail{}, err
		}
		if err := s.repo.TouchLegajo(txCtx, detail.Legajo.ID, detail.Legajo.Version); err != nil {
			return ports.LegajoDetail{}, err
		}

		archivo := ""
		if input.Documento != nil {
			upload := *input.Documento
			upload.LegajoID = input.LegajoID
			upload.Actor = input.Actor
			if err := s.attachOrReplaceTx(txCtx, detail, upload, stored); err != nil {
				return ports.LegajoDetail{}, err
			}
			archivo = stored.Path
		}

		now := s.now()
		v := detail.Validacion
		v.Revision = domain.RevisionSubsanado
		v.SubsanacionEnviada = &now
		if err := s.repo.UpdateValidacionTecnica(txCtx, v); err != nil {
			return ports.LegajoDetail{}, err
		}
		if err := s.appendComentarioTx(txCtx, detail.Legajo.ID, domain.ComentarioSubsanacionRespuesta, respuesta, archivo, input.Actor.Username, string(domain.RevisionSubsanado)); err != nil {
			return ports.LegajoDetail{}, err
		}
		if err := s.appendAuditTx(txCtx, input.Actor, "legajo.subsanacion", "legajo", detail.Legajo.ID, map[string]any{
			"archivo": archivo,
		}); err != nil {
			return ports.LegajoDetail{}, err
		}
		if err := s.refreshCountersTx(txCtx, detail.Legajo.ExpedienteID); err != nil {
			return ports.LegajoDetail{}, err
		}
		return s.repo.GetLegajoDetail(txCtx, detail.Legajo.ID)
	})
	if err != nil {
		s.discardOrphan(ctx, stored.Path)
		return ports.LegajoDetail{}, err
	}

	logCtx := logging.WithExpediente(componentCtx(ctx, "submit_subsanacion"), detail.Legajo.ExpedienteID, detail.Legajo.ID)
	logging.Info(logCtx, "subsanación submitted", slog.Bool("documento", input.Documento != nil))
	s.advanceBestEffort(logCtx, detail.Legajo.ExpedienteID)
	return detail, nil
}

// loadForRevisionTx reads a legajo for a técnico-side change and checks that
// its expediente is under review.
func (s *Service) loadForRevisionTx(ctx context.Context, legajoID uint64, expectedVersion int64) (ports.LegajoDetail, error) {
	detail, err := s.repo.GetLegajoDetail(ctx, legajoID)
	if err != nil {
		return ports.LegajoDetail{}, err
	}
	if expectedVersion != 0 && expectedVersion != detail.Legajo.Version {
		return ports.LegajoDetail{}, ports.ErrVersionConflict
	}
	exp, err := s.repo.GetExpediente(ctx, detail.Legajo.ExpedienteID)
	if err != nil {
		return ports.LegajoDetail{}, err
	}
	if exp.Estado != domain.ExpedienteEnRevisionTecnica && exp.Estado != domain.ExpedienteEnSubsanacion {
		return ports.LegajoDetail{}, fmt.Errorf("%w: expediente is %s, not under técnico review", domain.ErrTransitionNotAllowed, exp.Estado)
	}
	return detail, nil
}

func (s *Service) checkAssigneeTx(ctx context.Context, legajoID uint64, tecnico string) error {
	a, err := s.repo.GetActiveAsignacion(ctx, legajoID)
	if err != nil {
		if errors.Is(err, ports.ErrAsignacionNotFound) {
			return fmt.Errorf("%w: legajo %d has no active técnico", domain.ErrPermissionDenied, legajoID)
		}
		return err
	}
	if a.Tecnico != tecnico {
		return fmt.Errorf("%w: legajo %d is assigned to another técnico", domain.ErrPermissionDenied, legajoID)
	}
	return nil
}

func (s *Service) attachOrReplaceTx(ctx context.Context, detail ports.LegajoDetail, upload UploadDocumentInput, stored ports.StoredFile) error {
	existing, err := s.repo.GetDocumento(ctx, detail.Legajo.ID, upload.TipoDocumentoID)
	if errors.Is(err, ports.ErrDocumentoNotFound) {
		_, err = s.attachDocumentoTx(ctx, detail, upload, stored)
		return err
	}
	if err != nil {
		return err
	}

	if _, err := s.repo.ReplaceDocumento(ctx, ports.DocumentoLegajo{
		LegajoID:        detail.Legajo.ID,
		TipoDocumentoID: upload.TipoDocumentoID,
		Archivo:         stored.Path,
		Hash:            stored.Hash,
		Tamano:          stored.Size,
		Usuario:         upload.Actor.Username,
		Observaciones:   strings.TrimSpace(upload.Observaciones),
		Version:         existing.Version,
		UpdatedAt:       s.now(),
	}); err != nil {
		return err
	}
	if detail.Renaper.Estado == domain.RenaperSubsanar {
		r := detail.Renaper
		r.Archivo = stored.Path
		if err := s.repo.UpdateValidacionRenaper(ctx, r); err != nil {
			return err
		}
	}
	return s.appendAuditTx(ctx, upload.Actor, "documento.replace", "legajo", detail.Legajo.ID, map[string]any{
		"tipo_documento_id": upload.TipoDocumentoID,
		"hash_anterior":     existing.Hash,
		"hash":              stored.Hash,
	})
}
