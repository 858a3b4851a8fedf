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

// UpsertTipoDocumento creates or updates a catalog entry by name. Changing
// which types are required recomputes archivos_ok on every legajo.
func (s *Service) UpsertTipoDocumento(ctx context.Context, tipo ports.TipoDocumento, actor domain.Actor) (ports.TipoDocumento, error) {
	if err := s.ready(ctx); err != nil {
		return ports.TipoDocumento{}, err
	}
	if err := requireActor(actor, domain.RoleCoordinador); err != nil {
		return ports.TipoDocumento{}, err
	}
	tipo.Nombre = strings.TrimSpace(tipo.Nombre)
	if tipo.Nombre == "" {
		return ports.TipoDocumento{}, fmt.Errorf("%w: nombre is required", domain.ErrValidation)
	}

	stored, err := ports.InTx(ctx, s.uow, func(txCtx context.Context) (ports.TipoDocumento, error) {
		stored, err := s.repo.UpsertTipoDocumento(txCtx, tipo)
		if err != nil {
			return ports.TipoDocumento{}, err
		}
		ids, err := s.repo.ListLegajoIDs(txCtx)
		if err != nil {
			return ports.TipoDocumento{}, err
		}
		for _, id := range ids {
			if err := s.recomputeArchivosTx(txCtx, id); err != nil {
				return ports.TipoDocumento{}, err
			}
		}
		return stored, s.appendAuditTx(txCtx, actor, "tipo_documento.upsert", "tipo_documento", stored.ID, map[string]any{
			"nombre":    stored.Nombre,
			"requerido": stored.Requerido,
			"activo":    stored.Activo,
		})
	})
	if err != nil {
		return ports.TipoDocumento{}, err
	}
	logging.Info(componentCtx(ctx, "upsert_tipo_documento"), "tipo documento saved", slog.String("nombre", stored.Nombre), slog.Bool("requerido", stored.Requerido))
	return stored, nil
}

func (s *Service) ListTiposDocumento(ctx context.Context, onlyActive bool) ([]ports.TipoDocumento, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListTiposDocumento(ctx, onlyActive)
}

// UploadDocumento stores a file for one (legajo, tipo) pair. A second upload
// for the same pair is a CONFLICT; use ReplaceDocumento instead.
func (s *Service) UploadDocumento(ctx context.Context, input UploadDocumentInput) (ports.DocumentoLegajo, error) {
	if err := s.ready(ctx); err != nil {
		return ports.DocumentoLegajo{}, err
	}
	if err := requireActor(input.Actor); err != nil {
		return ports.DocumentoLegajo{}, err
	}
	stored, err := s.storeUpload(ctx, input)
	if err != nil {
		return ports.DocumentoLegajo{}, err
	}

	doc, err := ports.InTx(ctx, s.uow, func(txCtx context.Context) (ports.DocumentoLegajo, error) {
		detail, err := s.repo.GetLegajoDetail(txCtx, input.LegajoID)
		if err != nil {
			return ports.DocumentoLegajo{}, err
		}
		if err := s.repo.TouchLegajo(txCtx, detail.Legajo.ID, detail.Legajo.Version); err != nil {
			return ports.DocumentoLegajo{}, err
		}
		return s.attachDocumentoTx(txCtx, detail, input, stored)
	})
	if err != nil {
		s.discardOrphan(ctx, stored.Path)
		return ports.DocumentoLegajo{}, err
	}

	logging.Info(
		logging.WithExpediente(componentCtx(ctx, "upload_documento"), 0, input.LegajoID),
		"documento uploaded",
		slog.Uint64("tipo_documento_id", input.TipoDocumentoID),
		slog.String("hash", stored.Hash),
	)
	return doc, nil
}

// ReplaceDocumento swaps the file behind an existing (legajo, tipo) pair.
// A stale ExpectedVersion is a CONFLICT.
func (s *Service) ReplaceDocumento(ctx context.Context, input ReplaceDocumentInput) (ports.DocumentoLegajo, error) {
	if err := s.ready(ctx); err != nil {
		return ports.DocumentoLegajo{}, err
	}
	if err := requireActor(input.Actor); err != nil {
		return ports.DocumentoLegajo{}, err
	}
	stored, err := s.storeUpload(ctx, input.UploadDocumentInput)
	if err != nil {
		return ports.DocumentoLegajo{}, err
	}

	var previous ports.DocumentoLegajo
	doc, err := ports.InTx(ctx, s.uow, func(txCtx context.Context) (ports.DocumentoLegajo, error) {
		previous, err = s.repo.GetDocumento(txCtx, input.LegajoID, input.TipoDocumentoID)
		if err != nil {
			return ports.DocumentoLegajo{}, err
		}
		expected := previous.Version
		if input.ExpectedVersion != 0 {
			expected = input.ExpectedVersion
		}

		doc, err := s.repo.ReplaceDocumento(txCtx, ports.DocumentoLegajo{
			LegajoID:        input.LegajoID,
			TipoDocumentoID: input.TipoDocumentoID,
			Archivo:         stored.Path,
			Hash:            stored.Hash,
			Tamano:          stored.Size,
			Usuario:         input.Actor.Username,
			Observaciones:   strings.TrimSpace(input.Observaciones),
			Version:         expected,
			UpdatedAt:       s.now(),
		})
		if err != nil {
			return ports.DocumentoLegajo{}, err
		}
		if err := s.recomputeArchivosTx(txCtx, input.LegajoID); err != nil {
			return ports.DocumentoLegajo{}, err
		}
		return doc, s.appendAuditTx(txCtx, input.Actor, "documento.replace", "legajo", input.LegajoID, map[string]any{
			"tipo_documento_id": input.TipoDocumentoID,
			"hash_anterior":     previous.Hash,
			"hash":              stored.Hash,
			"version":           doc.Version,
		})
	})
	if err != nil {
		s.discardOrphan(ctx, stored.Path)
		return ports.DocumentoLegajo{}, err
	}

	if s.opts.PurgeReplaced && previous.Archivo != "" && previous.Archivo != doc.Archivo {
		s.discardOrphan(ctx, previous.Archivo)
	}
	logging.Info(
		logging.WithExpediente(componentCtx(ctx, "replace_documento"), 0, input.LegajoID),
		"documento replaced",
		slog.Uint64("tipo_documento_id", input.TipoDocumentoID),
		slog.Int64("version", doc.Version),
	)
	return doc, nil
}

func (s *Service) ListDocumentos(ctx context.Context, legajoID uint64) ([]ports.DocumentoLegajo, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListDocumentos(ctx, legajoID)
}

func (s *Service) storeUpload(ctx context.Context, input UploadDocumentInput) (ports.StoredFile, error) {
	if s.files == nil {
		return ports.StoredFile{}, errors.New("file store is required")
	}
	if input.Content == nil {
		return ports.StoredFile{}, fmt.Errorf("%w: document content is required", domain.ErrValidation)
	}
	if input.LegajoID == 0 || input.TipoDocumentoID == 0 {
		return ports.StoredFile{}, fmt.Errorf("%w: legajo and tipo de documento are required", domain.ErrValidation)
	}
	return s.files.Put(ctx, input.Filename, input.Content)
}

// attachDocumentoTx links a stored file to a legajo and refreshes the legajo's
// document flags. The caller serializes on the legajo version.
func (s *Service) attachDocumentoTx(ctx context.Context, detail ports.LegajoDetail, input UploadDocumentInput, stored ports.StoredFile) (ports.DocumentoLegajo, error) {
	tipo, err := s.repo.GetTipoDocumento(ctx, input.TipoDocumentoID)
	if err != nil {
		return ports.DocumentoLegajo{}, err
	}
	if !tipo.Activo {
		return ports.DocumentoLegajo{}, fmt.Errorf("%w: tipo de documento %q is inactive", domain.ErrValidation, tipo.Nombre)
	}

	now := s.now()
	doc, err := s.repo.CreateDocumento(ctx, ports.DocumentoLegajo{
		LegajoID:        detail.Legajo.ID,
		TipoDocumentoID: tipo.ID,
		Archivo:         stored.Path,
		Hash:            stored.Hash,
		Tamano:          stored.Size,
		Usuario:         input.Actor.Username,
		Observaciones:   strings.TrimSpace(input.Observaciones),
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return ports.DocumentoLegajo{}, err
	}
	if err := s.recomputeArchivosTx(ctx, detail.Legajo.ID); err != nil {
		return ports.DocumentoLegajo{}, err
	}

	// A pending RENAPER subsanación is answered with the uploaded file.
	if detail.Renaper.Estado == domain.RenaperSubsanar {
		r := detail.Renaper
		r.Archivo = stored.Path
		if err := s.repo.UpdateValidacionRenaper(ctx, r); err != nil {
			return ports.DocumentoLegajo{}, err
		}
	}

	return doc, s.appendAuditTx(ctx, input.Actor, "documento.upload", "legajo", detail.Legajo.ID, map[string]any{
		"tipo_documento_id": tipo.ID,
		"tipo":              tipo.Nombre,
		"hash":              stored.Hash,
		"tamano":            stored.Size,
	})
}

func (s *Service) requiredTiposTx(ctx context.Context) ([]uint64, error) {
	tipos, err := s.repo.ListTiposDocumento(ctx, true)
	if err != nil {
		return nil, err
	}
	required := make([]uint64, 0, len(tipos))
	for _, t := range tipos {
		if t.Requerido {
			required = append(required, t.ID)
		}
	}
	return required, nil
}

func (s *Service) recomputeArchivosTx(ctx context.Context, legajoID uint64) error {
	required, err := s.requiredTiposTx(ctx)
	if err != nil {
		return err
	}

	docs, err := s.repo.ListDocumentos(ctx, legajoID)
	if err != nil {
		return err
	}
	uploaded := make([]uint64, 0, len(docs))
	for _, d := range docs {
		uploaded = append(uploaded, d.TipoDocumentoID)
	}
	return s.repo.SetLegajoArchivos(ctx, legajoID, len(docs) > 0, domain.ArchivosOK(required, uploaded))
}

// discardOrphan removes a stored file once no documento points at it.
func (s *Service) discardOrphan(ctx context.Context, path string) {
	if s.files == nil || path == "" {
		return
	}
	refs, err := s.repo.CountDocumentosByArchivo(ctx, path)
	if err != nil || refs > 0 {
		return
	}
	if err := s.files.Delete(ctx, path); err != nil {
		logging.Warn(ctx, "delete stored file failed", slog.String("path", path), slog.Any("err", errs.Loggable(err)))
	}
}
