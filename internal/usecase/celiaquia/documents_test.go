package celiaquia

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "celiaquia/internal/domain/celiaquia"
	"celiaquia/internal/errs"
	"celiaquia/internal/ports"
)

func upload(legajoID, tipoID uint64, body string) UploadDocumentInput {
	return UploadDocumentInput{
		LegajoID:        legajoID,
		TipoDocumentoID: tipoID,
		Filename:        "adjunto.pdf",
		Content:         strings.NewReader(body),
		Actor:           actorProvincia,
	}
}

func TestDocumentosRecomputeArchivosOK(t *testing.T) {
	h := setupService(t)
	ctx := context.Background()

	imported := importRows(t, h, row(2, "30111222", "Pérez", "15/03/1980", ""))
	legajo := legajoByDocumento(t, h, imported.Expediente.ID, "30111222")
	if !legajo.Legajo.ArchivosOK || legajo.Legajo.ArchivosPresentes {
		t.Fatalf("with no required tipos archivos_ok=%v presentes=%v", legajo.Legajo.ArchivosOK, legajo.Legajo.ArchivosPresentes)
	}

	dni, err := h.svc.UpsertTipoDocumento(ctx, ports.TipoDocumento{Nombre: "dni", Requerido: true, Activo: true, Orden: 1}, actorCoordinador)
	if err != nil {
		t.Fatalf("UpsertTipoDocumento() error = %v", err)
	}
	if got := legajoByDocumento(t, h, imported.Expediente.ID, "30111222").Legajo.ArchivosOK; got {
		t.Fatalf("archivos_ok should drop once a required tipo exists")
	}

	if _, err := h.svc.UploadDocumento(ctx, upload(legajo.Legajo.ID, dni.ID, "dni frente y dorso")); err != nil {
		t.Fatalf("UploadDocumento() error = %v", err)
	}
	after := legajoByDocumento(t, h, imported.Expediente.ID, "30111222")
	if !after.Legajo.ArchivosOK || !after.Legajo.ArchivosPresentes {
		t.Fatalf("after upload archivos_ok=%v presentes=%v", after.Legajo.ArchivosOK, after.Legajo.ArchivosPresentes)
	}

	if _, err := h.svc.UpsertTipoDocumento(ctx, ports.TipoDocumento{Nombre: "certificado", Requerido: true, Activo: false}, actorCoordinador); err != nil {
		t.Fatalf("UpsertTipoDocumento(inactive) error = %v", err)
	}
	if got := legajoByDocumento(t, h, imported.Expediente.ID, "30111222").Legajo.ArchivosOK; !got {
		t.Fatalf("inactive tipos must not be required")
	}

	if _, err := h.svc.UpsertTipoDocumento(ctx, ports.TipoDocumento{Nombre: "dni"}, actorTecnico); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("tecnico catalog edit error = %v", err)
	}

	later := importRows(t, h, row(2, "30111444", "Gómez", "01/01/1975", ""))
	fresh := legajoByDocumento(t, h, later.Expediente.ID, "30111444")
	if fresh.Legajo.ArchivosOK || fresh.Legajo.ArchivosPresentes {
		t.Fatalf("legajo imported with dni required: archivos_ok=%v presentes=%v", fresh.Legajo.ArchivosOK, fresh.Legajo.ArchivosPresentes)
	}
}

func TestUploadDocumentoSecondUploadConflicts(t *testing.T) {
	h := setupService(t)
	ctx := context.Background()

	imported := importRows(t, h, row(2, "30111222", "Pérez", "15/03/1980", ""))
	legajo := legajoByDocumento(t, h, imported.Expediente.ID, "30111222")
	tipo, err := h.svc.UpsertTipoDocumento(ctx, ports.TipoDocumento{Nombre: "dni", Requerido: true, Activo: true}, actorCoordinador)
	if err != nil {
		t.Fatalf("UpsertTipoDocumento() error = %v", err)
	}

	first, err := h.svc.UploadDocumento(ctx, upload(legajo.Legajo.ID, tipo.ID, "original"))
	if err != nil {
		t.Fatalf("UploadDocumento() error = %v", err)
	}

	_, err = h.svc.UploadDocumento(ctx, upload(legajo.Legajo.ID, tipo.ID, "otro archivo"))
	if !errors.Is(err, ports.ErrDuplicateDocument) || !errs.IsKind(err, errs.KindConflict) {
		t.Fatalf("second upload error = %v, want duplicate conflict", err)
	}

	docs, err := h.svc.ListDocumentos(ctx, legajo.Legajo.ID)
	if err != nil {
		t.Fatalf("ListDocumentos() error = %v", err)
	}
	if len(docs) != 1 || docs[0].Hash != first.Hash {
		t.Fatalf("documentos = %+v", docs)
	}
	rc, err := h.files.Open(ctx, first.Archivo)
	if err != nil {
		t.Fatalf("original file must survive the rejected upload: %v", err)
	}
	_ = rc.Close()
}

func TestReplaceDocumentoChecksVersionAndPurges(t *testing.T) {
	h := setupServiceWithOptions(t, Options{CupoDefaultSize: 10, MontoUnitario: 15000, Backoff: time.Minute, PurgeReplaced: true})
	ctx := context.Background()

	imported := importRows(t, h, row(2, "30111222", "Pérez", "15/03/1980", ""))
	legajo := legajoByDocumento(t, h, imported.Expediente.ID, "30111222")
	tipo, err := h.svc.UpsertTipoDocumento(ctx, ports.TipoDocumento{Nombre: "dni", Activo: true}, actorCoordinador)
	if err != nil {
		t.Fatalf("UpsertTipoDocumento() error = %v", err)
	}
	first, err := h.svc.UploadDocumento(ctx, upload(legajo.Legajo.ID, tipo.ID, "v1"))
	if err != nil {
		t.Fatalf("UploadDocumento() error = %v", err)
	}

	replaced, err := h.svc.ReplaceDocumento(ctx, ReplaceDocumentInput{
		UploadDocumentInput: upload(legajo.Legajo.ID, tipo.ID, "v2"),
		ExpectedVersion:     first.Version,
	})
	if err != nil {
		t.Fatalf("ReplaceDocumento() error = %v", err)
	}
	if replaced.Version != first.Version+1 || replaced.Hash == first.Hash {
		t.Fatalf("replaced = %+v", replaced)
	}
	if _, err := h.files.Open(ctx, first.Archivo); err == nil {
		t.Fatalf("replaced file should be purged")
	}

	_, err = h.svc.ReplaceDocumento(ctx, ReplaceDocumentInput{
		UploadDocumentInput: upload(legajo.Legajo.ID, tipo.ID, "v3"),
		ExpectedVersion:     first.Version,
	})
	if !errors.Is(err, ports.ErrVersionConflict) {
		t.Fatalf("stale replace error = %v, want version conflict", err)
	}
	current, err := h.svc.ListDocumentos(ctx, legajo.Legajo.ID)
	if err != nil {
		t.Fatalf("ListDocumentos() error = %v", err)
	}
	if len(current) != 1 || current[0].Hash != replaced.Hash {
		t.Fatalf("documentos after stale replace = %+v", current)
	}

	audit, err := h.svc.ListAudit(ctx, ports.AuditFilter{Entity: "legajo", EntityID: legajo.Legajo.ID})
	if err != nil {
		t.Fatalf("ListAudit() error = %v", err)
	}
	var actions []string
	for _, e := range audit {
		actions = append(actions, e.Action)
	}
	if strings.Join(actions, ",") != "documento.upload,documento.replace" {
		t.Fatalf("audit actions = %v", actions)
	}
}

func TestAddCommentOnlyManualKinds(t *testing.T) {
	h := setupService(t)
	ctx := context.Background()

	imported := importRows(t, h, row(2, "30111222", "Pérez", "15/03/1980", ""))
	legajo := legajoByDocumento(t, h, imported.Expediente.ID, "30111222")

	c, err := h.svc.AddComment(ctx, CommentInput{LegajoID: legajo.Legajo.ID, Comentario: "llamar por teléfono", Actor: actorTecnico})
	if err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}
	if c.Tipo != domain.ComentarioObservacionGeneral || c.Usuario != actorTecnico.Username {
		t.Fatalf("comment = %+v", c)
	}

	audit, err := h.svc.ListAudit(ctx, ports.AuditFilter{Entity: "legajo", EntityID: legajo.Legajo.ID})
	if err != nil {
		t.Fatalf("ListAudit() error = %v", err)
	}
	if len(audit) != 1 || audit[0].Action != "legajo.comment" || audit[0].Actor != actorTecnico.Username {
		t.Fatalf("audit = %+v", audit)
	}
	if audit[0].Payload["tipo"] != string(domain.ComentarioObservacionGeneral) {
		t.Fatalf("audit payload = %v", audit[0].Payload)
	}

	_, err = h.svc.AddComment(ctx, CommentInput{LegajoID: legajo.Legajo.ID, Tipo: domain.ComentarioValidacionTecnica, Comentario: "forzado", Actor: actorTecnico})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("system kind error = %v, want validation", err)
	}
	audit, err = h.svc.ListAudit(ctx, ports.AuditFilter{Entity: "legajo", EntityID: legajo.Legajo.ID})
	if err != nil {
		t.Fatalf("ListAudit() error = %v", err)
	}
	if len(audit) != 1 {
		t.Fatalf("rejected comment must not be audited, got %d events", len(audit))
	}
}
