package celiaquia

import (
	"context"
	"errors"
	"testing"

	domain "celiaquia/internal/domain/celiaquia"
	"celiaquia/internal/ports"
)

func TestReprocessRegistroRecoversRowOnce(t *testing.T) {
	h := setupService(t)
	ctx := context.Background()

	imported := importRows(t, h, row(2, "30111222", "Pérez", "31/02/1980", ""))
	expID := imported.Expediente.ID
	mustEstado(t, h, expID, domain.ExpedienteIniciada)

	erroneos, err := h.svc.ListErroneos(ctx, expID, true)
	if err != nil {
		t.Fatalf("ListErroneos() error = %v", err)
	}
	if len(erroneos) != 1 || erroneos[0].Campo != domain.ColFechaNacimiento {
		t.Fatalf("registros = %+v", erroneos)
	}
	regID := erroneos[0].ID

	still, err := h.svc.ReprocessRegistro(ctx, ReprocessInput{
		RegistroID: regID,
		Datos:      map[string]string{domain.ColFechaNacimiento: "sin fecha"},
		Actor:      actorProvincia,
	})
	var rowErr *domain.RowError
	if !errors.As(err, &rowErr) || !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("still invalid error = %v", err)
	}
	if still.Registro.Procesado || still.Registro.Datos[domain.ColFechaNacimiento] != "sin fecha" {
		t.Fatalf("registro after failed reprocess = %+v", still.Registro)
	}

	fixed, err := h.svc.ReprocessRegistro(ctx, ReprocessInput{
		RegistroID: regID,
		Datos:      map[string]string{domain.ColFechaNacimiento: "15/03/1980"},
		Actor:      actorProvincia,
	})
	if err != nil {
		t.Fatalf("ReprocessRegistro() error = %v", err)
	}
	if fixed.Legajo == nil || fixed.Legajo.Documento != "30111222" {
		t.Fatalf("legajo = %+v", fixed.Legajo)
	}
	if !fixed.Registro.Procesado || fixed.Registro.LegajoID == nil || *fixed.Registro.LegajoID != fixed.Legajo.ID {
		t.Fatalf("registro = %+v", fixed.Registro)
	}

	exp := mustEstado(t, h, expID, domain.ExpedienteImportado)
	if exp.Counters.Validos != 1 || exp.Counters.Erroneos != 0 {
		t.Fatalf("counters = %+v", exp.Counters)
	}

	again, err := h.svc.ReprocessRegistro(ctx, ReprocessInput{RegistroID: regID, Actor: actorProvincia})
	if err != nil {
		t.Fatalf("second ReprocessRegistro() error = %v", err)
	}
	if !again.AlreadyProcessed {
		t.Fatalf("second reprocess should report AlreadyProcessed")
	}
	legajos, err := h.svc.ListLegajos(ctx, ports.LegajoFilter{ExpedienteID: expID})
	if err != nil {
		t.Fatalf("ListLegajos() error = %v", err)
	}
	if len(legajos) != 1 {
		t.Fatalf("legajos = %d, want 1", len(legajos))
	}
}

func TestReprocessRegistroResolvesExistingResponsable(t *testing.T) {
	h := setupService(t)
	ctx := context.Background()

	imported := importRows(t, h,
		row(2, "30111222", "Madre", "15/03/1980", ""),
		row(3, "50000001", "Menor", "10/10/2015", "30111999"),
	)
	expID := imported.Expediente.ID
	if len(imported.Erroneos) != 1 || imported.Erroneos[0].Mensaje != domain.MsgResponsableInexistente {
		t.Fatalf("erroneos = %+v", imported.Erroneos)
	}

	erroneos, err := h.svc.ListErroneos(ctx, expID, true)
	if err != nil {
		t.Fatalf("ListErroneos() error = %v", err)
	}
	fixed, err := h.svc.ReprocessRegistro(ctx, ReprocessInput{
		RegistroID: erroneos[0].ID,
		Datos:      map[string]string{domain.ColDocumentoResponsable: "30.111.222"},
		Actor:      actorCoordinador,
	})
	if err != nil {
		t.Fatalf("ReprocessRegistro() error = %v", err)
	}

	madre := legajoByDocumento(t, h, expID, "30111222")
	if fixed.Legajo.ResponsableID == nil || *fixed.Legajo.ResponsableID != madre.Legajo.ID {
		t.Fatalf("responsable id = %v, want %d", fixed.Legajo.ResponsableID, madre.Legajo.ID)
	}
}

func TestReprocessRegistroClosedAfterRenaper(t *testing.T) {
	h := setupService(t)
	ctx := context.Background()

	imported := importRows(t, h,
		row(2, "30111222", "Pérez", "15/03/1980", ""),
		row(3, "30111333", "Gómez", "no es fecha", ""),
	)
	expID := imported.Expediente.ID
	if _, err := h.svc.RunRenaper(ctx, expID); err != nil {
		t.Fatalf("RunRenaper() error = %v", err)
	}
	mustEstado(t, h, expID, domain.ExpedienteValidado)

	erroneos, err := h.svc.ListErroneos(ctx, expID, true)
	if err != nil {
		t.Fatalf("ListErroneos() error = %v", err)
	}
	_, err = h.svc.ReprocessRegistro(ctx, ReprocessInput{
		RegistroID: erroneos[0].ID,
		Datos:      map[string]string{domain.ColFechaNacimiento: "01/01/1975"},
		Actor:      actorProvincia,
	})
	if !errors.Is(err, domain.ErrTransitionNotAllowed) {
		t.Fatalf("reprocess after VALIDADO error = %v", err)
	}
}
