package celiaquia

import (
	"context"
	"errors"
	"strings"
	"testing"

	domain "celiaquia/internal/domain/celiaquia"
	"celiaquia/internal/ports"
)

func TestImportExpedienteCreatesLegajosAndMovesToImportado(t *testing.T) {
	h := setupService(t)

	result := importRows(t, h,
		row(2, "30.111.222", "Pérez", "15/03/1980", ""),
		row(3, "50000001", "Pérez", "10/10/2015", "30111222"),
		row(4, "", "SinDocumento", "01/01/1980", ""),
	)
	if result.Legajos != 2 {
		t.Fatalf("legajos = %d, want 2", result.Legajos)
	}
	if len(result.Erroneos) != 1 || result.Erroneos[0].Fila != 4 || result.Erroneos[0].Campo != domain.ColDocumento {
		t.Fatalf("erroneos = %+v", result.Erroneos)
	}
	if !strings.HasPrefix(result.Expediente.Numero, "EXP-SALTA-") {
		t.Fatalf("numero = %q", result.Expediente.Numero)
	}

	exp := mustEstado(t, h, result.Expediente.ID, domain.ExpedienteImportado)
	if exp.Counters.Validos != 2 || exp.Counters.Erroneos != 1 {
		t.Fatalf("counters = %+v", exp.Counters)
	}

	view, err := h.svc.GetExpediente(context.Background(), exp.ID)
	if err != nil {
		t.Fatalf("GetExpediente() error = %v", err)
	}
	if len(view.Historial) != 2 {
		t.Fatalf("historial len = %d, want 2", len(view.Historial))
	}
	if view.Historial[0].EstadoAnterior != "" || view.Historial[0].EstadoNuevo != domain.ExpedienteIniciada {
		t.Fatalf("historial[0] = %+v", view.Historial[0])
	}
	if view.Historial[1].EstadoAnterior != domain.ExpedienteIniciada || view.Historial[1].EstadoNuevo != domain.ExpedienteImportado {
		t.Fatalf("historial[1] = %+v", view.Historial[1])
	}

	menor := legajoByDocumento(t, h, exp.ID, "50000001")
	madre := legajoByDocumento(t, h, exp.ID, "30111222")
	if menor.Legajo.ResponsableID == nil || *menor.Legajo.ResponsableID != madre.Legajo.ID {
		t.Fatalf("responsable id = %v, want %d", menor.Legajo.ResponsableID, madre.Legajo.ID)
	}
	if !madre.Legajo.EsResponsable {
		t.Fatalf("madre should be flagged as responsable")
	}
	if menor.Validacion.Revision != domain.RevisionPendiente || menor.Cruce.Resultado != domain.SintysSinCruce || menor.Cupo.Estado != domain.CupoNoEval {
		t.Fatalf("initial outcomes = %+v", menor)
	}

	depth, err := h.svc.QueueDepth(context.Background(), WorkKindRenaper)
	if err != nil {
		t.Fatalf("QueueDepth() error = %v", err)
	}
	if depth[ports.WorkStatusPending] != 2 {
		t.Fatalf("pending renaper work = %d, want 2", depth[ports.WorkStatusPending])
	}
}

func TestImportExpedienteUnderageResponsableFailsBothRows(t *testing.T) {
	h := setupService(t)

	result := importRows(t, h,
		row(2, "40000001", "Joven", "01/01/2010", ""),
		row(3, "50000001", "Menor", "01/01/2015", "40000001"),
	)
	if result.Legajos != 0 {
		t.Fatalf("legajos = %d, want 0", result.Legajos)
	}
	if len(result.Erroneos) != 2 {
		t.Fatalf("erroneos = %+v", result.Erroneos)
	}
	for _, e := range result.Erroneos {
		if !strings.Contains(e.Mensaje, "no puede ser menor de 18 años") {
			t.Fatalf("fila %d message = %q", e.Fila, e.Mensaje)
		}
	}
	exp := mustEstado(t, h, result.Expediente.ID, domain.ExpedienteIniciada)
	if exp.Counters.Validos != 0 || exp.Counters.Erroneos != 2 {
		t.Fatalf("counters = %+v", exp.Counters)
	}

	erroneos, err := h.svc.ListErroneos(context.Background(), exp.ID, true)
	if err != nil {
		t.Fatalf("ListErroneos() error = %v", err)
	}
	if len(erroneos) != 2 || erroneos[0].Datos[domain.ColDocumento] != "40000001" {
		t.Fatalf("registros = %+v", erroneos)
	}
}

func TestImportExpedienteRequiresProvinciaOrCoordinador(t *testing.T) {
	h := setupService(t)

	_, err := h.svc.ImportExpediente(context.Background(), ImportExpedienteInput{
		Provincia: "Salta",
		Rows:      []ImportRow{row(2, "30111222", "Pérez", "15/03/1980", "")},
		Actor:     actorTecnico,
	})
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("ImportExpediente() error = %v, want permission denied", err)
	}

	_, err = h.svc.ImportExpediente(context.Background(), ImportExpedienteInput{
		Provincia: "Salta",
		Actor:     actorProvincia,
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("empty upload error = %v, want validation", err)
	}

	expedientes, err := h.svc.ListExpedientes(context.Background(), ports.ExpedienteFilter{})
	if err != nil {
		t.Fatalf("ListExpedientes() error = %v", err)
	}
	if len(expedientes) != 0 {
		t.Fatalf("rejected imports must not create expedientes, got %d", len(expedientes))
	}
}
