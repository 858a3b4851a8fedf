package celiaquia

import (
	"testing"
	"time"

	domain "celiaquia/internal/domain/celiaquia"
	"celiaquia/internal/ports"
)

func TestPlanImportOrdersResponsablesFirst(t *testing.T) {
	plan := planImport([]ImportRow{
		row(2, "50000001", "Menor", "10/10/2015", "40000001"),
		row(3, "40000001", "Madre", "05/05/1985", ""),
		row(4, "40000002", "Otra", "01/01/1990", ""),
	}, testNow, nil, nil)

	if len(plan.failures) != 0 {
		t.Fatalf("unexpected failures: %+v", plan.failures)
	}
	if len(plan.valid) != 3 {
		t.Fatalf("valid = %d, want 3", len(plan.valid))
	}
	pos := make(map[string]int, len(plan.valid))
	for i, c := range plan.valid {
		pos[c.Documento] = i
	}
	if pos["40000001"] > pos["50000001"] {
		t.Fatalf("responsable must precede its dependent: %v", pos)
	}
	if !plan.referenced["40000001"] || plan.referenced["40000002"] {
		t.Fatalf("referenced = %v", plan.referenced)
	}
}

func TestPlanImportRejectsDuplicatesAndExisting(t *testing.T) {
	existing := map[string]ports.Legajo{
		"30111333": {ID: 7, Documento: "30111333", FechaNacimiento: time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	plan := planImport([]ImportRow{
		row(2, "30.111.222", "Pérez", "15/03/1980", ""),
		row(3, "30111222", "Pérez", "15/03/1980", ""),
		row(4, "30111333", "Gómez", "01/01/1975", ""),
		row(5, "50000001", "Menor", "10/10/2015", "30111333"),
	}, testNow, existing, nil)

	if len(plan.valid) != 2 {
		t.Fatalf("valid = %d, want 2", len(plan.valid))
	}
	msgs := make(map[int]string, len(plan.failures))
	for _, f := range plan.failures {
		msgs[f.err.Fila] = f.err.Mensaje
	}
	if msgs[3] != msgDocumentoDuplicado {
		t.Fatalf("fila 3 message = %q", msgs[3])
	}
	if msgs[4] != msgDocumentoExistente {
		t.Fatalf("fila 4 message = %q", msgs[4])
	}
	if _, failed := msgs[5]; failed {
		t.Fatalf("dependent of an existing legajo should be valid, got %q", msgs[5])
	}
	if plan.failures[0].raw[domain.ColApellido] != "Pérez" {
		t.Fatalf("failure must keep the raw row, got %v", plan.failures[0].raw)
	}
}

func TestPlanImportDetectsCycles(t *testing.T) {
	plan := planImport([]ImportRow{
		row(2, "40000001", "Uno", "01/01/1980", "40000002"),
		row(3, "40000002", "Dos", "01/01/1980", "40000001"),
	}, testNow, nil, nil)

	if len(plan.valid) != 0 {
		t.Fatalf("valid = %d, want 0", len(plan.valid))
	}
	if len(plan.failures) != 2 {
		t.Fatalf("failures = %d, want 2", len(plan.failures))
	}
	for _, f := range plan.failures {
		if f.err.Mensaje != msgReferenciaCircular {
			t.Fatalf("fila %d message = %q", f.err.Fila, f.err.Mensaje)
		}
	}
}

func TestPlanImportPropagatesFailedResponsable(t *testing.T) {
	plan := planImport([]ImportRow{
		row(2, "40000001", "Joven", "01/01/2010", ""),
		row(3, "50000001", "Menor", "01/01/2015", "40000001"),
		row(4, "50000002", "Otro", "01/01/2016", "99999999"),
	}, testNow, nil, nil)

	if len(plan.valid) != 0 {
		t.Fatalf("valid = %d, want 0", len(plan.valid))
	}
	msgs := make(map[int]string, len(plan.failures))
	for _, f := range plan.failures {
		msgs[f.err.Fila] = f.err.Mensaje
	}
	if msgs[2] != domain.MsgResponsableMenor || msgs[3] != domain.MsgResponsableMenor {
		t.Fatalf("messages = %v", msgs)
	}
	if msgs[4] != domain.MsgResponsableInexistente {
		t.Fatalf("fila 4 message = %q", msgs[4])
	}
}

func TestPlanImportNamesFailedResponsableRow(t *testing.T) {
	plan := planImport([]ImportRow{
		row(2, "30111222", "Padre", "15/03/1980", "99999999"),
		row(3, "50000001", "Menor", "01/01/2015", "30111222"),
	}, testNow, nil, nil)

	if len(plan.valid) != 0 {
		t.Fatalf("valid = %d, want 0", len(plan.valid))
	}
	msgs := make(map[int]string, len(plan.failures))
	for _, f := range plan.failures {
		msgs[f.err.Fila] = f.err.Mensaje
	}
	if msgs[2] != domain.MsgResponsableInexistente {
		t.Fatalf("fila 2 message = %q", msgs[2])
	}
	want := "el responsable (fila 2) no pudo registrarse: " + domain.MsgResponsableInexistente
	if msgs[3] != want {
		t.Fatalf("fila 3 message = %q, want %q", msgs[3], want)
	}
}
