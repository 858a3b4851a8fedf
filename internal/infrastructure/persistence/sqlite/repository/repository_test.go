package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"celiaquia/internal/domain/celiaquia"
	"celiaquia/internal/errs"
	"celiaquia/internal/infrastructure/persistence/sqlite/model"
	"celiaquia/internal/ports"
)

var testNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func setupRepository(t *testing.T) *Repository {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "celiaquia.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return NewRepository(db)
}

func createExpediente(t *testing.T, repo *Repository, provincia string) ports.Expediente {
	t.Helper()

	exp, err := repo.CreateExpediente(context.Background(), ports.Expediente{
		Provincia:      provincia,
		Estado:         celiaquia.ExpedienteIniciada,
		UsuarioCreador: "prov-user",
		CreatedAt:      testNow,
	})
	if err != nil {
		t.Fatalf("CreateExpediente() error = %v", err)
	}
	return exp
}

func createLegajo(t *testing.T, repo *Repository, expedienteID uint64, documento string) ports.Legajo {
	t.Helper()

	legajo, err := repo.CreateLegajo(context.Background(), ports.Legajo{
		ExpedienteID:    expedienteID,
		Documento:       documento,
		Apellido:        "Perez",
		Nombre:          "Ana",
		FechaNacimiento: time.Date(1990, 3, 4, 0, 0, 0, 0, time.UTC),
		Sexo:            "F",
		CreatedAt:       testNow,
	})
	if err != nil {
		t.Fatalf("CreateLegajo(%s) error = %v", documento, err)
	}
	return legajo
}

func TestCreateLegajoSeedsOutcomeRows(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	exp := createExpediente(t, repo, "Salta")

	legajo := createLegajo(t, repo, exp.ID, "30111222")

	detail, err := repo.GetLegajoDetail(ctx, legajo.ID)
	if err != nil {
		t.Fatalf("GetLegajoDetail() error = %v", err)
	}
	if detail.Validacion.Revision != celiaquia.RevisionPendiente {
		t.Fatalf("revision = %q", detail.Validacion.Revision)
	}
	if detail.Renaper.Estado != celiaquia.RenaperNoValidado {
		t.Fatalf("renaper estado = %d", detail.Renaper.Estado)
	}
	if detail.Cruce.Resultado != celiaquia.SintysSinCruce {
		t.Fatalf("cruce = %q", detail.Cruce.Resultado)
	}
	if detail.Cupo.Estado != celiaquia.CupoNoEval || detail.Cupo.Provincia != "Salta" {
		t.Fatalf("cupo = %#v", detail.Cupo)
	}
}

func TestCreateLegajoRejectsDuplicateDocumento(t *testing.T) {
	repo := setupRepository(t)
	exp := createExpediente(t, repo, "Salta")
	createLegajo(t, repo, exp.ID, "30111222")

	_, err := repo.CreateLegajo(context.Background(), ports.Legajo{
		ExpedienteID: exp.ID,
		Documento:    "30111222",
		Apellido:     "Otro",
		Sexo:         "M",
		CreatedAt:    testNow,
	})
	if !errs.IsKind(err, errs.KindConflict) {
		t.Fatalf("CreateLegajo() error = %v, want CONFLICT", err)
	}

	other := createExpediente(t, repo, "Salta")
	createLegajo(t, repo, other.ID, "30111222")
}

func TestUpdateExpedienteEstadoChecksVersion(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	exp := createExpediente(t, repo, "Jujuy")

	if err := repo.UpdateExpedienteEstado(ctx, exp.ID, exp.Version, celiaquia.ExpedienteImportado, testNow); err != nil {
		t.Fatalf("UpdateExpedienteEstado() error = %v", err)
	}
	err := repo.UpdateExpedienteEstado(ctx, exp.ID, exp.Version, celiaquia.ExpedienteValidado, testNow)
	if !errors.Is(err, ports.ErrVersionConflict) {
		t.Fatalf("UpdateExpedienteEstado(stale) error = %v, want ErrVersionConflict", err)
	}

	got, err := repo.GetExpediente(ctx, exp.ID)
	if err != nil {
		t.Fatalf("GetExpediente() error = %v", err)
	}
	if got.Estado != celiaquia.ExpedienteImportado || got.Version != exp.Version+1 {
		t.Fatalf("expediente = %q v%d", got.Estado, got.Version)
	}
}

func TestGateStatsCountsRegistryRejectionAsPending(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	exp := createExpediente(t, repo, "Salta")

	rejected := createLegajo(t, repo, exp.ID, "30111222")
	subsanar := createLegajo(t, repo, exp.ID, "30111223")

	if err := repo.UpdateValidacionRenaper(ctx, ports.ValidacionRenaper{LegajoID: rejected.ID, Estado: celiaquia.RenaperRechazado, Usuario: celiaquia.SystemActor.Username}); err != nil {
		t.Fatalf("UpdateValidacionRenaper(rechazado) error = %v", err)
	}
	if err := repo.UpdateValidacionRenaper(ctx, ports.ValidacionRenaper{LegajoID: subsanar.ID, Estado: celiaquia.RenaperSubsanar, Usuario: celiaquia.SystemActor.Username}); err != nil {
		t.Fatalf("UpdateValidacionRenaper(subsanar) error = %v", err)
	}

	stats, err := repo.GateStats(ctx, exp.ID)
	if err != nil {
		t.Fatalf("GateStats() error = %v", err)
	}
	if stats.RenaperPendientes != 1 {
		t.Fatalf("renaper pendientes = %d, want 1", stats.RenaperPendientes)
	}

	if err := repo.UpdateValidacionRenaper(ctx, ports.ValidacionRenaper{LegajoID: rejected.ID, Estado: celiaquia.RenaperRechazado, Usuario: "coord"}); err != nil {
		t.Fatalf("UpdateValidacionRenaper(operator) error = %v", err)
	}
	stats, err = repo.GateStats(ctx, exp.ID)
	if err != nil {
		t.Fatalf("GateStats() error = %v", err)
	}
	if stats.RenaperPendientes != 0 {
		t.Fatalf("renaper pendientes after operator = %d, want 0", stats.RenaperPendientes)
	}
}

func TestGateStatsAndCounters(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	exp := createExpediente(t, repo, "Salta")

	a := createLegajo(t, repo, exp.ID, "30111222")
	b := createLegajo(t, repo, exp.ID, "30111223")

	if err := repo.UpdateValidacionRenaper(ctx, ports.ValidacionRenaper{LegajoID: a.ID, Estado: celiaquia.RenaperAceptado}); err != nil {
		t.Fatalf("UpdateValidacionRenaper() error = %v", err)
	}
	if err := repo.UpdateValidacionTecnica(ctx, ports.ValidacionTecnica{LegajoID: a.ID, Revision: celiaquia.RevisionAprobado}); err != nil {
		t.Fatalf("UpdateValidacionTecnica() error = %v", err)
	}
	legajoID := b.ID
	if _, err := repo.CreateAsignacion(ctx, ports.Asignacion{
		Tecnico:      "tec1",
		ExpedienteID: exp.ID,
		LegajoID:     &legajoID,
		AsignadoPor:  "coord",
		CreatedAt:    testNow,
	}); err != nil {
		t.Fatalf("CreateAsignacion() error = %v", err)
	}
	if err := repo.CreateRegistrosErroneos(ctx, []ports.RegistroErroneo{{
		ExpedienteID: exp.ID,
		Fila:         4,
		Datos:        map[string]string{"documento": "x"},
		Mensaje:      "documento invalido",
		CreatedAt:    testNow,
	}}); err != nil {
		t.Fatalf("CreateRegistrosErroneos() error = %v", err)
	}

	stats, err := repo.GateStats(ctx, exp.ID)
	if err != nil {
		t.Fatalf("GateStats() error = %v", err)
	}
	if stats.Legajos != 2 || stats.RenaperPendientes != 1 || stats.SintysPendientes != 2 || stats.SinAsignacion != 1 {
		t.Fatalf("GateStats() = %#v", stats)
	}
	if stats.Revision[celiaquia.RevisionAprobado] != 1 || stats.Revision[celiaquia.RevisionPendiente] != 1 {
		t.Fatalf("GateStats() revision = %#v", stats.Revision)
	}
	if stats.CupoPendientes != 1 {
		t.Fatalf("GateStats() cupo pendientes = %d", stats.CupoPendientes)
	}

	counters, err := repo.ComputeCounters(ctx, exp.ID)
	if err != nil {
		t.Fatalf("ComputeCounters() error = %v", err)
	}
	if counters.Validos != 2 || counters.Erroneos != 1 || counters.Aprobados != 1 {
		t.Fatalf("ComputeCounters() = %#v", counters)
	}
}

func TestSingleActiveAsignacion(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	exp := createExpediente(t, repo, "Salta")
	legajo := createLegajo(t, repo, exp.ID, "30111222")
	legajoID := legajo.ID

	first := ports.Asignacion{Tecnico: "tec1", ExpedienteID: exp.ID, LegajoID: &legajoID, AsignadoPor: "coord", CreatedAt: testNow}
	if _, err := repo.CreateAsignacion(ctx, first); err != nil {
		t.Fatalf("CreateAsignacion() error = %v", err)
	}
	second := first
	second.Tecnico = "tec2"
	if _, err := repo.CreateAsignacion(ctx, second); !errs.IsKind(err, errs.KindConflict) {
		t.Fatalf("CreateAsignacion(second) error = %v, want CONFLICT", err)
	}

	closed, err := repo.DeactivateAsignaciones(ctx, legajo.ID, testNow)
	if err != nil || closed != 1 {
		t.Fatalf("DeactivateAsignaciones() = %d, %v", closed, err)
	}
	if _, err := repo.CreateAsignacion(ctx, second); err != nil {
		t.Fatalf("CreateAsignacion(after deactivate) error = %v", err)
	}

	active, err := repo.GetActiveAsignacion(ctx, legajo.ID)
	if err != nil {
		t.Fatalf("GetActiveAsignacion() error = %v", err)
	}
	if active.Tecnico != "tec2" {
		t.Fatalf("active tecnico = %q", active.Tecnico)
	}

	mine, err := repo.ListLegajosByTecnico(ctx, "tec2")
	if err != nil {
		t.Fatalf("ListLegajosByTecnico() error = %v", err)
	}
	if len(mine) != 1 || mine[0].Legajo.ID != legajo.ID {
		t.Fatalf("ListLegajosByTecnico() = %#v", mine)
	}
}

func TestTryReserveSlotStopsAtSize(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	if _, err := repo.EnsureCupoProvincia(ctx, "Salta", 2); err != nil {
		t.Fatalf("EnsureCupoProvincia() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		ok, err := repo.TryReserveSlot(ctx, "Salta")
		if err != nil || !ok {
			t.Fatalf("TryReserveSlot(%d) = %v, %v", i, ok, err)
		}
	}
	ok, err := repo.TryReserveSlot(ctx, "Salta")
	if err != nil {
		t.Fatalf("TryReserveSlot() error = %v", err)
	}
	if ok {
		t.Fatalf("TryReserveSlot() expected full cupo")
	}

	if err := repo.ReleaseSlot(ctx, "Salta"); err != nil {
		t.Fatalf("ReleaseSlot() error = %v", err)
	}
	cupo, err := repo.EnsureCupoProvincia(ctx, "Salta", 10)
	if err != nil {
		t.Fatalf("EnsureCupoProvincia() error = %v", err)
	}
	if cupo.Tamano != 2 || cupo.Activos != 1 {
		t.Fatalf("cupo = %#v", cupo)
	}

	resized, err := repo.SetCupoSize(ctx, "Salta", 5)
	if err != nil {
		t.Fatalf("SetCupoSize() error = %v", err)
	}
	if resized.Tamano != 5 || resized.Activos != 1 {
		t.Fatalf("resized = %#v", resized)
	}
}

func TestDocumentoUniquePerTipo(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	exp := createExpediente(t, repo, "Salta")
	legajo := createLegajo(t, repo, exp.ID, "30111222")

	tipo, err := repo.UpsertTipoDocumento(ctx, ports.TipoDocumento{Nombre: "DNI", Requerido: true, Activo: true})
	if err != nil {
		t.Fatalf("UpsertTipoDocumento() error = %v", err)
	}
	again, err := repo.UpsertTipoDocumento(ctx, ports.TipoDocumento{Nombre: "DNI", Descripcion: "frente y dorso", Requerido: true, Activo: true})
	if err != nil {
		t.Fatalf("UpsertTipoDocumento(again) error = %v", err)
	}
	if again.ID != tipo.ID || again.Descripcion != "frente y dorso" {
		t.Fatalf("UpsertTipoDocumento(again) = %#v", again)
	}

	doc := ports.DocumentoLegajo{LegajoID: legajo.ID, TipoDocumentoID: tipo.ID, Archivo: "a/b", Hash: "h1", Usuario: "prov", CreatedAt: testNow}
	created, err := repo.CreateDocumento(ctx, doc)
	if err != nil {
		t.Fatalf("CreateDocumento() error = %v", err)
	}
	if _, err := repo.CreateDocumento(ctx, doc); !errors.Is(err, ports.ErrDuplicateDocument) {
		t.Fatalf("CreateDocumento(dup) error = %v, want ErrDuplicateDocument", err)
	}

	created.Hash = "h2"
	created.UpdatedAt = testNow.Add(time.Hour)
	replaced, err := repo.ReplaceDocumento(ctx, created)
	if err != nil {
		t.Fatalf("ReplaceDocumento() error = %v", err)
	}
	if replaced.Hash != "h2" || replaced.Version != 2 {
		t.Fatalf("ReplaceDocumento() = %#v", replaced)
	}
	if _, err := repo.ReplaceDocumento(ctx, created); !errors.Is(err, ports.ErrVersionConflict) {
		t.Fatalf("ReplaceDocumento(stale) error = %v, want ErrVersionConflict", err)
	}
}

func TestListComentariosNewestFirst(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	exp := createExpediente(t, repo, "Salta")
	legajo := createLegajo(t, repo, exp.ID, "30111222")

	for i, tipo := range []celiaquia.TipoComentario{
		celiaquia.ComentarioSubsanacionMotivo,
		celiaquia.ComentarioSubsanacionRespuesta,
		celiaquia.ComentarioValidacionTecnica,
	} {
		if _, err := repo.AppendComentario(ctx, ports.Comentario{
			LegajoID:   legajo.ID,
			Tipo:       tipo,
			Comentario: "c",
			Usuario:    "u",
			CreatedAt:  testNow.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("AppendComentario() error = %v", err)
		}
	}

	items, err := repo.ListComentarios(ctx, legajo.ID)
	if err != nil {
		t.Fatalf("ListComentarios() error = %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("ListComentarios() len = %d", len(items))
	}
	if items[0].Tipo != celiaquia.ComentarioValidacionTecnica || items[2].Tipo != celiaquia.ComentarioSubsanacionMotivo {
		t.Fatalf("ListComentarios() order = %q, %q, %q", items[0].Tipo, items[1].Tipo, items[2].Tipo)
	}
}

func TestMarkRegistroProcesadoOnce(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	exp := createExpediente(t, repo, "Salta")

	if err := repo.CreateRegistrosErroneos(ctx, []ports.RegistroErroneo{{
		ExpedienteID: exp.ID,
		Fila:         2,
		Datos:        map[string]string{"documento": "30111222", "apellido": ""},
		Campo:        "apellido",
		Mensaje:      "apellido requerido",
		CreatedAt:    testNow,
	}}); err != nil {
		t.Fatalf("CreateRegistrosErroneos() error = %v", err)
	}
	pending, err := repo.ListRegistrosErroneos(ctx, exp.ID, true)
	if err != nil || len(pending) != 1 {
		t.Fatalf("ListRegistrosErroneos() = %#v, %v", pending, err)
	}
	if pending[0].Datos["documento"] != "30111222" {
		t.Fatalf("datos = %#v", pending[0].Datos)
	}

	legajo := createLegajo(t, repo, exp.ID, "30111222")
	ok, err := repo.MarkRegistroProcesado(ctx, pending[0].ID, legajo.ID, testNow)
	if err != nil || !ok {
		t.Fatalf("MarkRegistroProcesado() = %v, %v", ok, err)
	}
	ok, err = repo.MarkRegistroProcesado(ctx, pending[0].ID, legajo.ID, testNow)
	if err != nil || ok {
		t.Fatalf("MarkRegistroProcesado(again) = %v, %v", ok, err)
	}

	pending, err = repo.ListRegistrosErroneos(ctx, exp.ID, true)
	if err != nil || len(pending) != 0 {
		t.Fatalf("ListRegistrosErroneos(pending) = %#v, %v", pending, err)
	}
}

func TestWorkQueueLeaseLifecycle(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	item := ports.WorkItem{Kind: "renaper", Key: "renaper:1", ExpedienteID: 1, LegajoID: 1, AvailableAt: testNow}
	created, err := repo.EnqueueWork(ctx, item)
	if err != nil || !created {
		t.Fatalf("EnqueueWork() = %v, %v", created, err)
	}
	created, err = repo.EnqueueWork(ctx, item)
	if err != nil || created {
		t.Fatalf("EnqueueWork(pending dup) = %v, %v", created, err)
	}

	claimed, err := repo.ClaimWork(ctx, ports.WorkClaim{Kind: "renaper", Limit: 5, Now: testNow, LeaseFor: time.Minute, Token: "w1"})
	if err != nil || len(claimed) != 1 {
		t.Fatalf("ClaimWork() = %#v, %v", claimed, err)
	}
	if claimed[0].Attempts != 1 {
		t.Fatalf("attempts = %d", claimed[0].Attempts)
	}

	again, err := repo.ClaimWork(ctx, ports.WorkClaim{Kind: "renaper", Limit: 5, Now: testNow.Add(30 * time.Second), LeaseFor: time.Minute, Token: "w2"})
	if err != nil || len(again) != 0 {
		t.Fatalf("ClaimWork(leased) = %#v, %v", again, err)
	}

	if err := repo.CompleteWork(ctx, claimed[0].ID, "w2", testNow); !errors.Is(err, ports.ErrLeaseLost) {
		t.Fatalf("CompleteWork(wrong token) error = %v, want ErrLeaseLost", err)
	}
	if err := repo.CompleteWork(ctx, claimed[0].ID, "w1", testNow); err != nil {
		t.Fatalf("CompleteWork() error = %v", err)
	}

	created, err = repo.EnqueueWork(ctx, item)
	if err != nil || !created {
		t.Fatalf("EnqueueWork(re-arm) = %v, %v", created, err)
	}
	pending, err := repo.CountWork(ctx, "renaper", ports.WorkStatusPending)
	if err != nil || pending != 1 {
		t.Fatalf("CountWork() = %d, %v", pending, err)
	}
}

func TestWorkQueueRetryAndDead(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	if _, err := repo.EnqueueWork(ctx, ports.WorkItem{Kind: "renaper", Key: "renaper:9", LegajoID: 9, AvailableAt: testNow}); err != nil {
		t.Fatalf("EnqueueWork() error = %v", err)
	}
	claimed, err := repo.ClaimWork(ctx, ports.WorkClaim{Limit: 1, Now: testNow, LeaseFor: time.Minute, Token: "w1"})
	if err != nil || len(claimed) != 1 {
		t.Fatalf("ClaimWork() = %#v, %v", claimed, err)
	}

	later := testNow.Add(10 * time.Second)
	if err := repo.RetryWork(ctx, claimed[0].ID, "w1", "timeout", later, false); err != nil {
		t.Fatalf("RetryWork() error = %v", err)
	}
	early, err := repo.ClaimWork(ctx, ports.WorkClaim{Limit: 1, Now: testNow.Add(5 * time.Second), LeaseFor: time.Minute, Token: "w2"})
	if err != nil || len(early) != 0 {
		t.Fatalf("ClaimWork(before backoff) = %#v, %v", early, err)
	}
	claimed, err = repo.ClaimWork(ctx, ports.WorkClaim{Limit: 1, Now: later, LeaseFor: time.Minute, Token: "w2"})
	if err != nil || len(claimed) != 1 || claimed[0].Attempts != 2 {
		t.Fatalf("ClaimWork(after backoff) = %#v, %v", claimed, err)
	}

	if err := repo.RetryWork(ctx, claimed[0].ID, "w2", "timeout", later, true); err != nil {
		t.Fatalf("RetryWork(dead) error = %v", err)
	}
	dead, err := repo.CountWork(ctx, "", ports.WorkStatusDead)
	if err != nil || dead != 1 {
		t.Fatalf("CountWork(dead) = %d, %v", dead, err)
	}
}

func TestPagoDispatchAndConfirm(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	exp := createExpediente(t, repo, "Salta")
	legajo := createLegajo(t, repo, exp.ID, "30111222")

	pago, err := repo.CreatePago(ctx, ports.PagoExpediente{
		ExpedienteID:       exp.ID,
		Referencia:         "ref-1",
		Estado:             ports.PagoEstadoEnviado,
		TotalBeneficiarios: 1,
		MontoTotal:         1000,
		CreatedAt:          testNow,
	}, []ports.PagoNomina{{LegajoID: legajo.ID, Documento: legajo.Documento, Titular: "Perez, Ana", Monto: 1000}})
	if err != nil {
		t.Fatalf("CreatePago() error = %v", err)
	}

	if _, err := repo.CreatePago(ctx, ports.PagoExpediente{ExpedienteID: exp.ID, Referencia: "ref-2", Estado: ports.PagoEstadoEnviado, CreatedAt: testNow}, nil); !errs.IsKind(err, errs.KindConflict) {
		t.Fatalf("CreatePago(second) error = %v, want CONFLICT", err)
	}

	if err := repo.ConfirmPago(ctx, pago.ID, "acuse-1", testNow); err != nil {
		t.Fatalf("ConfirmPago() error = %v", err)
	}
	if err := repo.ConfirmPago(ctx, pago.ID, "acuse-2", testNow); !errs.IsKind(err, errs.KindConflict) {
		t.Fatalf("ConfirmPago(again) error = %v, want CONFLICT", err)
	}

	nomina, err := repo.ListNomina(ctx, pago.ID)
	if err != nil || len(nomina) != 1 || !nomina[0].Pagado {
		t.Fatalf("ListNomina() = %#v, %v", nomina, err)
	}
	stats, err := repo.GateStats(ctx, exp.ID)
	if err != nil {
		t.Fatalf("GateStats() error = %v", err)
	}
	if !stats.PagoProducido || !stats.PagoConfirmado {
		t.Fatalf("GateStats() pago = %v/%v", stats.PagoProducido, stats.PagoConfirmado)
	}
}
