package celiaquia

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	domain "celiaquia/internal/domain/celiaquia"
	"celiaquia/internal/infrastructure/filestore"
	"celiaquia/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "celiaquia/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "celiaquia/internal/infrastructure/persistence/sqlite/uow"
	"celiaquia/internal/infrastructure/registry/renaper"
	"celiaquia/internal/infrastructure/registry/sintys"
	"celiaquia/internal/ports"
)

var testNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

var (
	actorCoordinador = domain.Actor{Username: "coord", Role: domain.RoleCoordinador}
	actorProvincia   = domain.Actor{Username: "prov-salta", Role: domain.RoleProvincia}
	actorTecnico     = domain.Actor{Username: "tec1", Role: domain.RoleTecnico}
)

type testCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newTestCache() *testCache {
	return &testCache{data: make(map[string]string)}
}

func (c *testCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *testCache) Set(_ context.Context, key string, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *testCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	svc     *Service
	repo    *sqliterepo.Repository
	cache   *testCache
	clock   *testClock
	renaper *renaper.MockClient
	sintys  *sintys.MockClient
	files   *filestore.LocalStore
}

func setupService(t *testing.T) *harness {
	t.Helper()
	return setupServiceWithOptions(t, Options{CupoDefaultSize: 10, MontoUnitario: 15000, Backoff: time.Minute})
}

func setupServiceWithOptions(t *testing.T, opts Options) *harness {
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

	files, err := filestore.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}

	h := &harness{
		repo:    sqliterepo.NewRepository(db),
		cache:   newTestCache(),
		clock:   &testClock{now: testNow},
		renaper: renaper.NewMockClient(),
		sintys:  sintys.NewMockClient(),
		files:   files,
	}
	h.svc = NewService(Deps{
		Repo:    h.repo,
		UoW:     sqliteuow.NewUnitOfWork(db),
		Cache:   h.cache,
		Renaper: h.renaper,
		Sintys:  h.sintys,
		Files:   files,
	}, opts)
	h.svc.now = h.clock.Now
	return h
}

func row(fila int, documento string, apellido string, fecha string, responsable string) ImportRow {
	return ImportRow{Fila: fila, Values: map[string]string{
		domain.ColDocumento:            documento,
		domain.ColApellido:             apellido,
		domain.ColNombre:               "Test",
		domain.ColFechaNacimiento:      fecha,
		domain.ColSexo:                 "F",
		domain.ColDocumentoResponsable: responsable,
	}}
}

func importRows(t *testing.T, h *harness, rows ...ImportRow) ImportResult {
	t.Helper()

	result, err := h.svc.ImportExpediente(context.Background(), ImportExpedienteInput{
		Provincia:     "Salta",
		ArchivoOrigen: "nomina.xlsx",
		Rows:          rows,
		Actor:         actorProvincia,
	})
	if err != nil {
		t.Fatalf("ImportExpediente() error = %v", err)
	}
	return result
}

func mustEstado(t *testing.T, h *harness, expedienteID uint64, want domain.EstadoExpediente) ports.Expediente {
	t.Helper()

	view, err := h.svc.GetExpediente(context.Background(), expedienteID)
	if err != nil {
		t.Fatalf("GetExpediente() error = %v", err)
	}
	if view.Expediente.Estado != want {
		t.Fatalf("expediente estado = %s, want %s", view.Expediente.Estado, want)
	}
	return view.Expediente
}

func legajoByDocumento(t *testing.T, h *harness, expedienteID uint64, documento string) ports.LegajoDetail {
	t.Helper()

	legajos, err := h.svc.ListLegajos(context.Background(), ports.LegajoFilter{ExpedienteID: expedienteID})
	if err != nil {
		t.Fatalf("ListLegajos() error = %v", err)
	}
	for _, d := range legajos {
		if d.Legajo.Documento == documento {
			return d
		}
	}
	t.Fatalf("legajo %s not found", documento)
	return ports.LegajoDetail{}
}

// driveToRevision runs RENAPER and SINTYS and assigns every legajo to tec1.
func driveToRevision(t *testing.T, h *harness, expedienteID uint64) {
	t.Helper()
	ctx := context.Background()

	if _, err := h.svc.RunRenaper(ctx, expedienteID); err != nil {
		t.Fatalf("RunRenaper() error = %v", err)
	}
	mustEstado(t, h, expedienteID, domain.ExpedienteValidado)

	if _, err := h.svc.CrossCheckSintys(ctx, expedienteID, actorCoordinador); err != nil {
		t.Fatalf("CrossCheckSintys() error = %v", err)
	}
	mustEstado(t, h, expedienteID, domain.ExpedienteCruzado)

	if _, err := h.svc.BulkAssign(ctx, BulkAssignInput{ExpedienteID: expedienteID, Tecnico: actorTecnico.Username, Actor: actorCoordinador}); err != nil {
		t.Fatalf("BulkAssign() error = %v", err)
	}
	mustEstado(t, h, expedienteID, domain.ExpedienteEnRevisionTecnica)
}

func approveAll(t *testing.T, h *harness, expedienteID uint64) {
	t.Helper()

	legajos, err := h.svc.ListLegajos(context.Background(), ports.LegajoFilter{ExpedienteID: expedienteID})
	if err != nil {
		t.Fatalf("ListLegajos() error = %v", err)
	}
	for _, d := range legajos {
		if _, err := h.svc.ReviewLegajo(context.Background(), ReviewInput{
			LegajoID:   d.Legajo.ID,
			Revision:   domain.RevisionAprobado,
			Comentario: "documentación completa",
			Actor:      actorTecnico,
		}); err != nil {
			t.Fatalf("ReviewLegajo(%s) error = %v", d.Legajo.Documento, err)
		}
	}
}
