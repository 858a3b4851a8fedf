package celiaquia

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"celiaquia/internal/bootstrap/logging"
	domain "celiaquia/internal/domain/celiaquia"
	"celiaquia/internal/errs"
	"celiaquia/internal/ports"
)

const (
	// WorkKindRenaper is the queue kind of identity verifications.
	WorkKindRenaper = "renaper"

	defaultLeaseFor     = 2 * time.Minute
	defaultBatchSize    = 50
	defaultMaxAttempts  = 10
	defaultBackoff      = 30 * time.Second
	defaultConcurrency  = 4
	maxAdvanceSteps     = 12
	cacheKeyRenaperBase = "renaper"
)

// Deps are the adapters the pipeline runs on. Metrics, Cache and Files are
// optional; the repository and unit of work are not.
type Deps struct {
	Repo    ports.CeliaquiaRepository
	UoW     ports.UnitOfWork
	Cache   ports.Cache
	Renaper ports.RenaperClient
	Sintys  ports.SintysClient
	Files   ports.FileStore
	Metrics ports.PipelineMetrics
}

type Options struct {
	CupoDefaultSize    int64
	MontoUnitario      int64
	RenaperConcurrency int
	RenaperCacheTTL    time.Duration
	WorkBatchSize      int
	MaxAttempts        int
	Backoff            time.Duration
	LeaseFor           time.Duration
	PurgeReplaced      bool
}

type Service struct {
	repo    ports.CeliaquiaRepository
	uow     ports.UnitOfWork
	cache   ports.Cache
	renaper ports.RenaperClient
	sintys  ports.SintysClient
	files   ports.FileStore
	metrics ports.PipelineMetrics
	opts    Options

	now      func() time.Time
	newToken func() string
}

// NewService wires the intake pipeline.
func NewService(deps Deps, opts Options) *Service {
	if opts.RenaperConcurrency <= 0 {
		opts.RenaperConcurrency = defaultConcurrency
	}
	if opts.WorkBatchSize <= 0 {
		opts.WorkBatchSize = defaultBatchSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.LeaseFor <= 0 {
		opts.LeaseFor = defaultLeaseFor
	}

	metrics := deps.Metrics
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}

	return &Service{
		repo:     deps.Repo,
		uow:      deps.UoW,
		cache:    deps.Cache,
		renaper:  deps.Renaper,
		sintys:   deps.Sintys,
		files:    deps.Files,
		metrics:  metrics,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
		newToken: uuid.NewString,
	}
}

type ImportRow struct {
	Fila   int
	Values map[string]string
}

type ImportExpedienteInput struct {
	Numero        string
	Provincia     string
	ArchivoOrigen string
	Rows          []ImportRow
	Actor         domain.Actor
}

type ImportResult struct {
	Expediente ports.Expediente
	Legajos    int
	Erroneos   []domain.RowError
}

type TransitionInput struct {
	ExpedienteID    uint64
	To              domain.EstadoExpediente
	ExpectedVersion int64
	Observacion     string
	Actor           domain.Actor
}

type AssignInput struct {
	LegajoID uint64
	Tecnico  string
	Actor    domain.Actor
}

type BulkAssignInput struct {
	ExpedienteID uint64
	Tecnico      string
	Actor        domain.Actor
}

type ReviewInput struct {
	LegajoID        uint64
	Revision        domain.RevisionTecnico
	Comentario      string
	ExpectedVersion int64
	Actor           domain.Actor
}

type SubsanacionInput struct {
	LegajoID  uint64
	Respuesta string
	Documento *UploadDocumentInput
	Actor     domain.Actor
}

type ResolveRenaperInput struct {
	LegajoID   uint64
	Estado     domain.EstadoRenaper
	Comentario string
	Actor      domain.Actor
}

type UploadDocumentInput struct {
	LegajoID        uint64
	TipoDocumentoID uint64
	Filename        string
	Content         io.Reader
	Observaciones   string
	Actor           domain.Actor
}

type ReplaceDocumentInput struct {
	UploadDocumentInput
	ExpectedVersion int64
}

type CommentInput struct {
	LegajoID   uint64
	Tipo       domain.TipoComentario
	Comentario string
	Archivo    string
	Actor      domain.Actor
}

type SetCupoInput struct {
	Provincia string
	Tamano    int64
	Actor     domain.Actor
}

type ReleaseTitularInput struct {
	LegajoID uint64
	Motivo   string
	Actor    domain.Actor
}

type AcknowledgePaymentInput struct {
	ExpedienteID uint64
	Acuse        string
	Actor        domain.Actor
}

type ReprocessInput struct {
	RegistroID uint64
	Datos      map[string]string
	Actor      domain.Actor
}

func (s *Service) ready(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.repo == nil {
		return errors.New("celiaquia repository is required")
	}
	if s.uow == nil {
		return errors.New("celiaquia unit of work is required")
	}
	return nil
}

func requireActor(actor domain.Actor, roles ...domain.Role) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	if len(roles) == 0 {
		return nil
	}
	for _, role := range roles {
		if actor.Role == role {
			return nil
		}
	}
	return fmt.Errorf("%w: role %q", domain.ErrPermissionDenied, actor.Role)
}

func (s *Service) appendAuditTx(ctx context.Context, actor domain.Actor, action string, entity string, id uint64, payload map[string]any) error {
	return s.repo.AppendAudit(ctx, ports.AuditEvent{
		Actor:     actor.Username,
		Action:    action,
		Entity:    entity,
		EntityID:  id,
		Payload:   payload,
		CreatedAt: s.now(),
	})
}

func (s *Service) appendComentarioTx(ctx context.Context, legajoID uint64, tipo domain.TipoComentario, body string, archivo string, usuario string, estado string) error {
	body = strings.TrimSpace(body)
	if body == "" {
		body = string(tipo)
	}
	_, err := s.repo.AppendComentario(ctx, ports.Comentario{
		LegajoID:          legajoID,
		Tipo:              tipo,
		Comentario:        body,
		Archivo:           archivo,
		Usuario:           usuario,
		EstadoRelacionado: estado,
		CreatedAt:         s.now(),
	})
	return err
}

func (s *Service) refreshCountersTx(ctx context.Context, expedienteID uint64) error {
	counters, err := s.repo.ComputeCounters(ctx, expedienteID)
	if err != nil {
		return err
	}
	return s.repo.UpdateExpedienteCounters(ctx, expedienteID, counters)
}

func (s *Service) setCacheBestEffort(ctx context.Context, key string, value string, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, ttl); err != nil {
		logging.Error(
			ctx,
			"set cache failed",
			slog.String("cache_key", key),
			slog.Any("err", errs.Loggable(err)),
		)
	}
}

func (s *Service) getCacheBestEffort(ctx context.Context, key string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	value, found, err := s.cache.Get(ctx, key)
	if err != nil {
		logging.Warn(ctx, "get cache failed", slog.String("cache_key", key), slog.Any("err", errs.Loggable(err)))
		return "", false
	}
	return value, found
}

func cacheRenaperKey(documento string, sexo string) string {
	return cacheKeyRenaperBase + ":" + documento + ":" + sexo
}

func componentCtx(ctx context.Context, op string) context.Context {
	return logging.WithAttrs(ctx, slog.String("component", "usecase.celiaquia"), slog.String("op", op))
}
