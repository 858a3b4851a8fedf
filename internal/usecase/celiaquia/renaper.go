package celiaquia

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"celiaquia/internal/bootstrap/logging"
	domain "celiaquia/internal/domain/celiaquia"
	"celiaquia/internal/errs"
	"celiaquia/internal/ports"
)

type WorkSummary struct {
	Claimed     int
	Completed   int
	Retried     int
	Dead        int
	Expedientes []uint64
}

func (w *WorkSummary) add(other WorkSummary) {
	w.Claimed += other.Claimed
	w.Completed += other.Completed
	w.Retried += other.Retried
	w.Dead += other.Dead
	seen := make(map[uint64]bool, len(w.Expedientes))
	for _, id := range w.Expedientes {
		seen[id] = true
	}
	for _, id := range other.Expedientes {
		if !seen[id] {
			w.Expedientes = append(w.Expedientes, id)
			seen[id] = true
		}
	}
}

type renaperJob struct {
	item      ports.WorkItem
	detail    ports.LegajoDetail
	result    ports.RenaperResult
	fromCache bool
	skip      bool
}

// RunRenaper queues every unresolved legajo of the expediente and drains the
// queue for it. Calls the registry cannot answer stay queued with backoff.
func (s *Service) RunRenaper(ctx context.Context, expedienteID uint64) (WorkSummary, error) {
	if err := s.ready(ctx); err != nil {
		return WorkSummary{}, err
	}

	pendiente := domain.RenaperNoValidado
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		exp, err := s.repo.GetExpediente(txCtx, expedienteID)
		if err != nil {
			return err
		}
		if exp.Estado.Terminal() {
			return fmt.Errorf("%w: expediente is %s", domain.ErrTransitionNotAllowed, exp.Estado)
		}
		legajos, err := s.repo.ListLegajos(txCtx, ports.LegajoFilter{ExpedienteID: expedienteID, RenaperEstado: &pendiente})
		if err != nil {
			return err
		}
		for _, d := range legajos {
			if err := s.enqueueRenaperTx(txCtx, d.Legajo); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return WorkSummary{}, err
	}

	var total WorkSummary
	for {
		summary, err := s.ProcessRenaperWork(ctx, expedienteID)
		if err != nil {
			return total, err
		}
		total.add(summary)
		if summary.Claimed == 0 {
			break
		}
	}
	return total, nil
}

// ProcessRenaperWork claims one batch of RENAPER work (optionally scoped to an
// expediente), verifies identities off-transaction and records each outcome in
// its own transaction. Touched expedientes are advanced afterwards.
func (s *Service) ProcessRenaperWork(ctx context.Context, expedienteID uint64) (WorkSummary, error) {
	if err := s.ready(ctx); err != nil {
		return WorkSummary{}, err
	}
	if s.renaper == nil {
		return WorkSummary{}, errors.New("renaper client is required")
	}
	logCtx := componentCtx(ctx, "process_renaper_work")

	token := s.newToken()
	items, err := s.repo.ClaimWork(ctx, ports.WorkClaim{
		Kind:         WorkKindRenaper,
		ExpedienteID: expedienteID,
		Limit:        s.opts.WorkBatchSize,
		Now:          s.now(),
		LeaseFor:     s.opts.LeaseFor,
		Token:        token,
	})
	if err != nil {
		return WorkSummary{}, err
	}
	summary := WorkSummary{Claimed: len(items)}
	if len(items) == 0 {
		return summary, nil
	}

	jobs := make([]renaperJob, len(items))
	for i, item := range items {
		jobs[i].item = item
		detail, err := s.repo.GetLegajoDetail(ctx, item.LegajoID)
		if err != nil {
			if errors.Is(err, ports.ErrLegajoNotFound) {
				jobs[i].skip = true
				continue
			}
			return summary, err
		}
		jobs[i].detail = detail
		if detail.Renaper.Estado.Resolved() {
			jobs[i].skip = true
			continue
		}
		if cached, ok := s.getCacheBestEffort(ctx, cacheRenaperKey(detail.Legajo.Documento, detail.Legajo.Sexo)); ok {
			if result, ok := decodeRenaperCache(cached); ok {
				jobs[i].result = result
				jobs[i].fromCache = true
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.RenaperConcurrency)
	for i := range jobs {
		job := &jobs[i]
		if job.skip || job.fromCache {
			continue
		}
		g.Go(func() error {
			l := job.detail.Legajo
			job.result = s.renaper.Verify(gctx, ports.RenaperQuery{
				Documento:       l.Documento,
				Sexo:            l.Sexo,
				Apellido:        l.Apellido,
				Nombre:          l.Nombre,
				FechaNacimiento: l.FechaNacimiento,
			})
			return nil
		})
	}
	_ = g.Wait()

	touched := make(map[uint64]bool)
	for i := range jobs {
		job := &jobs[i]
		jobCtx := logging.WithExpediente(logCtx, job.item.ExpedienteID, job.item.LegajoID)

		if job.skip {
			if err := s.repo.CompleteWork(ctx, job.item.ID, token, s.now()); err != nil && !errors.Is(err, ports.ErrLeaseLost) {
				return summary, err
			}
			summary.Completed++
			s.metrics.WorkProcessed(WorkKindRenaper, ports.WorkStatusDone)
			continue
		}

		if job.result.Outcome == ports.RenaperUnavailable || job.result.Outcome == "" {
			dead := job.item.Attempts >= s.opts.MaxAttempts
			delay := s.opts.Backoff * time.Duration(job.item.Attempts)
			if err := s.repo.RetryWork(ctx, job.item.ID, token, job.result.Detail, s.now().Add(delay), dead); err != nil {
				if errors.Is(err, ports.ErrLeaseLost) {
					continue
				}
				return summary, err
			}
			s.metrics.RenaperOutcome(string(ports.RenaperUnavailable))
			if dead {
				summary.Dead++
				s.metrics.WorkProcessed(WorkKindRenaper, ports.WorkStatusDead)
				logging.Error(jobCtx, "renaper verification abandoned", slog.Int("attempts", job.item.Attempts), slog.String("detail", job.result.Detail))
			} else {
				summary.Retried++
				s.metrics.WorkProcessed(WorkKindRenaper, "retry")
				logging.Warn(jobCtx, "renaper unavailable, retry scheduled", slog.Int("attempts", job.item.Attempts), slog.Duration("delay", delay))
			}
			continue
		}

		recorded, err := s.recordRenaperOutcome(ctx, job.item, token, job.result)
		if err != nil {
			if errors.Is(err, ports.ErrLeaseLost) || errors.Is(err, ports.ErrVersionConflict) {
				logging.Warn(jobCtx, "renaper outcome dropped", slog.Any("err", errs.Loggable(err)))
				continue
			}
			return summary, err
		}
		summary.Completed++
		s.metrics.WorkProcessed(WorkKindRenaper, ports.WorkStatusDone)
		if recorded {
			touched[job.item.ExpedienteID] = true
			s.metrics.RenaperOutcome(string(job.result.Outcome))
			logging.Info(jobCtx, "renaper outcome recorded", slog.String("outcome", string(job.result.Outcome)), slog.Bool("cached", job.fromCache))
		}
		if !job.fromCache {
			l := job.detail.Legajo
			s.setCacheBestEffort(ctx, cacheRenaperKey(l.Documento, l.Sexo), encodeRenaperCache(job.result), s.opts.RenaperCacheTTL)
		}
	}

	for id := range touched {
		summary.Expedientes = append(summary.Expedientes, id)
		s.advanceBestEffort(logCtx, id)
	}
	return summary, nil
}

// recordRenaperOutcome persists a registry verdict unless an operator already
// resolved the legajo, and completes the work item in the same transaction.
func (s *Service) recordRenaperOutcome(ctx context.Context, item ports.WorkItem, token string, result ports.RenaperResult) (bool, error) {
	return ports.InTx(ctx, s.uow, func(txCtx context.Context) (bool, error) {
		detail, err := s.repo.GetLegajoDetail(txCtx, item.LegajoID)
		if err != nil {
			return false, err
		}
		now := s.now()
		if detail.Renaper.Estado.Resolved() {
			return false, s.repo.CompleteWork(txCtx, item.ID, token, now)
		}

		if err := s.repo.TouchLegajo(txCtx, item.LegajoID, detail.Legajo.Version); err != nil {
			return false, err
		}
		estado := result.Outcome.Estado()
		if err := s.repo.UpdateValidacionRenaper(txCtx, ports.ValidacionRenaper{
			LegajoID:   item.LegajoID,
			Estado:     estado,
			Comentario: result.Detail,
			Archivo:    detail.Renaper.Archivo,
			Usuario:    domain.SystemActor.Username,
			ValidadoAt: &now,
		}); err != nil {
			return false, err
		}
		body := "RENAPER: " + estado.Label()
		if d := strings.TrimSpace(result.Detail); d != "" {
			body += " - " + d
		}
		if err := s.appendComentarioTx(txCtx, item.LegajoID, domain.ComentarioRenaperValidacion, body, "", domain.SystemActor.Username, estado.Label()); err != nil {
			return false, err
		}
		if err := s.appendAuditTx(txCtx, domain.SystemActor, "legajo.renaper", "legajo", item.LegajoID, map[string]any{
			"estado":  int(estado),
			"outcome": string(result.Outcome),
		}); err != nil {
			return false, err
		}
		if err := s.refreshCountersTx(txCtx, item.ExpedienteID); err != nil {
			return false, err
		}
		return true, s.repo.CompleteWork(txCtx, item.ID, token, now)
	})
}

// ResolveRenaper records an operator decision on a legajo's identity check,
// overriding whatever the registry answered.
func (s *Service) ResolveRenaper(ctx context.Context, input ResolveRenaperInput) (ports.LegajoDetail, error) {
	if err := s.ready(ctx); err != nil {
		return ports.LegajoDetail{}, err
	}
	if err := requireActor(input.Actor, domain.RoleCoordinador); err != nil {
		return ports.LegajoDetail{}, err
	}
	if _, err := domain.ParseEstadoRenaper(int(input.Estado)); err != nil {
		return ports.LegajoDetail{}, err
	}
	if !input.Estado.Resolved() {
		return ports.LegajoDetail{}, fmt.Errorf("%w: an operator decision must resolve the identity check", domain.ErrValidation)
	}

	detail, err := ports.InTx(ctx, s.uow, func(txCtx context.Context) (ports.LegajoDetail, error) {
		detail, err := s.repo.GetLegajoDetail(txCtx, input.LegajoID)
		if err != nil {
			return ports.LegajoDetail{}, err
		}
		exp, err := s.repo.GetExpediente(txCtx, detail.Legajo.ExpedienteID)
		if err != nil {
			return ports.LegajoDetail{}, err
		}
		if exp.Estado.Terminal() {
			return ports.LegajoDetail{}, fmt.Errorf("%w: expediente is %s", domain.ErrTransitionNotAllowed, exp.Estado)
		}
		if err := s.repo.TouchLegajo(txCtx, input.LegajoID, detail.Legajo.Version); err != nil {
			return ports.LegajoDetail{}, err
		}

		now := s.now()
		if err := s.repo.UpdateValidacionRenaper(txCtx, ports.ValidacionRenaper{
			LegajoID:   input.LegajoID,
			Estado:     input.Estado,
			Comentario: strings.TrimSpace(input.Comentario),
			Archivo:    detail.Renaper.Archivo,
			Usuario:    input.Actor.Username,
			ValidadoAt: &now,
		}); err != nil {
			return ports.LegajoDetail{}, err
		}
		body := "RENAPER resuelto por operador: " + input.Estado.Label()
		if c := strings.TrimSpace(input.Comentario); c != "" {
			body += " - " + c
		}
		if err := s.appendComentarioTx(txCtx, input.LegajoID, domain.ComentarioRenaperValidacion, body, "", input.Actor.Username, input.Estado.Label()); err != nil {
			return ports.LegajoDetail{}, err
		}
		if err := s.appendAuditTx(txCtx, input.Actor, "legajo.renaper_resolve", "legajo", input.LegajoID, map[string]any{
			"from": int(detail.Renaper.Estado),
			"to":   int(input.Estado),
		}); err != nil {
			return ports.LegajoDetail{}, err
		}
		if err := s.refreshCountersTx(txCtx, detail.Legajo.ExpedienteID); err != nil {
			return ports.LegajoDetail{}, err
		}
		return s.repo.GetLegajoDetail(txCtx, input.LegajoID)
	})
	if err != nil {
		return ports.LegajoDetail{}, err
	}

	logCtx := logging.WithExpediente(componentCtx(ctx, "resolve_renaper"), detail.Legajo.ExpedienteID, detail.Legajo.ID)
	logging.Info(logCtx, "renaper resolved by operator", slog.Int("estado", int(input.Estado)), slog.String("actor", input.Actor.Username))
	s.advanceBestEffort(logCtx, detail.Legajo.ExpedienteID)
	return detail, nil
}

func encodeRenaperCache(result ports.RenaperResult) string {
	return string(result.Outcome) + "\n" + result.Detail
}

func decodeRenaperCache(value string) (ports.RenaperResult, bool) {
	outcome, detail, _ := strings.Cut(value, "\n")
	switch ports.RenaperOutcome(outcome) {
	case ports.RenaperAccepted, ports.RenaperRejected, ports.RenaperSubsanar:
		return ports.RenaperResult{Outcome: ports.RenaperOutcome(outcome), Detail: detail}, true
	}
	return ports.RenaperResult{}, false
}
