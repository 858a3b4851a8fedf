package celiaquia

import (
	"context"

	"celiaquia/internal/ports"
)

// ExpedienteView is an expediente with its state history.
type ExpedienteView struct {
	Expediente ports.Expediente
	Historial  []ports.EstadoHistorial
}

func (s *Service) GetExpediente(ctx context.Context, id uint64) (ExpedienteView, error) {
	if err := s.ready(ctx); err != nil {
		return ExpedienteView{}, err
	}
	exp, err := s.repo.GetExpediente(ctx, id)
	if err != nil {
		return ExpedienteView{}, err
	}
	historial, err := s.repo.ListEstadoHistorial(ctx, id)
	if err != nil {
		return ExpedienteView{}, err
	}
	return ExpedienteView{Expediente: exp, Historial: historial}, nil
}

func (s *Service) ListExpedientes(ctx context.Context, filter ports.ExpedienteFilter) ([]ports.Expediente, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListExpedientes(ctx, filter)
}

func (s *Service) GetLegajo(ctx context.Context, id uint64) (ports.LegajoDetail, error) {
	if err := s.ready(ctx); err != nil {
		return ports.LegajoDetail{}, err
	}
	return s.repo.GetLegajoDetail(ctx, id)
}

func (s *Service) ListLegajos(ctx context.Context, filter ports.LegajoFilter) ([]ports.LegajoDetail, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListLegajos(ctx, filter)
}

func (s *Service) ListAsignaciones(ctx context.Context, legajoID uint64) ([]ports.Asignacion, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListAsignaciones(ctx, legajoID)
}

func (s *Service) ListAudit(ctx context.Context, filter ports.AuditFilter) ([]ports.AuditEvent, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListAudit(ctx, filter)
}

// QueueDepth reports how many items of a kind sit in each status.
func (s *Service) QueueDepth(ctx context.Context, kind string) (map[string]int64, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	out := make(map[string]int64, 3)
	for _, status := range []string{ports.WorkStatusPending, ports.WorkStatusDone, ports.WorkStatusDead} {
		n, err := s.repo.CountWork(ctx, kind, status)
		if err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, nil
}
