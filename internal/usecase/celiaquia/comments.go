package celiaquia

import (
	"context"
	"fmt"
	"strings"

	domain "celiaquia/internal/domain/celiaquia"
	"celiaquia/internal/ports"
)

// Kinds written by the pipeline itself; users only add free-form notes.
var manualComentarioKinds = map[domain.TipoComentario]bool{
	domain.ComentarioObservacionGeneral: true,
	domain.ComentarioPagoObservacion:    true,
}

func (s *Service) AddComment(ctx context.Context, input CommentInput) (ports.Comentario, error) {
	if err := s.ready(ctx); err != nil {
		return ports.Comentario{}, err
	}
	if err := requireActor(input.Actor); err != nil {
		return ports.Comentario{}, err
	}
	tipo := input.Tipo
	if tipo == "" {
		tipo = domain.ComentarioObservacionGeneral
	}
	tipo, err := domain.ParseTipoComentario(string(tipo))
	if err != nil {
		return ports.Comentario{}, err
	}
	if !manualComentarioKinds[tipo] {
		return ports.Comentario{}, fmt.Errorf("%w: %s entries are written by the pipeline", domain.ErrValidation, tipo)
	}
	body := strings.TrimSpace(input.Comentario)
	if body == "" {
		return ports.Comentario{}, fmt.Errorf("%w: comentario is required", domain.ErrValidation)
	}

	return ports.InTx(ctx, s.uow, func(txCtx context.Context) (ports.Comentario, error) {
		detail, err := s.repo.GetLegajoDetail(txCtx, input.LegajoID)
		if err != nil {
			return ports.Comentario{}, err
		}
		c, err := s.repo.AppendComentario(txCtx, ports.Comentario{
			LegajoID:          detail.Legajo.ID,
			Tipo:              tipo,
			Comentario:        body,
			Archivo:           strings.TrimSpace(input.Archivo),
			Usuario:           input.Actor.Username,
			EstadoRelacionado: string(detail.Validacion.Revision),
			CreatedAt:         s.now(),
		})
		if err != nil {
			return ports.Comentario{}, err
		}
		if err := s.appendAuditTx(txCtx, input.Actor, "legajo.comment", "legajo", detail.Legajo.ID, map[string]any{
			"tipo":          string(tipo),
			"comentario_id": c.ID,
		}); err != nil {
			return ports.Comentario{}, err
		}
		return c, nil
	})
}

// ListComments returns the legajo history newest first.
func (s *Service) ListComments(ctx context.Context, legajoID uint64) ([]ports.Comentario, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetLegajo(ctx, legajoID); err != nil {
		return nil, err
	}
	return s.repo.ListComentarios(ctx, legajoID)
}
