package repository

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"

	"celiaquia/internal/domain/celiaquia"
	"celiaquia/internal/errs"
	"celiaquia/internal/infrastructure/persistence/sqlite/model"
	"celiaquia/internal/ports"
)

func (r *Repository) AppendComentario(ctx context.Context, c ports.Comentario) (ports.Comentario, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Comentario{}, err
	}

	row := model.HistorialComentario{
		LegajoID:          c.LegajoID,
		Tipo:              string(c.Tipo),
		Comentario:        c.Comentario,
		Archivo:           c.Archivo,
		Usuario:           c.Usuario,
		EstadoRelacionado: c.EstadoRelacionado,
		CreatedAt:         c.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.Comentario{}, errs.Wrap(err, "insert historial comentario")
	}
	return mapComentario(row), nil
}

func (r *Repository) ListComentarios(ctx context.Context, legajoID uint64) ([]ports.Comentario, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.HistorialComentario
	if err := db.Where("legajo_id = ?", legajoID).
		Order("created_at desc, comentario_id desc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query historial comentarios")
	}

	out := make([]ports.Comentario, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapComentario(row))
	}
	return out, nil
}

func (r *Repository) AppendAudit(ctx context.Context, e ports.AuditEvent) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	payload := e.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return errs.Wrap(err, "marshal audit payload")
	}

	row := model.AuditEvent{
		Actor:     e.Actor,
		Action:    e.Action,
		Entity:    e.Entity,
		EntityID:  e.EntityID,
		Payload:   datatypes.JSON(raw),
		CreatedAt: e.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert audit event")
	}
	return nil
}

func (r *Repository) ListAudit(ctx context.Context, filter ports.AuditFilter) ([]ports.AuditEvent, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.AuditEvent{})
	if filter.Entity != "" {
		query = query.Where("entity = ?", filter.Entity)
	}
	if filter.EntityID != 0 {
		query = query.Where("entity_id = ?", filter.EntityID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []model.AuditEvent
	if err := query.Order("audit_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query audit events")
	}

	out := make([]ports.AuditEvent, 0, len(rows))
	for _, row := range rows {
		payload := map[string]any{}
		if len(row.Payload) > 0 {
			if err := json.Unmarshal(row.Payload, &payload); err != nil {
				return nil, errs.Wrapf(err, "decode audit payload %d", row.AuditID)
			}
		}
		out = append(out, ports.AuditEvent{
			ID:        row.AuditID,
			Actor:     row.Actor,
			Action:    row.Action,
			Entity:    row.Entity,
			EntityID:  row.EntityID,
			Payload:   payload,
			CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}

func mapComentario(row model.HistorialComentario) ports.Comentario {
	return ports.Comentario{
		ID:                row.ComentarioID,
		LegajoID:          row.LegajoID,
		Tipo:              celiaquia.TipoComentario(row.Tipo),
		Comentario:        row.Comentario,
		Archivo:           row.Archivo,
		Usuario:           row.Usuario,
		EstadoRelacionado: row.EstadoRelacionado,
		CreatedAt:         row.CreatedAt,
	}
}
