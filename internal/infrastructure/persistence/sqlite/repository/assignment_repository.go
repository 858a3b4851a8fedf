package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"celiaquia/internal/errs"
	"celiaquia/internal/infrastructure/persistence/sqlite/model"
	"celiaquia/internal/ports"
)

// DeactivateAsignaciones closes every active assignment of the legajo.
func (r *Repository) DeactivateAsignaciones(ctx context.Context, legajoID uint64, at time.Time) (int64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	result := db.Model(&model.AsignacionTecnico{}).
		Where("legajo_id = ? AND activa = ?", legajoID, true).
		Updates(map[string]any{
			"activa":         false,
			"desactivada_at": at,
		})
	if result.Error != nil {
		return 0, errs.Wrap(result.Error, "deactivate asignaciones")
	}
	return result.RowsAffected, nil
}

func (r *Repository) CreateAsignacion(ctx context.Context, a ports.Asignacion) (ports.Asignacion, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Asignacion{}, err
	}

	row := model.AsignacionTecnico{
		Tecnico:      a.Tecnico,
		ExpedienteID: a.ExpedienteID,
		LegajoID:     a.LegajoID,
		Activa:       true,
		AsignadoPor:  a.AsignadoPor,
		CreatedAt:    a.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return ports.Asignacion{}, errs.WithKind(err, errs.KindConflict, "legajo already has an active asignacion")
		}
		return ports.Asignacion{}, errs.Wrap(err, "insert asignacion")
	}
	return mapAsignacion(row), nil
}

func (r *Repository) GetActiveAsignacion(ctx context.Context, legajoID uint64) (ports.Asignacion, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Asignacion{}, err
	}

	var row model.AsignacionTecnico
	if err := db.Where("legajo_id = ? AND activa = ?", legajoID, true).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Asignacion{}, ports.ErrAsignacionNotFound
		}
		return ports.Asignacion{}, errs.Wrap(err, "query active asignacion")
	}
	return mapAsignacion(row), nil
}

func (r *Repository) ListAsignaciones(ctx context.Context, legajoID uint64) ([]ports.Asignacion, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.AsignacionTecnico
	if err := db.Where("legajo_id = ?", legajoID).Order("asignacion_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query asignaciones")
	}

	out := make([]ports.Asignacion, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapAsignacion(row))
	}
	return out, nil
}

func (r *Repository) ListLegajosByTecnico(ctx context.Context, tecnico string) ([]ports.LegajoDetail, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Legajo
	if err := db.Model(&model.Legajo{}).
		Joins("JOIN asignaciones_tecnico a ON a.legajo_id = legajos.legajo_id AND a.activa = ?", true).
		Where("a.tecnico = ?", tecnico).
		Order("legajos.created_at asc, legajos.legajo_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query legajos by tecnico")
	}

	legajos := make([]ports.Legajo, 0, len(rows))
	for _, row := range rows {
		legajos = append(legajos, mapLegajo(row))
	}
	return loadDetails(db, legajos)
}

func (r *Repository) ListUnassignedLegajos(ctx context.Context, expedienteID uint64) ([]ports.Legajo, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Legajo
	if err := db.Model(&model.Legajo{}).
		Where("expediente_id = ?", expedienteID).
		Where("NOT EXISTS (SELECT 1 FROM asignaciones_tecnico a WHERE a.legajo_id = legajos.legajo_id AND a.activa = ?)", true).
		Order("created_at asc, legajo_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query unassigned legajos")
	}

	out := make([]ports.Legajo, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapLegajo(row))
	}
	return out, nil
}

func mapAsignacion(row model.AsignacionTecnico) ports.Asignacion {
	return ports.Asignacion{
		ID:            row.AsignacionID,
		Tecnico:       row.Tecnico,
		ExpedienteID:  row.ExpedienteID,
		LegajoID:      row.LegajoID,
		Activa:        row.Activa,
		AsignadoPor:   row.AsignadoPor,
		CreatedAt:     row.CreatedAt,
		DesactivadaAt: row.DesactivadaAt,
	}
}
