package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"celiaquia/internal/domain/celiaquia"
	"celiaquia/internal/errs"
	"celiaquia/internal/infrastructure/persistence/sqlite/model"
	"celiaquia/internal/ports"
)

func (r *Repository) CreateExpediente(ctx context.Context, exp ports.Expediente) (ports.Expediente, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Expediente{}, err
	}

	row := model.Expediente{
		Numero:         exp.Numero,
		Provincia:      exp.Provincia,
		Estado:         string(exp.Estado),
		Version:        1,
		UsuarioCreador: exp.UsuarioCreador,
		ArchivoOrigen:  exp.ArchivoOrigen,
		CreatedAt:      exp.CreatedAt,
		UpdatedAt:      exp.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.Expediente{}, errs.Wrap(err, "insert expediente")
	}
	return mapExpediente(row), nil
}

func (r *Repository) GetExpediente(ctx context.Context, id uint64) (ports.Expediente, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Expediente{}, err
	}

	var row model.Expediente
	if err := db.Where("expediente_id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Expediente{}, ports.ErrExpedienteNotFound
		}
		return ports.Expediente{}, errs.Wrap(err, "query expediente")
	}
	return mapExpediente(row), nil
}

func (r *Repository) ListExpedientes(ctx context.Context, filter ports.ExpedienteFilter) ([]ports.Expediente, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.Expediente{})
	if filter.Provincia != "" {
		query = query.Where("provincia = ?", filter.Provincia)
	}
	if filter.Estado != "" {
		query = query.Where("estado = ?", string(filter.Estado))
	}

	var rows []model.Expediente
	if err := query.Order("expediente_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query expedientes")
	}

	items := make([]ports.Expediente, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapExpediente(row))
	}
	return items, nil
}

func (r *Repository) UpdateExpedienteEstado(ctx context.Context, id uint64, expectedVersion int64, estado celiaquia.EstadoExpediente, at time.Time) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.Expediente{}).
		Where("expediente_id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]any{
			"estado":     string(estado),
			"version":    gorm.Expr("version + 1"),
			"updated_at": at,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update expediente estado")
	}
	if result.RowsAffected == 0 {
		return ports.ErrVersionConflict
	}
	return nil
}

func (r *Repository) UpdateExpedienteCounters(ctx context.Context, id uint64, c ports.ExpedienteCounters) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if err := db.Model(&model.Expediente{}).
		Where("expediente_id = ?", id).
		Updates(map[string]any{
			"validos":        c.Validos,
			"erroneos":       c.Erroneos,
			"aprobados":      c.Aprobados,
			"rechazados":     c.Rechazados,
			"en_subsanacion": c.EnSubsanacion,
			"dentro":         c.Dentro,
			"fuera":          c.Fuera,
			"pagados":        c.Pagados,
		}).Error; err != nil {
		return errs.Wrap(err, "update expediente counters")
	}
	return nil
}

func (r *Repository) AppendEstadoHistorial(ctx context.Context, entry ports.EstadoHistorial) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.ExpedienteEstadoHistorial{
		ExpedienteID:   entry.ExpedienteID,
		EstadoAnterior: string(entry.EstadoAnterior),
		EstadoNuevo:    string(entry.EstadoNuevo),
		Usuario:        entry.Usuario,
		Observacion:    entry.Observacion,
		CreatedAt:      entry.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert estado historial")
	}
	return nil
}

func (r *Repository) ListEstadoHistorial(ctx context.Context, expedienteID uint64) ([]ports.EstadoHistorial, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.ExpedienteEstadoHistorial
	if err := db.Where("expediente_id = ?", expedienteID).
		Order("created_at asc, historial_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query estado historial")
	}

	items := make([]ports.EstadoHistorial, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.EstadoHistorial{
			ID:             row.HistorialID,
			ExpedienteID:   row.ExpedienteID,
			EstadoAnterior: celiaquia.EstadoExpediente(row.EstadoAnterior),
			EstadoNuevo:    celiaquia.EstadoExpediente(row.EstadoNuevo),
			Usuario:        row.Usuario,
			Observacion:    row.Observacion,
			CreatedAt:      row.CreatedAt,
		})
	}
	return items, nil
}

func (r *Repository) GateStats(ctx context.Context, expedienteID uint64) (celiaquia.GateStats, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return celiaquia.GateStats{}, err
	}

	stats := celiaquia.GateStats{Revision: make(map[celiaquia.RevisionTecnico]int64)}
	legajos := db.Model(&model.Legajo{}).Where("legajos.expediente_id = ?", expedienteID)

	if err := legajos.Session(&gorm.Session{}).Count(&stats.Legajos).Error; err != nil {
		return stats, errs.Wrap(err, "count legajos")
	}

	if err := legajos.Session(&gorm.Session{}).
		Joins("JOIN validaciones_renaper vr ON vr.legajo_id = legajos.legajo_id").
		Where("(vr.estado_validacion = ? OR (vr.estado_validacion = ? AND vr.usuario = ?))",
			int(celiaquia.RenaperNoValidado), int(celiaquia.RenaperRechazado), celiaquia.SystemActor.Username).
		Count(&stats.RenaperPendientes).Error; err != nil {
		return stats, errs.Wrap(err, "count renaper pendientes")
	}

	if err := legajos.Session(&gorm.Session{}).
		Joins("JOIN cruce_resultados cr ON cr.legajo_id = legajos.legajo_id").
		Where("cr.resultado_sintys = ?", string(celiaquia.SintysSinCruce)).
		Count(&stats.SintysPendientes).Error; err != nil {
		return stats, errs.Wrap(err, "count sintys pendientes")
	}

	if err := legajos.Session(&gorm.Session{}).
		Where("NOT EXISTS (SELECT 1 FROM asignaciones_tecnico a WHERE a.legajo_id = legajos.legajo_id AND a.activa = ?)", true).
		Count(&stats.SinAsignacion).Error; err != nil {
		return stats, errs.Wrap(err, "count legajos sin asignacion")
	}

	type revisionCount struct {
		Revision string
		Total    int64
	}
	var revisions []revisionCount
	if err := legajos.Session(&gorm.Session{}).
		Select("vt.revision_tecnico AS revision, COUNT(*) AS total").
		Joins("JOIN validaciones_tecnicas vt ON vt.legajo_id = legajos.legajo_id").
		Group("vt.revision_tecnico").
		Scan(&revisions).Error; err != nil {
		return stats, errs.Wrap(err, "count revisiones")
	}
	for _, rc := range revisions {
		stats.Revision[celiaquia.RevisionTecnico(rc.Revision)] = rc.Total
	}

	if err := legajos.Session(&gorm.Session{}).
		Joins("JOIN validaciones_tecnicas vt ON vt.legajo_id = legajos.legajo_id").
		Joins("JOIN validaciones_renaper vr ON vr.legajo_id = legajos.legajo_id").
		Joins("JOIN cupo_titulares ct ON ct.legajo_id = legajos.legajo_id").
		Where("vt.revision_tecnico = ? AND vr.estado_validacion = ? AND ct.estado_cupo = ?",
			string(celiaquia.RevisionAprobado), int(celiaquia.RenaperAceptado), string(celiaquia.CupoNoEval)).
		Count(&stats.CupoPendientes).Error; err != nil {
		return stats, errs.Wrap(err, "count cupo pendientes")
	}

	var pago model.PagoExpediente
	err = db.Where("expediente_id = ?", expedienteID).Take(&pago).Error
	switch {
	case err == nil:
		stats.PagoProducido = true
		stats.PagoConfirmado = pago.Estado == ports.PagoEstadoConfirmado
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return stats, errs.Wrap(err, "query pago")
	}

	return stats, nil
}

func (r *Repository) ComputeCounters(ctx context.Context, expedienteID uint64) (ports.ExpedienteCounters, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.ExpedienteCounters{}, err
	}

	var c ports.ExpedienteCounters
	stats, err := r.GateStats(ctx, expedienteID)
	if err != nil {
		return c, err
	}
	c.Validos = stats.Legajos
	c.Aprobados = stats.Revision[celiaquia.RevisionAprobado]
	c.Rechazados = stats.Revision[celiaquia.RevisionRechazado]
	c.EnSubsanacion = stats.Revision[celiaquia.RevisionSubsanar]

	if err := db.Model(&model.RegistroErroneo{}).
		Where("expediente_id = ? AND procesado = ?", expedienteID, false).
		Count(&c.Erroneos).Error; err != nil {
		return c, errs.Wrap(err, "count registros erroneos")
	}

	type cupoCount struct {
		Estado string
		Total  int64
	}
	var cupos []cupoCount
	if err := db.Model(&model.Legajo{}).
		Select("ct.estado_cupo AS estado, COUNT(*) AS total").
		Joins("JOIN cupo_titulares ct ON ct.legajo_id = legajos.legajo_id").
		Where("legajos.expediente_id = ?", expedienteID).
		Group("ct.estado_cupo").
		Scan(&cupos).Error; err != nil {
		return c, errs.Wrap(err, "count cupo")
	}
	for _, cc := range cupos {
		switch celiaquia.EstadoCupo(cc.Estado) {
		case celiaquia.CupoDentro:
			c.Dentro = cc.Total
		case celiaquia.CupoFuera:
			c.Fuera = cc.Total
		}
	}

	if err := db.Model(&model.PagoNomina{}).
		Joins("JOIN pagos_expediente pe ON pe.pago_id = pagos_nomina.pago_id").
		Where("pe.expediente_id = ? AND pagos_nomina.pagado = ?", expedienteID, true).
		Count(&c.Pagados).Error; err != nil {
		return c, errs.Wrap(err, "count pagados")
	}

	return c, nil
}

func mapExpediente(row model.Expediente) ports.Expediente {
	return ports.Expediente{
		ID:             row.ExpedienteID,
		Numero:         row.Numero,
		Provincia:      row.Provincia,
		Estado:         celiaquia.EstadoExpediente(row.Estado),
		Version:        row.Version,
		UsuarioCreador: row.UsuarioCreador,
		ArchivoOrigen:  row.ArchivoOrigen,
		Counters: ports.ExpedienteCounters{
			Validos:       row.Validos,
			Erroneos:      row.Erroneos,
			Aprobados:     row.Aprobados,
			Rechazados:    row.Rechazados,
			EnSubsanacion: row.EnSubsanacion,
			Dentro:        row.Dentro,
			Fuera:         row.Fuera,
			Pagados:       row.Pagados,
		},
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}
