package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"celiaquia/internal/domain/celiaquia"
	"celiaquia/internal/errs"
	"celiaquia/internal/infrastructure/persistence/sqlite/model"
	"celiaquia/internal/ports"
)

func (r *Repository) CreateLegajo(ctx context.Context, legajo ports.Legajo) (ports.Legajo, error) {
	var created ports.Legajo
	err := r.inTx(ctx, func(db *gorm.DB) error {
		var exp model.Expediente
		if err := db.Select("expediente_id", "provincia").Where("expediente_id = ?", legajo.ExpedienteID).Take(&exp).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ports.ErrExpedienteNotFound
			}
			return errs.Wrap(err, "query expediente")
		}

		row := model.Legajo{
			ExpedienteID:      legajo.ExpedienteID,
			Documento:         legajo.Documento,
			Apellido:          legajo.Apellido,
			Nombre:            legajo.Nombre,
			FechaNacimiento:   legajo.FechaNacimiento,
			Sexo:              legajo.Sexo,
			Calle:             legajo.Calle,
			Altura:            legajo.Altura,
			Localidad:         legajo.Localidad,
			CodigoPostal:      legajo.CodigoPostal,
			Telefono:          legajo.Telefono,
			Email:             legajo.Email,
			ResponsableID:     legajo.ResponsableID,
			EsResponsable:     legajo.EsResponsable,
			ArchivosPresentes: legajo.ArchivosPresentes,
			ArchivosOK:        legajo.ArchivosOK,
			RegistroErroneoID: legajo.RegistroErroneoID,
			Version:           1,
			CreatedAt:         legajo.CreatedAt,
			UpdatedAt:         legajo.CreatedAt,
		}
		if err := db.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return errs.WithKind(err, errs.KindConflict, "documento already present in expediente")
			}
			return errs.Wrap(err, "insert legajo")
		}

		if err := db.Create(&model.ValidacionTecnica{
			LegajoID:        row.LegajoID,
			RevisionTecnico: string(celiaquia.RevisionPendiente),
		}).Error; err != nil {
			return errs.Wrap(err, "insert validacion tecnica")
		}
		if err := db.Create(&model.CruceResultado{
			LegajoID:        row.LegajoID,
			ResultadoSintys: string(celiaquia.SintysSinCruce),
		}).Error; err != nil {
			return errs.Wrap(err, "insert cruce resultado")
		}
		if err := db.Create(&model.CupoTitular{
			LegajoID:   row.LegajoID,
			EstadoCupo: string(celiaquia.CupoNoEval),
			Provincia:  exp.Provincia,
		}).Error; err != nil {
			return errs.Wrap(err, "insert cupo titular")
		}
		if err := db.Create(&model.ValidacionRenaper{
			LegajoID:         row.LegajoID,
			EstadoValidacion: int(celiaquia.RenaperNoValidado),
		}).Error; err != nil {
			return errs.Wrap(err, "insert validacion renaper")
		}

		created = mapLegajo(row)
		return nil
	})
	if err != nil {
		return ports.Legajo{}, err
	}
	return created, nil
}

func (r *Repository) GetLegajo(ctx context.Context, id uint64) (ports.Legajo, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Legajo{}, err
	}

	var row model.Legajo
	if err := db.Where("legajo_id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Legajo{}, ports.ErrLegajoNotFound
		}
		return ports.Legajo{}, errs.Wrap(err, "query legajo")
	}
	return mapLegajo(row), nil
}

func (r *Repository) FindLegajoByDocumento(ctx context.Context, expedienteID uint64, documento string) (ports.Legajo, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Legajo{}, err
	}

	var row model.Legajo
	if err := db.Where("expediente_id = ? AND documento = ?", expedienteID, documento).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Legajo{}, ports.ErrLegajoNotFound
		}
		return ports.Legajo{}, errs.Wrap(err, "query legajo by documento")
	}
	return mapLegajo(row), nil
}

func (r *Repository) GetLegajoDetail(ctx context.Context, id uint64) (ports.LegajoDetail, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.LegajoDetail{}, err
	}

	legajo, err := r.GetLegajo(ctx, id)
	if err != nil {
		return ports.LegajoDetail{}, err
	}
	details, err := loadDetails(db, []ports.Legajo{legajo})
	if err != nil {
		return ports.LegajoDetail{}, err
	}
	return details[0], nil
}

func (r *Repository) ListLegajos(ctx context.Context, filter ports.LegajoFilter) ([]ports.LegajoDetail, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.Legajo{})
	if filter.ExpedienteID != 0 {
		query = query.Where("legajos.expediente_id = ?", filter.ExpedienteID)
	}
	if filter.Revision != "" {
		query = query.Where("legajos.legajo_id IN (?)",
			db.Model(&model.ValidacionTecnica{}).Select("legajo_id").Where("revision_tecnico = ?", string(filter.Revision)))
	}
	if filter.RenaperEstado != nil {
		query = query.Where("legajos.legajo_id IN (?)",
			db.Model(&model.ValidacionRenaper{}).Select("legajo_id").Where("estado_validacion = ?", int(*filter.RenaperEstado)))
	}
	if filter.CruceResultado != "" {
		query = query.Where("legajos.legajo_id IN (?)",
			db.Model(&model.CruceResultado{}).Select("legajo_id").Where("resultado_sintys = ?", string(filter.CruceResultado)))
	}
	if filter.CupoEstado != "" {
		query = query.Where("legajos.legajo_id IN (?)",
			db.Model(&model.CupoTitular{}).Select("legajo_id").Where("estado_cupo = ?", string(filter.CupoEstado)))
	}

	var rows []model.Legajo
	if err := query.Order("legajos.created_at asc, legajos.legajo_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query legajos")
	}

	legajos := make([]ports.Legajo, 0, len(rows))
	for _, row := range rows {
		legajos = append(legajos, mapLegajo(row))
	}
	return loadDetails(db, legajos)
}

func (r *Repository) ListLegajoIDs(ctx context.Context) ([]uint64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var ids []uint64
	if err := db.Model(&model.Legajo{}).Order("legajo_id asc").Pluck("legajo_id", &ids).Error; err != nil {
		return nil, errs.Wrap(err, "query legajo ids")
	}
	return ids, nil
}

func (r *Repository) TouchLegajo(ctx context.Context, id uint64, expectedVersion int64) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.Legajo{}).
		Where("legajo_id = ? AND version = ?", id, expectedVersion).
		Update("version", gorm.Expr("version + 1"))
	if result.Error != nil {
		return errs.Wrap(result.Error, "bump legajo version")
	}
	if result.RowsAffected == 0 {
		return ports.ErrVersionConflict
	}
	return nil
}

func (r *Repository) SetLegajoArchivos(ctx context.Context, id uint64, presentes bool, ok bool) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if err := db.Model(&model.Legajo{}).
		Where("legajo_id = ?", id).
		Updates(map[string]any{
			"archivos_presentes": presentes,
			"archivos_ok":        ok,
		}).Error; err != nil {
		return errs.Wrap(err, "update legajo archivos")
	}
	return nil
}

func (r *Repository) UpdateValidacionTecnica(ctx context.Context, v ports.ValidacionTecnica) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if err := db.Model(&model.ValidacionTecnica{}).
		Where("legajo_id = ?", v.LegajoID).
		Updates(map[string]any{
			"revision_tecnico":          string(v.Revision),
			"subsanacion_motivo":        v.SubsanacionMotivo,
			"subsanacion_solicitada_at": v.SubsanacionSolicitada,
			"subsanacion_enviada_at":    v.SubsanacionEnviada,
			"subsanacion_solicitante":   v.SubsanacionSolicitante,
			"revisado_por":              v.RevisadoPor,
			"revisado_at":               v.RevisadoAt,
		}).Error; err != nil {
		return errs.Wrap(err, "update validacion tecnica")
	}
	return nil
}

func (r *Repository) UpdateValidacionRenaper(ctx context.Context, v ports.ValidacionRenaper) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if err := db.Model(&model.ValidacionRenaper{}).
		Where("legajo_id = ?", v.LegajoID).
		Updates(map[string]any{
			"estado_validacion": int(v.Estado),
			"comentario":        v.Comentario,
			"archivo":           v.Archivo,
			"usuario":           v.Usuario,
			"validado_at":       v.ValidadoAt,
		}).Error; err != nil {
		return errs.Wrap(err, "update validacion renaper")
	}
	return nil
}

func (r *Repository) UpdateCruce(ctx context.Context, c ports.CruceResultado) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if err := db.Model(&model.CruceResultado{}).
		Where("legajo_id = ?", c.LegajoID).
		Updates(map[string]any{
			"resultado_sintys": string(c.Resultado),
			"cruce_ok":         c.CruceOK,
			"observacion":      c.Observacion,
			"checked_at":       c.CheckedAt,
		}).Error; err != nil {
		return errs.Wrap(err, "update cruce resultado")
	}
	return nil
}

func (r *Repository) UpdateCupoTitular(ctx context.Context, c ports.CupoTitular) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if err := db.Model(&model.CupoTitular{}).
		Where("legajo_id = ?", c.LegajoID).
		Updates(map[string]any{
			"estado_cupo":       string(c.Estado),
			"es_titular_activo": c.EsTitularActivo,
			"decidido_at":       c.DecididoAt,
		}).Error; err != nil {
		return errs.Wrap(err, "update cupo titular")
	}
	return nil
}

// loadDetails attaches the 1:1 outcome rows to each legajo, preserving order.
func loadDetails(db *gorm.DB, legajos []ports.Legajo) ([]ports.LegajoDetail, error) {
	if len(legajos) == 0 {
		return []ports.LegajoDetail{}, nil
	}

	ids := make([]uint64, 0, len(legajos))
	for _, l := range legajos {
		ids = append(ids, l.ID)
	}

	var vts []model.ValidacionTecnica
	if err := db.Where("legajo_id IN ?", ids).Find(&vts).Error; err != nil {
		return nil, errs.Wrap(err, "query validaciones tecnicas")
	}
	var crs []model.CruceResultado
	if err := db.Where("legajo_id IN ?", ids).Find(&crs).Error; err != nil {
		return nil, errs.Wrap(err, "query cruce resultados")
	}
	var cts []model.CupoTitular
	if err := db.Where("legajo_id IN ?", ids).Find(&cts).Error; err != nil {
		return nil, errs.Wrap(err, "query cupo titulares")
	}
	var vrs []model.ValidacionRenaper
	if err := db.Where("legajo_id IN ?", ids).Find(&vrs).Error; err != nil {
		return nil, errs.Wrap(err, "query validaciones renaper")
	}

	byID := make(map[uint64]*ports.LegajoDetail, len(legajos))
	out := make([]ports.LegajoDetail, len(legajos))
	for i, l := range legajos {
		out[i].Legajo = l
		byID[l.ID] = &out[i]
	}
	for _, v := range vts {
		byID[v.LegajoID].Validacion = ports.ValidacionTecnica{
			LegajoID:               v.LegajoID,
			Revision:               celiaquia.RevisionTecnico(v.RevisionTecnico),
			SubsanacionMotivo:      v.SubsanacionMotivo,
			SubsanacionSolicitada:  v.SubsanacionSolicitada,
			SubsanacionEnviada:     v.SubsanacionEnviada,
			SubsanacionSolicitante: v.SubsanacionSolicitante,
			RevisadoPor:            v.RevisadoPor,
			RevisadoAt:             v.RevisadoAt,
		}
	}
	for _, c := range crs {
		byID[c.LegajoID].Cruce = ports.CruceResultado{
			LegajoID:    c.LegajoID,
			Resultado:   celiaquia.ResultadoSintys(c.ResultadoSintys),
			CruceOK:     c.CruceOK,
			Observacion: c.Observacion,
			CheckedAt:   c.CheckedAt,
		}
	}
	for _, c := range cts {
		byID[c.LegajoID].Cupo = ports.CupoTitular{
			LegajoID:        c.LegajoID,
			Estado:          celiaquia.EstadoCupo(c.EstadoCupo),
			EsTitularActivo: c.EsTitularActivo,
			Provincia:       c.Provincia,
			DecididoAt:      c.DecididoAt,
		}
	}
	for _, v := range vrs {
		byID[v.LegajoID].Renaper = ports.ValidacionRenaper{
			LegajoID:   v.LegajoID,
			Estado:     celiaquia.EstadoRenaper(v.EstadoValidacion),
			Comentario: v.Comentario,
			Archivo:    v.Archivo,
			Usuario:    v.Usuario,
			ValidadoAt: v.ValidadoAt,
		}
	}
	return out, nil
}

func mapLegajo(row model.Legajo) ports.Legajo {
	return ports.Legajo{
		ID:                row.LegajoID,
		ExpedienteID:      row.ExpedienteID,
		Documento:         row.Documento,
		Apellido:          row.Apellido,
		Nombre:            row.Nombre,
		FechaNacimiento:   row.FechaNacimiento,
		Sexo:              row.Sexo,
		Calle:             row.Calle,
		Altura:            row.Altura,
		Localidad:         row.Localidad,
		CodigoPostal:      row.CodigoPostal,
		Telefono:          row.Telefono,
		Email:             row.Email,
		ResponsableID:     row.ResponsableID,
		EsResponsable:     row.EsResponsable,
		ArchivosPresentes: row.ArchivosPresentes,
		ArchivosOK:        row.ArchivosOK,
		RegistroErroneoID: row.RegistroErroneoID,
		Version:           row.Version,
		CreatedAt:         row.CreatedAt,
	}
}
