package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"celiaquia/internal/errs"
	"celiaquia/internal/infrastructure/persistence/sqlite/model"
	"celiaquia/internal/ports"
)

// UpsertTipoDocumento keys the catalog on nombre.
func (r *Repository) UpsertTipoDocumento(ctx context.Context, tipo ports.TipoDocumento) (ports.TipoDocumento, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.TipoDocumento{}, err
	}

	row := model.TipoDocumento{
		Nombre:      tipo.Nombre,
		Descripcion: tipo.Descripcion,
		Requerido:   tipo.Requerido,
		Orden:       tipo.Orden,
		Activo:      tipo.Activo,
	}
	// Select keeps zero values; activo would otherwise fall back to its column default.
	if err := db.Select("nombre", "descripcion", "requerido", "orden", "activo").Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "nombre"}},
		DoUpdates: clause.AssignmentColumns([]string{"descripcion", "requerido", "orden", "activo"}),
	}).Create(&row).Error; err != nil {
		return ports.TipoDocumento{}, errs.Wrap(err, "upsert tipo documento")
	}

	var stored model.TipoDocumento
	if err := db.Where("nombre = ?", tipo.Nombre).Take(&stored).Error; err != nil {
		return ports.TipoDocumento{}, errs.Wrap(err, "reload tipo documento")
	}
	return mapTipoDocumento(stored), nil
}

func (r *Repository) GetTipoDocumento(ctx context.Context, id uint64) (ports.TipoDocumento, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.TipoDocumento{}, err
	}

	var row model.TipoDocumento
	if err := db.Where("tipo_documento_id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.TipoDocumento{}, ports.ErrTipoDocumentoNotFound
		}
		return ports.TipoDocumento{}, errs.Wrap(err, "query tipo documento")
	}
	return mapTipoDocumento(row), nil
}

func (r *Repository) ListTiposDocumento(ctx context.Context, onlyActive bool) ([]ports.TipoDocumento, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.TipoDocumento{})
	if onlyActive {
		query = query.Where("activo = ?", true)
	}

	var rows []model.TipoDocumento
	if err := query.Order("orden asc, tipo_documento_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query tipos documento")
	}

	out := make([]ports.TipoDocumento, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapTipoDocumento(row))
	}
	return out, nil
}

func (r *Repository) CreateDocumento(ctx context.Context, doc ports.DocumentoLegajo) (ports.DocumentoLegajo, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.DocumentoLegajo{}, err
	}

	row := model.DocumentoLegajo{
		LegajoID:        doc.LegajoID,
		TipoDocumentoID: doc.TipoDocumentoID,
		Archivo:         doc.Archivo,
		Hash:            doc.Hash,
		Tamano:          doc.Tamano,
		Usuario:         doc.Usuario,
		Observaciones:   doc.Observaciones,
		Version:         1,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return ports.DocumentoLegajo{}, ports.ErrDuplicateDocument
		}
		return ports.DocumentoLegajo{}, errs.Wrap(err, "insert documento legajo")
	}
	return mapDocumento(row), nil
}

func (r *Repository) GetDocumento(ctx context.Context, legajoID uint64, tipoID uint64) (ports.DocumentoLegajo, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.DocumentoLegajo{}, err
	}

	var row model.DocumentoLegajo
	if err := db.Where("legajo_id = ? AND tipo_documento_id = ?", legajoID, tipoID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.DocumentoLegajo{}, ports.ErrDocumentoNotFound
		}
		return ports.DocumentoLegajo{}, errs.Wrap(err, "query documento legajo")
	}
	return mapDocumento(row), nil
}

// ReplaceDocumento swaps the stored file of an existing (legajo, tipo) row,
// guarded by the caller's expected version.
func (r *Repository) ReplaceDocumento(ctx context.Context, doc ports.DocumentoLegajo) (ports.DocumentoLegajo, error) {
	var out ports.DocumentoLegajo
	err := r.inTx(ctx, func(db *gorm.DB) error {
		result := db.Model(&model.DocumentoLegajo{}).
			Where("legajo_id = ? AND tipo_documento_id = ? AND version = ?", doc.LegajoID, doc.TipoDocumentoID, doc.Version).
			Updates(map[string]any{
				"archivo":       doc.Archivo,
				"hash":          doc.Hash,
				"tamano":        doc.Tamano,
				"usuario":       doc.Usuario,
				"observaciones": doc.Observaciones,
				"version":       gorm.Expr("version + 1"),
				"updated_at":    doc.UpdatedAt,
			})
		if result.Error != nil {
			return errs.Wrap(result.Error, "replace documento legajo")
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := db.Model(&model.DocumentoLegajo{}).
				Where("legajo_id = ? AND tipo_documento_id = ?", doc.LegajoID, doc.TipoDocumentoID).
				Count(&count).Error; err != nil {
				return errs.Wrap(err, "count documento legajo")
			}
			if count == 0 {
				return ports.ErrDocumentoNotFound
			}
			return ports.ErrVersionConflict
		}

		var row model.DocumentoLegajo
		if err := db.Where("legajo_id = ? AND tipo_documento_id = ?", doc.LegajoID, doc.TipoDocumentoID).Take(&row).Error; err != nil {
			return errs.Wrap(err, "reload documento legajo")
		}
		out = mapDocumento(row)
		return nil
	})
	if err != nil {
		return ports.DocumentoLegajo{}, err
	}
	return out, nil
}

func (r *Repository) ListDocumentos(ctx context.Context, legajoID uint64) ([]ports.DocumentoLegajo, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.DocumentoLegajo
	if err := db.Where("legajo_id = ?", legajoID).Order("tipo_documento_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query documentos legajo")
	}

	out := make([]ports.DocumentoLegajo, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapDocumento(row))
	}
	return out, nil
}

func (r *Repository) CountDocumentosByArchivo(ctx context.Context, archivo string) (int64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Model(&model.DocumentoLegajo{}).Where("archivo = ?", archivo).Count(&count).Error; err != nil {
		return 0, errs.Wrap(err, "count documentos by archivo")
	}
	return count, nil
}

func mapTipoDocumento(row model.TipoDocumento) ports.TipoDocumento {
	return ports.TipoDocumento{
		ID:          row.TipoDocumentoID,
		Nombre:      row.Nombre,
		Descripcion: row.Descripcion,
		Requerido:   row.Requerido,
		Orden:       row.Orden,
		Activo:      row.Activo,
	}
}

func mapDocumento(row model.DocumentoLegajo) ports.DocumentoLegajo {
	return ports.DocumentoLegajo{
		ID:              row.DocumentoID,
		LegajoID:        row.LegajoID,
		TipoDocumentoID: row.TipoDocumentoID,
		Archivo:         row.Archivo,
		Hash:            row.Hash,
		Tamano:          row.Tamano,
		Usuario:         row.Usuario,
		Observaciones:   row.Observaciones,
		Version:         row.Version,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}
