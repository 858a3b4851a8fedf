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

func (r *Repository) EnsureCupoProvincia(ctx context.Context, provincia string, defaultSize int64) (ports.CupoProvincia, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.CupoProvincia{}, err
	}

	row := model.CupoProvincia{Provincia: provincia, Tamano: defaultSize, Version: 1}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return ports.CupoProvincia{}, errs.Wrap(err, "ensure cupo provincia")
	}
	return r.getCupo(db, provincia)
}

// SetCupoSize upserts the quota size; callers reject sizes below activos.
func (r *Repository) SetCupoSize(ctx context.Context, provincia string, size int64) (ports.CupoProvincia, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.CupoProvincia{}, err
	}

	row := model.CupoProvincia{Provincia: provincia, Tamano: size, Version: 1}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provincia"}},
		DoUpdates: clause.Assignments(map[string]any{
			"tamano":  size,
			"version": gorm.Expr("cupo_provincias.version + 1"),
		}),
	}).Create(&row).Error; err != nil {
		return ports.CupoProvincia{}, errs.Wrap(err, "set cupo size")
	}
	return r.getCupo(db, provincia)
}

func (r *Repository) TryReserveSlot(ctx context.Context, provincia string) (bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return false, err
	}

	result := db.Model(&model.CupoProvincia{}).
		Where("provincia = ? AND activos < tamano", provincia).
		Updates(map[string]any{
			"activos": gorm.Expr("activos + 1"),
			"version": gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return false, errs.Wrap(result.Error, "reserve cupo slot")
	}
	return result.RowsAffected == 1, nil
}

func (r *Repository) ReleaseSlot(ctx context.Context, provincia string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.CupoProvincia{}).
		Where("provincia = ? AND activos > 0", provincia).
		Updates(map[string]any{
			"activos": gorm.Expr("activos - 1"),
			"version": gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "release cupo slot")
	}
	if result.RowsAffected == 0 {
		return ports.ErrCupoNotFound
	}
	return nil
}

func (r *Repository) CountTitularesActivos(ctx context.Context, provincia string) (int64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Model(&model.CupoTitular{}).
		Where("provincia = ? AND es_titular_activo = ?", provincia, true).
		Count(&count).Error; err != nil {
		return 0, errs.Wrap(err, "count titulares activos")
	}
	return count, nil
}

func (r *Repository) getCupo(db *gorm.DB, provincia string) (ports.CupoProvincia, error) {
	var row model.CupoProvincia
	if err := db.Where("provincia = ?", provincia).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.CupoProvincia{}, ports.ErrCupoNotFound
		}
		return ports.CupoProvincia{}, errs.Wrap(err, "query cupo provincia")
	}
	return ports.CupoProvincia{
		Provincia: row.Provincia,
		Tamano:    row.Tamano,
		Activos:   row.Activos,
		Version:   row.Version,
	}, nil
}
