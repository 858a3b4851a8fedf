package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"celiaquia/internal/errs"
	"celiaquia/internal/infrastructure/persistence/sqlite/model"
	"celiaquia/internal/ports"
)

func (r *Repository) CreateRegistrosErroneos(ctx context.Context, rows []ports.RegistroErroneo) error {
	if len(rows) == 0 {
		return nil
	}
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	records := make([]model.RegistroErroneo, 0, len(rows))
	for _, row := range rows {
		raw, err := marshalDatos(row.Datos)
		if err != nil {
			return err
		}
		records = append(records, model.RegistroErroneo{
			ExpedienteID: row.ExpedienteID,
			Fila:         row.Fila,
			Datos:        raw,
			Campo:        row.Campo,
			Mensaje:      row.Mensaje,
			CreatedAt:    row.CreatedAt,
			UpdatedAt:    row.CreatedAt,
		})
	}
	if err := db.CreateInBatches(records, 200).Error; err != nil {
		return errs.Wrap(err, "insert registros erroneos")
	}
	return nil
}

func (r *Repository) GetRegistroErroneo(ctx context.Context, id uint64) (ports.RegistroErroneo, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.RegistroErroneo{}, err
	}

	var row model.RegistroErroneo
	if err := db.Where("registro_id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.RegistroErroneo{}, ports.ErrRegistroNotFound
		}
		return ports.RegistroErroneo{}, errs.Wrap(err, "query registro erroneo")
	}
	return mapRegistro(row)
}

func (r *Repository) ListRegistrosErroneos(ctx context.Context, expedienteID uint64, onlyPending bool) ([]ports.RegistroErroneo, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.RegistroErroneo{}).Where("expediente_id = ?", expedienteID)
	if onlyPending {
		query = query.Where("procesado = ?", false)
	}

	var rows []model.RegistroErroneo
	if err := query.Order("fila asc, registro_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query registros erroneos")
	}

	out := make([]ports.RegistroErroneo, 0, len(rows))
	for _, row := range rows {
		item, err := mapRegistro(row)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func (r *Repository) UpdateRegistroDatos(ctx context.Context, id uint64, datos map[string]string, campo string, mensaje string, at time.Time) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	raw, err := marshalDatos(datos)
	if err != nil {
		return err
	}
	result := db.Model(&model.RegistroErroneo{}).
		Where("registro_id = ? AND procesado = ?", id, false).
		Updates(map[string]any{
			"datos":      raw,
			"campo":      campo,
			"mensaje":    mensaje,
			"updated_at": at,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update registro erroneo")
	}
	if result.RowsAffected == 0 {
		return ports.ErrRegistroNotFound
	}
	return nil
}

func (r *Repository) MarkRegistroProcesado(ctx context.Context, id uint64, legajoID uint64, at time.Time) (bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return false, err
	}

	result := db.Model(&model.RegistroErroneo{}).
		Where("registro_id = ? AND procesado = ?", id, false).
		Updates(map[string]any{
			"procesado":    true,
			"procesado_at": at,
			"legajo_id":    legajoID,
			"updated_at":   at,
		})
	if result.Error != nil {
		return false, errs.Wrap(result.Error, "mark registro procesado")
	}
	return result.RowsAffected == 1, nil
}

func marshalDatos(datos map[string]string) (datatypes.JSON, error) {
	if datos == nil {
		datos = map[string]string{}
	}
	raw, err := json.Marshal(datos)
	if err != nil {
		return nil, errs.Wrap(err, "marshal registro datos")
	}
	return datatypes.JSON(raw), nil
}

func mapRegistro(row model.RegistroErroneo) (ports.RegistroErroneo, error) {
	datos := map[string]string{}
	if len(row.Datos) > 0 {
		if err := json.Unmarshal(row.Datos, &datos); err != nil {
			return ports.RegistroErroneo{}, errs.Wrapf(err, "decode registro %d datos", row.RegistroID)
		}
	}
	return ports.RegistroErroneo{
		ID:           row.RegistroID,
		ExpedienteID: row.ExpedienteID,
		Fila:         row.Fila,
		Datos:        datos,
		Campo:        row.Campo,
		Mensaje:      row.Mensaje,
		Procesado:    row.Procesado,
		ProcesadoAt:  row.ProcesadoAt,
		LegajoID:     row.LegajoID,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}, nil
}
