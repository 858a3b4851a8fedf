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

func (r *Repository) GetPagoByExpediente(ctx context.Context, expedienteID uint64) (ports.PagoExpediente, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.PagoExpediente{}, err
	}

	var row model.PagoExpediente
	if err := db.Where("expediente_id = ?", expedienteID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.PagoExpediente{}, ports.ErrPagoNotFound
		}
		return ports.PagoExpediente{}, errs.Wrap(err, "query pago expediente")
	}
	return mapPago(row), nil
}

// CreatePago stores the dispatch header and its nomina; one pago per expediente.
func (r *Repository) CreatePago(ctx context.Context, pago ports.PagoExpediente, nomina []ports.PagoNomina) (ports.PagoExpediente, error) {
	var created ports.PagoExpediente
	err := r.inTx(ctx, func(db *gorm.DB) error {
		row := model.PagoExpediente{
			ExpedienteID:       pago.ExpedienteID,
			Referencia:         pago.Referencia,
			Estado:             pago.Estado,
			TotalBeneficiarios: pago.TotalBeneficiarios,
			MontoTotal:         pago.MontoTotal,
			CreatedAt:          pago.CreatedAt,
		}
		if err := db.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return errs.WithKind(err, errs.KindConflict, "expediente already has a pago")
			}
			return errs.Wrap(err, "insert pago expediente")
		}

		if len(nomina) > 0 {
			rows := make([]model.PagoNomina, 0, len(nomina))
			for _, n := range nomina {
				rows = append(rows, model.PagoNomina{
					PagoID:    row.PagoID,
					LegajoID:  n.LegajoID,
					Documento: n.Documento,
					Titular:   n.Titular,
					Monto:     n.Monto,
				})
			}
			if err := db.CreateInBatches(rows, 200).Error; err != nil {
				return errs.Wrap(err, "insert pago nomina")
			}
		}

		created = mapPago(row)
		return nil
	})
	if err != nil {
		return ports.PagoExpediente{}, err
	}
	return created, nil
}

// ConfirmPago records the acuse once and marks the whole nomina paid.
func (r *Repository) ConfirmPago(ctx context.Context, pagoID uint64, acuse string, at time.Time) error {
	return r.inTx(ctx, func(db *gorm.DB) error {
		result := db.Model(&model.PagoExpediente{}).
			Where("pago_id = ? AND estado = ?", pagoID, ports.PagoEstadoEnviado).
			Updates(map[string]any{
				"estado":           ports.PagoEstadoConfirmado,
				"acuse_referencia": acuse,
				"confirmado_at":    at,
			})
		if result.Error != nil {
			return errs.Wrap(result.Error, "confirm pago")
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := db.Model(&model.PagoExpediente{}).Where("pago_id = ?", pagoID).Count(&count).Error; err != nil {
				return errs.Wrap(err, "count pago")
			}
			if count == 0 {
				return ports.ErrPagoNotFound
			}
			return errs.E(errs.KindConflict, "pago %d already confirmed", pagoID)
		}

		if err := db.Model(&model.PagoNomina{}).
			Where("pago_id = ?", pagoID).
			Update("pagado", true).Error; err != nil {
			return errs.Wrap(err, "mark nomina pagada")
		}
		return nil
	})
}

func (r *Repository) ListNomina(ctx context.Context, pagoID uint64) ([]ports.PagoNomina, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.PagoNomina
	if err := db.Where("pago_id = ?", pagoID).Order("nomina_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query pago nomina")
	}

	out := make([]ports.PagoNomina, 0, len(rows))
	for _, row := range rows {
		out = append(out, ports.PagoNomina{
			ID:        row.NominaID,
			PagoID:    row.PagoID,
			LegajoID:  row.LegajoID,
			Documento: row.Documento,
			Titular:   row.Titular,
			Monto:     row.Monto,
			Pagado:    row.Pagado,
		})
	}
	return out, nil
}

func mapPago(row model.PagoExpediente) ports.PagoExpediente {
	return ports.PagoExpediente{
		ID:                 row.PagoID,
		ExpedienteID:       row.ExpedienteID,
		Referencia:         row.Referencia,
		Estado:             row.Estado,
		TotalBeneficiarios: row.TotalBeneficiarios,
		MontoTotal:         row.MontoTotal,
		AcuseReferencia:    row.AcuseReferencia,
		CreatedAt:          row.CreatedAt,
		ConfirmadoAt:       row.ConfirmadoAt,
	}
}
