package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"celiaquia/internal/errs"
	"celiaquia/internal/infrastructure/persistence/sqlite/model"
	"celiaquia/internal/ports"
)

// EnqueueWork inserts a pending item keyed by Key. An existing done or dead
// item is re-armed; a pending one is left alone.
func (r *Repository) EnqueueWork(ctx context.Context, item ports.WorkItem) (bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return false, err
	}

	now := item.AvailableAt
	row := model.WorkItem{
		Kind:         item.Kind,
		Key:          item.Key,
		ExpedienteID: item.ExpedienteID,
		LegajoID:     item.LegajoID,
		Status:       ports.WorkStatusPending,
		AvailableAt:  now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	result := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "work_key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":       ports.WorkStatusPending,
			"attempts":     0,
			"last_error":   "",
			"available_at": now,
			"lease_token":  "",
			"leased_until": nil,
			"updated_at":   now,
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "work_items.status <> ?", Vars: []any{ports.WorkStatusPending}},
		}},
	}).Create(&row)
	if result.Error != nil {
		return false, errs.Wrap(result.Error, "enqueue work item")
	}
	return result.RowsAffected > 0, nil
}

// ClaimWork leases up to Limit due items. Expired leases are claimable again.
func (r *Repository) ClaimWork(ctx context.Context, claim ports.WorkClaim) ([]ports.WorkItem, error) {
	if claim.Limit <= 0 {
		return []ports.WorkItem{}, nil
	}

	var claimed []ports.WorkItem
	err := r.inTx(ctx, func(db *gorm.DB) error {
		query := db.Model(&model.WorkItem{}).
			Where("status = ? AND available_at <= ?", ports.WorkStatusPending, claim.Now).
			Where("(leased_until IS NULL OR leased_until <= ?)", claim.Now)
		if claim.Kind != "" {
			query = query.Where("kind = ?", claim.Kind)
		}
		if claim.ExpedienteID != 0 {
			query = query.Where("expediente_id = ?", claim.ExpedienteID)
		}

		var rows []model.WorkItem
		if err := query.Order("available_at asc, work_item_id asc").Limit(claim.Limit).Find(&rows).Error; err != nil {
			return errs.Wrap(err, "query claimable work")
		}

		leasedUntil := claim.Now.Add(claim.LeaseFor)
		for _, row := range rows {
			result := db.Model(&model.WorkItem{}).
				Where("work_item_id = ? AND lease_token = ?", row.WorkItemID, row.LeaseToken).
				Updates(map[string]any{
					"lease_token":  claim.Token,
					"leased_until": leasedUntil,
					"attempts":     gorm.Expr("attempts + 1"),
					"updated_at":   claim.Now,
				})
			if result.Error != nil {
				return errs.Wrap(result.Error, "lease work item")
			}
			if result.RowsAffected == 0 {
				continue
			}
			row.LeaseToken = claim.Token
			row.LeasedUntil = &leasedUntil
			row.Attempts++
			claimed = append(claimed, mapWorkItem(row))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if claimed == nil {
		claimed = []ports.WorkItem{}
	}
	return claimed, nil
}

func (r *Repository) CompleteWork(ctx context.Context, id uint64, token string, at time.Time) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.WorkItem{}).
		Where("work_item_id = ? AND lease_token = ?", id, token).
		Updates(map[string]any{
			"status":       ports.WorkStatusDone,
			"lease_token":  "",
			"leased_until": nil,
			"last_error":   "",
			"updated_at":   at,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "complete work item")
	}
	if result.RowsAffected == 0 {
		return ports.ErrLeaseLost
	}
	return nil
}

// RetryWork releases the lease and schedules the item again, or parks it as
// dead when dead is set.
func (r *Repository) RetryWork(ctx context.Context, id uint64, token string, lastErr string, availableAt time.Time, dead bool) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	status := ports.WorkStatusPending
	if dead {
		status = ports.WorkStatusDead
	}
	result := db.Model(&model.WorkItem{}).
		Where("work_item_id = ? AND lease_token = ?", id, token).
		Updates(map[string]any{
			"status":       status,
			"lease_token":  "",
			"leased_until": nil,
			"last_error":   lastErr,
			"available_at": availableAt,
			"updated_at":   availableAt,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "retry work item")
	}
	if result.RowsAffected == 0 {
		return ports.ErrLeaseLost
	}
	return nil
}

func (r *Repository) CountWork(ctx context.Context, kind string, status string) (int64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	query := db.Model(&model.WorkItem{})
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, errs.Wrap(err, "count work items")
	}
	return count, nil
}

func mapWorkItem(row model.WorkItem) ports.WorkItem {
	return ports.WorkItem{
		ID:           row.WorkItemID,
		Kind:         row.Kind,
		Key:          row.Key,
		ExpedienteID: row.ExpedienteID,
		LegajoID:     row.LegajoID,
		Status:       row.Status,
		Attempts:     row.Attempts,
		LastError:    row.LastError,
		AvailableAt:  row.AvailableAt,
		LeaseToken:   row.LeaseToken,
		LeasedUntil:  row.LeasedUntil,
	}
}
