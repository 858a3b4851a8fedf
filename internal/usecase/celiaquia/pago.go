package celiaquia

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"celiaquia/internal/bootstrap/logging"
	domain "celiaquia/internal/domain/celiaquia"
	"celiaquia/internal/ports"
)

type PagoResult struct {
	Pago       ports.PagoExpediente
	Nomina     []ports.PagoNomina
	Expediente ports.Expediente
}

// DispatchPayment produces the payment handoff for a CUPO_DECIDIDO expediente:
// one nomina row per active titular, then moves it to ENVIADO_A_PAGO.
func (s *Service) DispatchPayment(ctx context.Context, expedienteID uint64, actor domain.Actor) (PagoResult, error) {
	if err := s.ready(ctx); err != nil {
		return PagoResult{}, err
	}
	if err := requireActor(actor, domain.RoleCoordinador); err != nil {
		return PagoResult{}, err
	}

	var transitioned *appliedTransition
	result, err := ports.InTx(ctx, s.uow, func(txCtx context.Context) (PagoResult, error) {
		exp, err := s.repo.GetExpediente(txCtx, expedienteID)
		if err != nil {
			return PagoResult{}, err
		}
		if exp.Estado != domain.ExpedienteCupoDecidido {
			return PagoResult{}, fmt.Errorf("%w: payment is dispatched from CUPO_DECIDIDO, got %s", domain.ErrTransitionNotAllowed, exp.Estado)
		}
		if _, err := s.repo.GetPagoByExpediente(txCtx, expedienteID); err == nil {
			return PagoResult{}, fmt.Errorf("%w: expediente %d already has a pago", domain.ErrConflict, expedienteID)
		} else if !errors.Is(err, ports.ErrPagoNotFound) {
			return PagoResult{}, err
		}

		titulares, err := s.repo.ListLegajos(txCtx, ports.LegajoFilter{ExpedienteID: expedienteID, CupoEstado: domain.CupoDentro})
		if err != nil {
			return PagoResult{}, err
		}
		nomina := make([]ports.PagoNomina, 0, len(titulares))
		for _, d := range titulares {
			if !d.Cupo.EsTitularActivo {
				continue
			}
			nomina = append(nomina, ports.PagoNomina{
				LegajoID:  d.Legajo.ID,
				Documento: d.Legajo.Documento,
				Titular:   strings.TrimSpace(d.Legajo.Apellido + ", " + d.Legajo.Nombre),
				Monto:     s.opts.MontoUnitario,
			})
		}

		pago, err := s.repo.CreatePago(txCtx, ports.PagoExpediente{
			ExpedienteID:       expedienteID,
			Referencia:         s.newToken(),
			Estado:             ports.PagoEstadoEnviado,
			TotalBeneficiarios: int64(len(nomina)),
			MontoTotal:         s.opts.MontoUnitario * int64(len(nomina)),
			CreatedAt:          s.now(),
		}, nomina)
		if err != nil {
			return PagoResult{}, err
		}

		applied, err := s.applyTransitionTx(txCtx, exp, domain.ExpedienteEnviadoAPago, actor, "pago "+pago.Referencia)
		if err != nil {
			return PagoResult{}, err
		}
		transitioned = &applied
		if err := s.refreshCountersTx(txCtx, expedienteID); err != nil {
			return PagoResult{}, err
		}

		rows, err := s.repo.ListNomina(txCtx, pago.ID)
		if err != nil {
			return PagoResult{}, err
		}
		exp, err = s.repo.GetExpediente(txCtx, expedienteID)
		if err != nil {
			return PagoResult{}, err
		}
		return PagoResult{Pago: pago, Nomina: rows, Expediente: exp}, nil
	})
	if err != nil {
		return PagoResult{}, err
	}

	s.metrics.ExpedienteTransition(string(transitioned.From), string(transitioned.To))
	logging.Info(
		logging.WithExpediente(componentCtx(ctx, "dispatch_payment"), expedienteID, 0),
		"payment dispatched",
		slog.String("referencia", result.Pago.Referencia),
		slog.Int64("beneficiarios", result.Pago.TotalBeneficiarios),
		slog.Int64("monto_total", result.Pago.MontoTotal),
	)
	return result, nil
}

// AcknowledgePayment records the payer's acuse and finalizes the expediente.
func (s *Service) AcknowledgePayment(ctx context.Context, input AcknowledgePaymentInput) (PagoResult, error) {
	if err := s.ready(ctx); err != nil {
		return PagoResult{}, err
	}
	if err := requireActor(input.Actor, domain.RoleCoordinador); err != nil {
		return PagoResult{}, err
	}
	acuse := strings.TrimSpace(input.Acuse)
	if acuse == "" {
		return PagoResult{}, fmt.Errorf("%w: acuse is required", domain.ErrValidation)
	}

	var transitioned *appliedTransition
	result, err := ports.InTx(ctx, s.uow, func(txCtx context.Context) (PagoResult, error) {
		exp, err := s.repo.GetExpediente(txCtx, input.ExpedienteID)
		if err != nil {
			return PagoResult{}, err
		}
		if exp.Estado != domain.ExpedienteEnviadoAPago {
			return PagoResult{}, fmt.Errorf("%w: acknowledgement expects ENVIADO_A_PAGO, got %s", domain.ErrTransitionNotAllowed, exp.Estado)
		}
		pago, err := s.repo.GetPagoByExpediente(txCtx, input.ExpedienteID)
		if err != nil {
			return PagoResult{}, err
		}
		if err := s.repo.ConfirmPago(txCtx, pago.ID, acuse, s.now()); err != nil {
			return PagoResult{}, err
		}

		applied, err := s.applyTransitionTx(txCtx, exp, domain.ExpedienteFinalizado, input.Actor, "acuse "+acuse)
		if err != nil {
			return PagoResult{}, err
		}
		transitioned = &applied
		if err := s.refreshCountersTx(txCtx, input.ExpedienteID); err != nil {
			return PagoResult{}, err
		}

		pago, err = s.repo.GetPagoByExpediente(txCtx, input.ExpedienteID)
		if err != nil {
			return PagoResult{}, err
		}
		rows, err := s.repo.ListNomina(txCtx, pago.ID)
		if err != nil {
			return PagoResult{}, err
		}
		exp, err = s.repo.GetExpediente(txCtx, input.ExpedienteID)
		if err != nil {
			return PagoResult{}, err
		}
		return PagoResult{Pago: pago, Nomina: rows, Expediente: exp}, nil
	})
	if err != nil {
		return PagoResult{}, err
	}

	s.metrics.ExpedienteTransition(string(transitioned.From), string(transitioned.To))
	logging.Info(
		logging.WithExpediente(componentCtx(ctx, "acknowledge_payment"), input.ExpedienteID, 0),
		"payment acknowledged",
		slog.String("acuse", acuse),
	)
	return result, nil
}

// GetPago returns the payment handoff of an expediente with its nomina.
func (s *Service) GetPago(ctx context.Context, expedienteID uint64) (PagoResult, error) {
	if err := s.ready(ctx); err != nil {
		return PagoResult{}, err
	}
	pago, err := s.repo.GetPagoByExpediente(ctx, expedienteID)
	if err != nil {
		return PagoResult{}, err
	}
	rows, err := s.repo.ListNomina(ctx, pago.ID)
	if err != nil {
		return PagoResult{}, err
	}
	exp, err := s.repo.GetExpediente(ctx, expedienteID)
	if err != nil {
		return PagoResult{}, err
	}
	return PagoResult{Pago: pago, Nomina: rows, Expediente: exp}, nil
}
