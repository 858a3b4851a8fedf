package ports

import (
	"context"
	"time"

	"celiaquia/internal/domain/celiaquia"
)

// RenaperOutcome is the verdict of an identity verification.
type RenaperOutcome string

const (
	RenaperAccepted    RenaperOutcome = "accepted"
	RenaperRejected    RenaperOutcome = "rejected"
	RenaperSubsanar    RenaperOutcome = "subsanar"
	RenaperUnavailable RenaperOutcome = "unavailable"
)

// Estado maps the verdict to the persisted RENAPER code.
func (o RenaperOutcome) Estado() celiaquia.EstadoRenaper {
	switch o {
	case RenaperAccepted:
		return celiaquia.RenaperAceptado
	case RenaperRejected:
		return celiaquia.RenaperRechazado
	case RenaperSubsanar:
		return celiaquia.RenaperSubsanar
	default:
		return celiaquia.RenaperNoValidado
	}
}

type RenaperQuery struct {
	Documento       string
	Sexo            string
	Apellido        string
	Nombre          string
	FechaNacimiento time.Time
}

type RenaperResult struct {
	Outcome RenaperOutcome
	Detail  string
}

// RenaperClient verifies identities. Transport failures are reported as
// RenaperUnavailable, never as errors.
type RenaperClient interface {
	Verify(ctx context.Context, query RenaperQuery) RenaperResult
}

type SintysQuery struct {
	Documento       string
	Apellido        string
	Nombre          string
	FechaNacimiento time.Time
}

type SintysVerdict struct {
	Documento   string
	Match       bool
	Observacion string
}

// SintysClient cross-checks a batch keyed by document number. An error means
// the registry was unavailable and nothing should be recorded.
type SintysClient interface {
	CrossCheck(ctx context.Context, queries []SintysQuery) (map[string]SintysVerdict, error)
}
