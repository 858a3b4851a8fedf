package celiaquia

import (
	"sort"
	"time"
)

// CupoCandidate is a legajo competing for a titular slot.
type CupoCandidate struct {
	LegajoID  uint64
	Documento string
	CreatedAt time.Time
}

// SortCupoCandidates orders candidates by creation time, then document number.
func SortCupoCandidates(in []CupoCandidate) {
	sort.SliceStable(in, func(i, j int) bool {
		if !in[i].CreatedAt.Equal(in[j].CreatedAt) {
			return in[i].CreatedAt.Before(in[j].CreatedAt)
		}
		return in[i].Documento < in[j].Documento
	})
}

// QualifiesForCupo is true for legajos approved by the técnico and accepted by RENAPER.
func QualifiesForCupo(revision RevisionTecnico, renaper EstadoRenaper) bool {
	return revision == RevisionAprobado && renaper == RenaperAceptado
}

// DecideCupo returns DENTRO while active titulares are below size.
func DecideCupo(activos int, size int) EstadoCupo {
	if activos < size {
		return CupoDentro
	}
	return CupoFuera
}

// ArchivosOK is true when every required document type is covered.
func ArchivosOK(required []uint64, uploaded []uint64) bool {
	have := make(map[uint64]struct{}, len(uploaded))
	for _, id := range uploaded {
		have[id] = struct{}{}
	}
	for _, id := range required {
		if _, ok := have[id]; !ok {
			return false
		}
	}
	return true
}
