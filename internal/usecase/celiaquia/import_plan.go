package celiaquia

import (
	"fmt"
	"time"

	domain "celiaquia/internal/domain/celiaquia"
	"celiaquia/internal/ports"
)

const (
	msgDocumentoDuplicado = "documento duplicado en el archivo"
	msgDocumentoExistente = "documento ya registrado en el expediente"
	msgReferenciaCircular = "referencia circular entre responsables"
	msgResponsableFallido = "el responsable (fila %d) no pudo registrarse: %s"
)

type rowFailure struct {
	err domain.RowError
	raw map[string]string
}

// importPlan is the outcome of normalizing and validating a batch of rows.
// Valid candidates are ordered so that every responsable precedes the rows
// naming it.
type importPlan struct {
	valid      []domain.Candidate
	failures   []rowFailure
	referenced map[string]bool
}

// planImport validates rows against each other and against legajos already
// in the expediente. referencedElsewhere marks documentos named as responsable
// by rows outside this batch.
func planImport(rows []ImportRow, today time.Time, existing map[string]ports.Legajo, referencedElsewhere map[string]bool) importPlan {
	plan := importPlan{referenced: make(map[string]bool)}
	for doc := range referencedElsewhere {
		plan.referenced[doc] = true
	}

	raws := make(map[int]map[string]string, len(rows))
	fail := func(re domain.RowError) {
		plan.failures = append(plan.failures, rowFailure{err: re, raw: raws[re.Fila]})
	}

	candidates := make([]domain.Candidate, 0, len(rows))
	byDoc := make(map[string]domain.Candidate, len(rows))
	for _, row := range rows {
		raws[row.Fila] = row.Values
		c, rowErr := domain.NormalizeRow(row.Fila, row.Values)
		if rowErr != nil {
			fail(*rowErr)
			continue
		}
		if _, dup := byDoc[c.Documento]; dup {
			fail(domain.RowError{Fila: c.Fila, Campo: domain.ColDocumento, Mensaje: msgDocumentoDuplicado})
			continue
		}
		if _, dup := existing[c.Documento]; dup {
			fail(domain.RowError{Fila: c.Fila, Campo: domain.ColDocumento, Mensaje: msgDocumentoExistente})
			continue
		}
		byDoc[c.Documento] = c
		candidates = append(candidates, c)
	}

	for _, c := range candidates {
		if c.DocumentoResponsable != "" {
			plan.referenced[c.DocumentoResponsable] = true
		}
	}

	failed := make(map[string]domain.RowError)
	passed := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		var responsable *domain.Person
		if c.DocumentoResponsable != "" {
			if r, ok := byDoc[c.DocumentoResponsable]; ok {
				responsable = &domain.Person{Documento: r.Documento, FechaNacimiento: r.FechaNacimiento}
			} else if l, ok := existing[c.DocumentoResponsable]; ok {
				responsable = &domain.Person{Documento: l.Documento, FechaNacimiento: l.FechaNacimiento}
			} else {
				re := domain.RowError{Fila: c.Fila, Campo: domain.CampoResponsable, Mensaje: domain.MsgResponsableInexistente}
				failed[c.Documento] = re
				fail(re)
				continue
			}
		}
		if rowErr := domain.ValidateCandidate(c, plan.referenced[c.Documento], responsable, today); rowErr != nil {
			failed[c.Documento] = *rowErr
			fail(*rowErr)
			continue
		}
		passed = append(passed, c)
	}

	// A row whose responsable failed would point at a legajo that never exists.
	for changed := true; changed; {
		changed = false
		kept := passed[:0]
		for _, c := range passed {
			if cause, ok := failed[c.DocumentoResponsable]; ok && c.DocumentoResponsable != "" {
				re := domain.RowError{Fila: c.Fila, Campo: domain.CampoResponsable, Mensaje: fmt.Sprintf(msgResponsableFallido, cause.Fila, cause.Mensaje)}
				failed[c.Documento] = re
				fail(re)
				changed = true
				continue
			}
			kept = append(kept, c)
		}
		passed = kept
	}

	emitted := make(map[string]bool, len(passed))
	for len(passed) > 0 {
		progressed := false
		pending := passed[:0]
		for _, c := range passed {
			_, inExisting := existing[c.DocumentoResponsable]
			if c.DocumentoResponsable == "" || inExisting || emitted[c.DocumentoResponsable] {
				plan.valid = append(plan.valid, c)
				emitted[c.Documento] = true
				progressed = true
				continue
			}
			pending = append(pending, c)
		}
		passed = pending
		if !progressed {
			for _, c := range passed {
				fail(domain.RowError{Fila: c.Fila, Campo: domain.CampoResponsable, Mensaje: msgReferenciaCircular})
			}
			break
		}
	}

	return plan
}

func legajoFromCandidate(expedienteID uint64, c domain.Candidate, esResponsable bool, responsableID *uint64, now time.Time) ports.Legajo {
	return ports.Legajo{
		ExpedienteID:    expedienteID,
		Documento:       c.Documento,
		Apellido:        c.Apellido,
		Nombre:          c.Nombre,
		FechaNacimiento: c.FechaNacimiento,
		Sexo:            c.Sexo,
		Calle:           c.Calle,
		Altura:          c.Altura,
		Localidad:       c.Localidad,
		CodigoPostal:    c.CodigoPostal,
		Telefono:        c.Telefono,
		Email:           c.Email,
		ResponsableID:   responsableID,
		EsResponsable:   esResponsable,
		CreatedAt:       now,
	}
}
