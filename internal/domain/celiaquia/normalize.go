package celiaquia

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Canonical column keys of an upload row.
const (
	ColDocumento            = "documento"
	ColApellido             = "apellido"
	ColNombre               = "nombre"
	ColFechaNacimiento      = "fecha_nacimiento"
	ColSexo                 = "sexo"
	ColDocumentoResponsable = "documento_responsable"
	ColCalle                = "calle"
	ColAltura               = "altura"
	ColLocalidad            = "localidad"
	ColCodigoPostal         = "codigo_postal"
	ColTelefono             = "telefono"
	ColEmail                = "email"
)

// MandatoryColumns are checked in this order; the first missing one is reported.
var MandatoryColumns = []string{ColDocumento, ColApellido, ColFechaNacimiento}

// Candidate is a normalized upload row ready for validation.
type Candidate struct {
	Fila                 int
	Documento            string
	Apellido             string
	Nombre               string
	FechaNacimiento      time.Time
	Sexo                 string
	DocumentoResponsable string
	Calle                string
	Altura               string
	Localidad            string
	CodigoPostal         string
	Telefono             string
	Email                string
}

// RowError describes why an upload row could not become a legajo.
type RowError struct {
	Fila    int
	Campo   string
	Mensaje string
}

func (e *RowError) Error() string {
	return "fila " + strconv.Itoa(e.Fila) + " campo " + e.Campo + ": " + e.Mensaje
}

func (e *RowError) Unwrap() error { return ErrValidation }

var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"2006-01-02",
	"2006/01/02",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"02/01/06",
}

// excelEpoch is day zero of spreadsheet serial dates.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// ParseFecha accepts dd/mm/yyyy (and variants), ISO dates and spreadsheet serial numbers.
func ParseFecha(raw string) (time.Time, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	if serial, err := strconv.ParseFloat(value, 64); err == nil && serial > 0 && serial < 100000 {
		return excelEpoch.AddDate(0, 0, int(serial)), true
	}
	return time.Time{}, false
}

// NormalizeDocumento keeps digits only ("30.111.222" -> "30111222").
func NormalizeDocumento(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var sexoTokens = map[string]string{
	"m": "M", "masculino": "M", "masc": "M", "varon": "M", "hombre": "M",
	"f": "F", "femenino": "F", "fem": "F", "mujer": "F",
	"x": "X", "u": "X", "no binario": "X", "nobinario": "X", "otro": "X", "": "X",
}

// NormalizeSexo maps free-form tokens to M, F or X. The input is expected to be
// accent-folded already.
func NormalizeSexo(raw string) (string, bool) {
	sexo, ok := sexoTokens[strings.ToLower(strings.TrimSpace(raw))]
	return sexo, ok
}

// NormalizeRow turns a raw row keyed by canonical column into a Candidate.
func NormalizeRow(fila int, raw map[string]string) (Candidate, *RowError) {
	get := func(key string) string { return strings.TrimSpace(raw[key]) }

	for _, col := range MandatoryColumns {
		if get(col) == "" {
			return Candidate{}, &RowError{Fila: fila, Campo: col, Mensaje: "campo obligatorio faltante: " + col}
		}
	}

	c := Candidate{
		Fila:                 fila,
		Documento:            NormalizeDocumento(get(ColDocumento)),
		Apellido:             collapseSpaces(get(ColApellido)),
		Nombre:               collapseSpaces(get(ColNombre)),
		DocumentoResponsable: NormalizeDocumento(get(ColDocumentoResponsable)),
		Calle:                collapseSpaces(get(ColCalle)),
		Altura:               get(ColAltura),
		Localidad:            collapseSpaces(get(ColLocalidad)),
		CodigoPostal:         get(ColCodigoPostal),
		Telefono:             get(ColTelefono),
		Email:                strings.ToLower(get(ColEmail)),
	}

	if n := len(c.Documento); n < 6 || n > 11 {
		return Candidate{}, &RowError{Fila: fila, Campo: ColDocumento, Mensaje: "documento inválido: " + get(ColDocumento)}
	}

	fecha, ok := ParseFecha(get(ColFechaNacimiento))
	if !ok {
		return Candidate{}, &RowError{Fila: fila, Campo: ColFechaNacimiento, Mensaje: "fecha de nacimiento inválida: " + get(ColFechaNacimiento)}
	}
	c.FechaNacimiento = fecha

	sexo, ok := NormalizeSexo(get(ColSexo))
	if !ok {
		return Candidate{}, &RowError{Fila: fila, Campo: ColSexo, Mensaje: "sexo inválido: " + get(ColSexo)}
	}
	c.Sexo = sexo

	if c.DocumentoResponsable == c.Documento {
		c.DocumentoResponsable = ""
	}
	return c, nil
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
