package celiaquia

import "time"

const MayoriaDeEdad = 18

const (
	CampoResponsable = "responsable"

	MsgMenorSinResponsable    = "Un beneficiario menor de 18 años debe tener un responsable asignado"
	MsgResponsableMenor       = "El responsable no puede ser menor de 18 años"
	MsgResponsableMasJoven    = "La edad del responsable debe ser mayor o igual a la del beneficiario"
	MsgResponsableInexistente = "El responsable indicado no figura en el expediente"
)

// Person is the minimum a validator needs to know about either side of the
// responsible relation.
type Person struct {
	Documento       string
	FechaNacimiento time.Time
}

// Age counts whole years between birth and today.
func Age(birth, today time.Time) int {
	years := today.Year() - birth.Year()
	if today.Month() < birth.Month() || (today.Month() == birth.Month() && today.Day() < birth.Day()) {
		years--
	}
	return years
}

// ValidateEdadResponsable fails when a responsible party is under age.
func ValidateEdadResponsable(responsable Person, today time.Time) error {
	if Age(responsable.FechaNacimiento, today) < MayoriaDeEdad {
		return &RowError{Campo: CampoResponsable, Mensaje: MsgResponsableMenor}
	}
	return nil
}

// ValidateMenorConResponsable fails when a minor has no responsible reference.
func ValidateMenorConResponsable(beneficiario Person, responsable *Person, today time.Time) error {
	if Age(beneficiario.FechaNacimiento, today) < MayoriaDeEdad && responsable == nil {
		return &RowError{Campo: CampoResponsable, Mensaje: MsgMenorSinResponsable}
	}
	return nil
}

// ValidateRelacion fails when the responsible is younger than the beneficiary.
func ValidateRelacion(responsable Person, beneficiario Person, today time.Time) error {
	if Age(responsable.FechaNacimiento, today) < Age(beneficiario.FechaNacimiento, today) {
		return &RowError{Campo: CampoResponsable, Mensaje: MsgResponsableMasJoven}
	}
	return nil
}

// ValidateCandidate applies the three rules in order. esResponsable marks a
// candidate that some other row names as its responsible; responsable is the
// resolved party this candidate references, if any.
func ValidateCandidate(c Candidate, esResponsable bool, responsable *Person, today time.Time) *RowError {
	self := Person{Documento: c.Documento, FechaNacimiento: c.FechaNacimiento}

	if esResponsable {
		if err := ValidateEdadResponsable(self, today); err != nil {
			return withFila(err, c.Fila)
		}
	}
	if err := ValidateMenorConResponsable(self, responsable, today); err != nil {
		return withFila(err, c.Fila)
	}
	if responsable != nil {
		if err := ValidateEdadResponsable(*responsable, today); err != nil {
			return withFila(err, c.Fila)
		}
		if err := ValidateRelacion(*responsable, self, today); err != nil {
			return withFila(err, c.Fila)
		}
	}
	return nil
}

func withFila(err error, fila int) *RowError {
	re, ok := err.(*RowError)
	if !ok {
		return &RowError{Fila: fila, Campo: CampoResponsable, Mensaje: err.Error()}
	}
	re.Fila = fila
	return re
}
