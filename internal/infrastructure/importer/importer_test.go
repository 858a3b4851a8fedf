package importer

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"celiaquia/internal/domain/celiaquia"
	"celiaquia/internal/errs"
)

func TestCanonicalHeader(t *testing.T) {
	cases := map[string]string{
		"DNI":                   celiaquia.ColDocumento,
		" Apellido ":            celiaquia.ColApellido,
		"Fecha de Nacimiento":   celiaquia.ColFechaNacimiento,
		"Género":                celiaquia.ColSexo,
		"DNI Responsable":       celiaquia.ColDocumentoResponsable,
		"Código Postal":         celiaquia.ColCodigoPostal,
		"Correo electrónico":    celiaquia.ColEmail,
		"Observaciones (libre)": "observaciones_libre",
	}
	for in, want := range cases {
		assert.Equal(t, want, CanonicalHeader(in), in)
	}
}

func TestParseCSVSemicolonWithBOM(t *testing.T) {
	body := "\xef\xbb\xbfDNI;Apellido;Nombres;Fecha de nacimiento;Sexo;Columna extra\n" +
		"30.111.222;Gomez ;Maria;01/05/1990;F;x\n" +
		";;;;;\n" +
		"40111222;Perez;Juan;2015-06-01;m\n"

	sheet, err := ParseCSV(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 2)

	assert.Equal(t, []string{"documento", "apellido", "nombre", "fecha_nacimiento", "sexo", "columna_extra"}, sheet.Headers)

	first := sheet.Rows[0]
	assert.Equal(t, 2, first.Fila)
	assert.Equal(t, "30.111.222", first.Values[celiaquia.ColDocumento])
	assert.Equal(t, "Gomez", first.Values[celiaquia.ColApellido])

	second := sheet.Rows[1]
	assert.Equal(t, 4, second.Fila)
	assert.Equal(t, "", second.Values["columna_extra"])
	assert.Equal(t, "m", second.Values[celiaquia.ColSexo])
}

func TestParseCSVCommaDelimited(t *testing.T) {
	body := "documento,apellido,fecha_nacimiento\n30111222,\"Gomez, Maria\",1990-05-01\n"

	sheet, err := ParseCSV(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 1)
	assert.Equal(t, "Gomez, Maria", sheet.Rows[0].Values[celiaquia.ColApellido])
}

func TestParseCSVEmpty(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("\n\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyUpload))
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestParseXLSXReadsRawSerialDates(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Documento", "Apellido", "Nombre", "Fecha Nacimiento", "Sexo"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"30111222", "Gomez", "Maria", 32994, "F"}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	parsed, err := ParseXLSX(&buf)
	require.NoError(t, err)
	require.Len(t, parsed.Rows, 1)

	row := parsed.Rows[0]
	assert.Equal(t, 2, row.Fila)
	assert.Equal(t, "30111222", row.Values[celiaquia.ColDocumento])

	birth, ok := celiaquia.ParseFecha(row.Values[celiaquia.ColFechaNacimiento])
	require.True(t, ok, row.Values[celiaquia.ColFechaNacimiento])
	assert.Equal(t, "1990-05-01", birth.Format("2006-01-02"))
}

func TestDetectFormat(t *testing.T) {
	format, err := DetectFormat("padron_salta.XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, format)

	format, err = DetectFormat("padron.csv")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, format)

	_, err = DetectFormat("padron.pdf")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}
