// Package importer reads provincial upload files (CSV or XLSX) into raw rows
// keyed by canonical column names. Row-level validation lives in the domain.
package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"celiaquia/internal/domain/celiaquia"
	"celiaquia/internal/errs"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

var (
	ErrEmptyUpload       = errs.Sentinel(errs.KindValidation, "upload has no header row")
	ErrUnsupportedFormat = errs.Sentinel(errs.KindValidation, "unsupported upload format")
)

// Row is one data line. Fila is the 1-based line in the source sheet, so the
// first data row after the header is 2.
type Row struct {
	Fila   int
	Values map[string]string
}

type Sheet struct {
	Headers []string
	Rows    []Row
}

// headerAliases maps folded header spellings seen in provincial exports to the
// canonical column keys.
var headerAliases = map[string]string{
	"dni":                       celiaquia.ColDocumento,
	"nro_documento":             celiaquia.ColDocumento,
	"numero_documento":          celiaquia.ColDocumento,
	"numero_de_documento":       celiaquia.ColDocumento,
	"documento":                 celiaquia.ColDocumento,
	"apellido":                  celiaquia.ColApellido,
	"apellidos":                 celiaquia.ColApellido,
	"nombre":                    celiaquia.ColNombre,
	"nombres":                   celiaquia.ColNombre,
	"fecha_nacimiento":          celiaquia.ColFechaNacimiento,
	"fecha_de_nacimiento":       celiaquia.ColFechaNacimiento,
	"fecha_nac":                 celiaquia.ColFechaNacimiento,
	"nacimiento":                celiaquia.ColFechaNacimiento,
	"sexo":                      celiaquia.ColSexo,
	"genero":                    celiaquia.ColSexo,
	"documento_responsable":     celiaquia.ColDocumentoResponsable,
	"dni_responsable":           celiaquia.ColDocumentoResponsable,
	"documento_del_responsable": celiaquia.ColDocumentoResponsable,
	"nro_documento_responsable": celiaquia.ColDocumentoResponsable,
	"responsable":               celiaquia.ColDocumentoResponsable,
	"calle":                     celiaquia.ColCalle,
	"domicilio":                 celiaquia.ColCalle,
	"direccion":                 celiaquia.ColCalle,
	"altura":                    celiaquia.ColAltura,
	"numero":                    celiaquia.ColAltura,
	"localidad":                 celiaquia.ColLocalidad,
	"ciudad":                    celiaquia.ColLocalidad,
	"municipio":                 celiaquia.ColLocalidad,
	"codigo_postal":             celiaquia.ColCodigoPostal,
	"cp":                        celiaquia.ColCodigoPostal,
	"telefono":                  celiaquia.ColTelefono,
	"celular":                   celiaquia.ColTelefono,
	"email":                     celiaquia.ColEmail,
	"mail":                      celiaquia.ColEmail,
	"correo":                    celiaquia.ColEmail,
	"correo_electronico":        celiaquia.ColEmail,
}

// DetectFormat picks the parser from the file extension.
func DetectFormat(filename string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", errs.WithKind(ErrUnsupportedFormat, errs.KindValidation, filename)
	}
}

// Parse reads the upload according to format.
func Parse(r io.Reader, format string) (Sheet, error) {
	if r == nil {
		return Sheet{}, errors.New("reader is required")
	}
	switch format {
	case FormatCSV:
		return ParseCSV(r)
	case FormatXLSX:
		return ParseXLSX(r)
	default:
		return Sheet{}, ErrUnsupportedFormat
	}
}

// ParseCSV accepts comma or semicolon separated files, with or without a BOM.
func ParseCSV(r io.Reader) (Sheet, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Sheet{}, errs.Wrap(err, "read csv upload")
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.Comma = detectDelimiter(raw)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return Sheet{}, errs.WithKind(err, errs.KindValidation, "malformed csv upload")
	}
	return buildSheet(records)
}

// ParseXLSX reads the first sheet. Cells are read raw so dates arrive as
// Excel serials rather than locale-formatted strings.
func ParseXLSX(r io.Reader) (Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Sheet{}, errs.WithKind(err, errs.KindValidation, "open xlsx upload")
	}
	defer func() {
		_ = f.Close()
	}()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return Sheet{}, ErrEmptyUpload
	}
	records, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return Sheet{}, errs.Wrap(err, "read xlsx rows")
	}
	return buildSheet(records)
}

// CanonicalHeader folds accents and punctuation and resolves known aliases.
// Unknown headers keep their folded form and are ignored downstream.
func CanonicalHeader(header string) string {
	folded := foldHeader(header)
	if canonical, ok := headerAliases[folded]; ok {
		return canonical
	}
	return folded
}

func buildSheet(records [][]string) (Sheet, error) {
	headerIdx := -1
	for i, rec := range records {
		if !blank(rec) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return Sheet{}, ErrEmptyUpload
	}

	headers := make([]string, len(records[headerIdx]))
	for i, h := range records[headerIdx] {
		headers[i] = CanonicalHeader(h)
	}

	sheet := Sheet{Headers: headers}
	for i := headerIdx + 1; i < len(records); i++ {
		rec := records[i]
		if blank(rec) {
			continue
		}
		values := make(map[string]string, len(headers))
		for col, key := range headers {
			if key == "" {
				continue
			}
			var cell string
			if col < len(rec) {
				cell = strings.TrimSpace(rec[col])
			}
			// First occurrence wins when two headers fold to the same key.
			if prev, ok := values[key]; ok && prev != "" {
				continue
			}
			values[key] = cell
		}
		sheet.Rows = append(sheet.Rows, Row{Fila: i + 1, Values: values})
	}
	return sheet, nil
}

func detectDelimiter(raw []byte) rune {
	line := raw
	if idx := bytes.IndexByte(raw, '\n'); idx >= 0 {
		line = raw[:idx]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

func foldHeader(header string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(strings.TrimSpace(header)))
	if err != nil {
		folded = strings.ToLower(strings.TrimSpace(header))
	}

	var b strings.Builder
	underscore := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimRight(b.String(), "_")
}

func blank(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
