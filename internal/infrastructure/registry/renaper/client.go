package renaper

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"celiaquia/internal/bootstrap/logging"
	"celiaquia/internal/domain/celiaquia"
	"celiaquia/internal/errs"
	"celiaquia/internal/infrastructure/registry"
	"celiaquia/internal/ports"
)

const providerID = "renaper"

// Client verifies identities against the RENAPER persona endpoint:
//
//	GET {base}/v1/personas/{documento}?sexo=F
//	X-Api-Key: <key>
//
// A 404 means the document does not exist. A 200 whose identity fields do
// not match the upload asks for subsanación. Everything else is unavailable.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

var _ ports.RenaperClient = (*Client)(nil)

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type personaResponse struct {
	Documento       string `json:"documento"`
	Apellido        string `json:"apellido"`
	Nombre          string `json:"nombre"`
	FechaNacimiento string `json:"fecha_nacimiento"`
	Sexo            string `json:"sexo"`
	Fallecido       bool   `json:"fallecido"`
}

func (c *Client) Verify(ctx context.Context, q ports.RenaperQuery) ports.RenaperResult {
	persona, err := c.lookup(ctx, q)
	if err != nil {
		if registry.CategoryOf(err) == registry.ErrorNotFound {
			return ports.RenaperResult{Outcome: ports.RenaperRejected, Detail: "documento inexistente en RENAPER"}
		}
		logging.Warn(ctx, "renaper lookup failed",
			slog.String("documento", q.Documento),
			slog.String("category", string(registry.CategoryOf(err))),
			slog.Any("err", errs.Loggable(err)),
		)
		return ports.RenaperResult{Outcome: ports.RenaperUnavailable, Detail: err.Error()}
	}
	return compare(q, persona)
}

func (c *Client) lookup(ctx context.Context, q ports.RenaperQuery) (personaResponse, error) {
	if ctx == nil {
		return personaResponse{}, errors.New("context is required")
	}

	endpoint := c.baseURL + "/v1/personas/" + url.PathEscape(q.Documento)
	if q.Sexo != "" && q.Sexo != "X" {
		endpoint += "?sexo=" + url.QueryEscape(q.Sexo)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return personaResponse{}, registry.NewProviderError(registry.ErrorInternal, providerID, "build request", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return personaResponse{}, registry.ClassifyTransport(providerID, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return personaResponse{}, registry.ClassifyTransport(providerID, err)
	}
	return parsePersona(resp.StatusCode, body)
}

func parsePersona(status int, body []byte) (personaResponse, error) {
	if status != http.StatusOK {
		return personaResponse{}, registry.ClassifyStatus(providerID, status)
	}
	var persona personaResponse
	if err := json.Unmarshal(body, &persona); err != nil {
		return personaResponse{}, registry.NewProviderError(registry.ErrorBadData, providerID, "decode persona", err)
	}
	if persona.Documento == "" {
		return personaResponse{}, registry.NewProviderError(registry.ErrorBadData, providerID, "persona without documento", nil)
	}
	return persona, nil
}

// compare turns a registry persona into a verdict for the uploaded identity.
func compare(q ports.RenaperQuery, p personaResponse) ports.RenaperResult {
	if p.Fallecido {
		return ports.RenaperResult{Outcome: ports.RenaperRejected, Detail: "persona registrada como fallecida"}
	}

	var mismatches []string
	if celiaquia.NormalizeDocumento(p.Documento) != q.Documento {
		mismatches = append(mismatches, "documento")
	}
	if q.Apellido != "" && registry.Fold(p.Apellido) != registry.Fold(q.Apellido) {
		mismatches = append(mismatches, "apellido")
	}
	if !q.FechaNacimiento.IsZero() {
		if birth, ok := celiaquia.ParseFecha(p.FechaNacimiento); !ok || !birth.Equal(q.FechaNacimiento) {
			mismatches = append(mismatches, "fecha_nacimiento")
		}
	}
	if q.Sexo != "" && q.Sexo != "X" && p.Sexo != "" && !strings.EqualFold(p.Sexo, q.Sexo) {
		mismatches = append(mismatches, "sexo")
	}

	if len(mismatches) > 0 {
		return ports.RenaperResult{
			Outcome: ports.RenaperSubsanar,
			Detail:  "datos no coinciden con RENAPER: " + strings.Join(mismatches, ", "),
		}
	}
	return ports.RenaperResult{Outcome: ports.RenaperAccepted, Detail: "identidad verificada"}
}
