package sintys

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"celiaquia/internal/domain/celiaquia"
	"celiaquia/internal/infrastructure/registry"
	"celiaquia/internal/ports"
)

const (
	providerID = "sintys"
	// maxBatch caps personas per request; larger batches are split.
	maxBatch = 500
)

// Client runs bulk cross-checks against SINTYS:
//
//	POST {base}/v1/cruces
//	{"personas":[{"documento":"...","apellido":"...","nombre":"...","fecha_nacimiento":"YYYY-MM-DD"}]}
//
// The response lists one resultado per documento with match and observacion.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

var _ ports.SintysClient = (*Client)(nil)

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type persona struct {
	Documento       string `json:"documento"`
	Apellido        string `json:"apellido"`
	Nombre          string `json:"nombre,omitempty"`
	FechaNacimiento string `json:"fecha_nacimiento,omitempty"`
}

type cruceRequest struct {
	Personas []persona `json:"personas"`
}

type resultado struct {
	Documento   string `json:"documento"`
	Match       bool   `json:"match"`
	Observacion string `json:"observacion"`
}

type cruceResponse struct {
	Resultados []resultado `json:"resultados"`
}

// CrossCheck returns verdicts keyed by documento. Documents absent from the
// response are left out so the caller keeps them pending.
func (c *Client) CrossCheck(ctx context.Context, queries []ports.SintysQuery) (map[string]ports.SintysVerdict, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	out := make(map[string]ports.SintysVerdict, len(queries))
	for start := 0; start < len(queries); start += maxBatch {
		end := start + maxBatch
		if end > len(queries) {
			end = len(queries)
		}
		results, err := c.post(ctx, queries[start:end])
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			doc := celiaquia.NormalizeDocumento(r.Documento)
			out[doc] = ports.SintysVerdict{
				Documento:   doc,
				Match:       r.Match,
				Observacion: strings.TrimSpace(r.Observacion),
			}
		}
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, queries []ports.SintysQuery) ([]resultado, error) {
	payload := cruceRequest{Personas: make([]persona, 0, len(queries))}
	for _, q := range queries {
		p := persona{Documento: q.Documento, Apellido: q.Apellido, Nombre: q.Nombre}
		if !q.FechaNacimiento.IsZero() {
			p.FechaNacimiento = q.FechaNacimiento.Format("2006-01-02")
		}
		payload.Personas = append(payload.Personas, p)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, registry.NewProviderError(registry.ErrorInternal, providerID, "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/cruces", bytes.NewReader(raw))
	if err != nil {
		return nil, registry.NewProviderError(registry.ErrorInternal, providerID, "build request", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, registry.ClassifyTransport(providerID, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, registry.ClassifyTransport(providerID, err)
	}
	if resp.StatusCode != http.StatusOK {
		perr := registry.ClassifyStatus(providerID, resp.StatusCode)
		if perr.Category == registry.ErrorNotFound {
			// The bulk endpoint itself missing is an outage, not an answer.
			perr = registry.NewProviderError(registry.ErrorOutage, providerID, perr.Message, nil)
		}
		return nil, perr
	}

	var decoded cruceResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, registry.NewProviderError(registry.ErrorBadData, providerID, "decode response", err)
	}
	return decoded.Resultados, nil
}
