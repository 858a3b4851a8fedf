package sintys

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"celiaquia/internal/errs"
	"celiaquia/internal/ports"
)

func TestCrossCheck(t *testing.T) {
	var received cruceRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/cruces", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_, _ = w.Write([]byte(`{"resultados":[
			{"documento":"30111222","match":false,"observacion":""},
			{"documento":"30.111.223","match":true,"observacion":" percibe AUH "}
		]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", time.Second)
	verdicts, err := client.CrossCheck(context.Background(), []ports.SintysQuery{
		{Documento: "30111222", Apellido: "Gomez", FechaNacimiento: time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC)},
		{Documento: "30111223", Apellido: "Perez"},
		{Documento: "30111224", Apellido: "Diaz"},
	})
	require.NoError(t, err)

	require.Len(t, received.Personas, 3)
	assert.Equal(t, "1990-05-01", received.Personas[0].FechaNacimiento)

	require.Len(t, verdicts, 2)
	assert.False(t, verdicts["30111222"].Match)
	assert.True(t, verdicts["30111223"].Match)
	assert.Equal(t, "percibe AUH", verdicts["30111223"].Observacion)
	_, ok := verdicts["30111224"]
	assert.False(t, ok)
}

func TestCrossCheckSplitsLargeBatches(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		var req cruceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.LessOrEqual(t, len(req.Personas), maxBatch)
		resp := cruceResponse{}
		for _, p := range req.Personas {
			resp.Resultados = append(resp.Resultados, resultado{Documento: p.Documento})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	queries := make([]ports.SintysQuery, 0, maxBatch+10)
	for i := 0; i < maxBatch+10; i++ {
		queries = append(queries, ports.SintysQuery{Documento: fmt.Sprintf("%08d", i+1)})
	}

	verdicts, err := NewClient(srv.URL, "k", time.Second).CrossCheck(context.Background(), queries)
	require.NoError(t, err)
	assert.Equal(t, 2, requests)
	assert.Len(t, verdicts, maxBatch+10)
}

func TestCrossCheckUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "k", time.Second).CrossCheck(context.Background(), []ports.SintysQuery{{Documento: "1"}})
	require.Error(t, err)
	assert.Equal(t, errs.KindExternalUnavailable, errs.KindOf(err))
	assert.True(t, errs.Retryable(err))
}
