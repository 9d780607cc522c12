package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mc.service/api"
	sm "mc.service/models"
)

func newTestRouter(t *testing.T) (http.Handler, *fakeProvider) {
	t.Helper()
	sc, provider, reg := newTestServiceContext(t)
	return NewRouter(sc, ServerOptions{AllowedOrigins: []string{"http://localhost:5173"}, Gatherer: reg}), provider
}

func doRequest(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResponse[T any](t *testing.T, rec *httptest.ResponseRecorder) sm.ServiceResponse[T] {
	t.Helper()
	var res sm.ServiceResponse[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res), rec.Body.String())
	return res
}

func TestPing(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := doRequest(t, h, http.MethodGet, "/api/ping", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pong")
}

func TestGetSimulationSettings(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := doRequest(t, h, http.MethodGet, "/api/simulation/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	res := decodeResponse[sm.SimulationSettingsResources](t, rec)
	require.NotNil(t, res.Data)
	assert.Equal(t, 252, res.Data.TradingDaysPerYear)
	assert.Equal(t, "fake", res.Data.Provider)
}

func TestPostForecast(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := doRequest(t, h, http.MethodPost, "/api/forecast", sm.ForecastRequestSettings{
		Symbol:         "test",
		Years:          1,
		NumSimulations: 100,
		Seed:           5,
		HistogramBins:  10,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", strings.Split(rec.Header().Get("Content-Type"), ";")[0])

	res := decodeResponse[sm.ForecastResponse](t, rec)
	require.NotNil(t, res.Data)
	assert.Empty(t, res.Error)
	assert.Equal(t, "TEST", res.Data.Symbol)
	assert.Equal(t, int64(5), res.Data.Seed)
	assert.Len(t, res.Data.Histogram, 10)

	rec = doRequest(t, h, http.MethodGet, "/api/forecast/runs?symbol=test&limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	runs := decodeResponse[[]sm.SimulationRunResponse](t, rec)
	require.NotNil(t, runs.Data)
	require.Len(t, *runs.Data, 1)
	assert.Equal(t, res.Data.RunId, (*runs.Data)[0].Id)
}

func TestPostForecast_ErrorStatus(t *testing.T) {
	h, _ := newTestRouter(t)

	tests := []struct {
		name     string
		body     any
		expected int
		message  string
	}{
		{"malformed body", "{not json", http.StatusBadRequest, "invalid request body"},
		{"missing symbol", sm.ForecastRequestSettings{Years: 1}, http.StatusBadRequest, "symbol is required"},
		{"missing years", sm.ForecastRequestSettings{Symbol: "TEST"}, http.StatusBadRequest, "years is required"},
		{"too many years", sm.ForecastRequestSettings{Symbol: "TEST", Years: 51}, http.StatusBadRequest, "years must be at most 50"},
		{"over service limit", sm.ForecastRequestSettings{Symbol: "TEST", Years: 20}, http.StatusBadRequest, ErrInvalidConfig.Error()},
		{"unknown symbol", sm.ForecastRequestSettings{Symbol: "NOPE", Years: 1}, http.StatusNotFound, api.ErrSymbolNotFound.Error()},
		{"short history", sm.ForecastRequestSettings{Symbol: "SHORT", Years: 1}, http.StatusUnprocessableEntity, api.ErrInsufficientHistory.Error()},
		{"provider down", sm.ForecastRequestSettings{Symbol: "DOWN", Years: 1}, http.StatusBadGateway, api.ErrProviderUnavailable.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodPost, "/api/forecast", tt.body)
			assert.Equal(t, tt.expected, rec.Code, rec.Body.String())

			res := decodeResponse[any](t, rec)
			assert.Nil(t, res.Data)
			assert.Contains(t, res.Error, tt.message)
			assert.NotEmpty(t, res.RequestId)
		})
	}
}

func TestGetForecastRuns_BadLimit(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := doRequest(t, h, http.MethodGet, "/api/forecast/runs?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/forecast/runs?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostSymbolSync(t *testing.T) {
	h, provider := newTestRouter(t)

	rec := doRequest(t, h, http.MethodPost, "/api/symbols/test/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeResponse[sm.SyncResponse](t, rec)
	require.NotNil(t, res.Data)
	assert.Equal(t, int64(300), res.Data.Inserted)

	rec = doRequest(t, h, http.MethodPost, "/api/symbols/test/sync", nil)
	res = decodeResponse[sm.SyncResponse](t, rec)
	assert.True(t, res.Data.Skipped)

	rec = doRequest(t, h, http.MethodPost, "/api/symbols/test/sync?force=true", nil)
	res = decodeResponse[sm.SyncResponse](t, rec)
	assert.False(t, res.Data.Skipped)
	assert.Equal(t, 2, provider.Calls())

	rec = doRequest(t, h, http.MethodPost, "/api/symbols/nope/sync", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestRouter(t)

	doRequest(t, h, http.MethodPost, "/api/forecast", sm.ForecastRequestSettings{Symbol: "TEST", Years: 1, NumSimulations: 10})

	rec := doRequest(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `mc_forecasts_total{status="success"} 1`)
}

func TestCorsPreflight(t *testing.T) {
	h, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/forecast", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err      error
		expected int
	}{
		{fmt.Errorf("wrapped: %w", ErrInvalidConfig), http.StatusBadRequest},
		{ErrStatisticsUndefined, http.StatusBadRequest},
		{fmt.Errorf("%w: x", api.ErrSymbolNotFound), http.StatusNotFound},
		{api.ErrInsufficientHistory, http.StatusUnprocessableEntity},
		{errors.Join(api.ErrProviderUnavailable, errors.New("db down")), http.StatusBadGateway},
		{ErrEmptyEnsemble, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, statusForError(tt.err), tt.err.Error())
	}
}
