package app

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/node_diagnosis/internal/accelrange"
	"github.com/relabs-tech/node_diagnosis/internal/diagnosis"
)

const driftBody = `{"battery_voltage": [3.5, 3.3, 3.5, 3.4, 3.5], "acceleration": [0.1, 0.2, 0.3]}`

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWeb_Diagnose(t *testing.T) {
	svc, _, _ := newTestService(t, accelrange.Range4G)
	h := NewHandler(svc)

	rec := serve(h, http.MethodPost, "/api/diagnose?fault=drift", driftBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var rep Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, diagnosis.FaultDrift, rep.Fault)
	assert.Equal(t, diagnosis.KindDetected, rep.Kind)
}

func TestWeb_DiagnoseByCode(t *testing.T) {
	svc, _, _ := newTestService(t, accelrange.Range4G)
	h := NewHandler(svc)

	rec := serve(h, http.MethodPost, "/api/diagnose?code=6", driftBody)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"fault":"drift"`)

	rec = serve(h, http.MethodPost, "/api/diagnose?code=12", driftBody)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"invalid"`)
	assert.Contains(t, rec.Body.String(), `"message":"Invalid choice."`)
}

func TestWeb_DiagnoseBadRequests(t *testing.T) {
	svc, _, _ := newTestService(t, accelrange.Range4G)
	h := NewHandler(svc)

	tests := []struct {
		name   string
		target string
		body   string
	}{
		{"no selector", "/api/diagnose", driftBody},
		{"both selectors", "/api/diagnose?fault=drift&code=6", driftBody},
		{"unknown fault", "/api/diagnose?fault=spike", driftBody},
		{"code not a number", "/api/diagnose?code=six", driftBody},
		{"bad body", "/api/diagnose?fault=drift", `{"acceleration": "x"}`},
		{"negative metadata", "/api/diagnose?fault=missing", `{"acceleration": [1, 2], "sampling_frequency": -5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, http.MethodPost, tt.target, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestWeb_Range(t *testing.T) {
	svc, _, _ := newTestService(t, accelrange.Range4G)
	h := NewHandler(svc)

	rec := serve(h, http.MethodGet, "/api/range", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"code":"0x08","index":1,"g":4}`, rec.Body.String())

	rec = serve(h, http.MethodPost, "/api/range/up", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"from": {"code":"0x08","index":1,"g":4},
		"to":   {"code":"0x10","index":2,"g":8},
		"changed": true
	}`, rec.Body.String())
	assert.Equal(t, accelrange.Range8G, svc.Range())

	rec = serve(h, http.MethodPost, "/api/range/sideways", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(h, http.MethodGet, "/api/range/up", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWeb_Metrics(t *testing.T) {
	svc, _, _ := newTestService(t, accelrange.Range4G)
	h := NewHandler(svc)

	serve(h, http.MethodPost, "/api/diagnose?fault=drift", driftBody)

	rec := serve(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `diagnosis_verdicts_total{fault="drift",kind="detected"} 1`)
	assert.Contains(t, string(body), `diagnosis_accel_range_g 4`)
}

func TestWeb_WebSocketReceivesReports(t *testing.T) {
	svc, _, _ := newTestService(t, accelrange.Range4G)
	server := httptest.NewServer(NewHandler(svc))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return svc.Hub().Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Post(server.URL+"/api/diagnose?fault=drift", "application/json", strings.NewReader(driftBody))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var rep Report
	require.NoError(t, conn.ReadJSON(&rep))
	assert.Equal(t, diagnosis.FaultDrift, rep.Fault)
	assert.Equal(t, diagnosis.KindDetected, rep.Kind)

	svc.Hub().Close()
	assert.Zero(t, svc.Hub().Len())
}
