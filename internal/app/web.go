package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/relabs-tech/node_diagnosis/internal/diagnosis"
	"github.com/relabs-tech/node_diagnosis/internal/window"
)

const maxWindowBody = 4 << 20

// NewHandler serves the diagnosis API:
//
//	POST /api/diagnose?fault=<name|code>  window body, returns a Report
//	POST /api/diagnose?code=<n>           operator selection code, any integer
//	GET  /api/range                       current range
//	POST /api/range/{up,down}             manual range step
//	GET  /ws                              live reports
//	GET  /metrics                         prometheus
func NewHandler(svc *Service) http.Handler {
	h := &webHandler{svc: svc, logger: svc.logger.Named("web")}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/diagnose", h.diagnose)
	mux.HandleFunc("GET /api/range", h.getRange)
	mux.HandleFunc("POST /api/range/{direction}", h.stepRange)
	mux.Handle("GET /ws", svc.Hub())
	mux.Handle("GET /metrics", promhttp.HandlerFor(svc.Registry(), promhttp.HandlerOpts{}))
	return mux
}

type webHandler struct {
	svc    *Service
	logger *zap.Logger
}

type rangeStepResponse struct {
	From    RangeInfo `json:"from"`
	To      RangeInfo `json:"to"`
	Changed bool      `json:"changed"`
}

func (h *webHandler) diagnose(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	faultParam, codeParam := q.Get("fault"), q.Get("code")
	if (faultParam == "") == (codeParam == "") {
		h.writeError(w, http.StatusBadRequest, "exactly one of fault or code is required")
		return
	}

	var win window.Window
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWindowBody)).Decode(&win); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("decode window: %v", err))
		return
	}

	var (
		rep Report
		err error
	)
	if codeParam != "" {
		code, cerr := strconv.Atoi(codeParam)
		if cerr != nil {
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid code %q", codeParam))
			return
		}
		rep, err = h.svc.Dispatch(&win, code)
	} else {
		f, ferr := diagnosis.ParseFault(faultParam)
		if ferr != nil {
			h.writeError(w, http.StatusBadRequest, ferr.Error())
			return
		}
		rep, err = h.svc.Diagnose(&win, f)
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrBadRequest) {
			status = http.StatusBadRequest
		}
		h.writeError(w, status, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, rep)
}

func (h *webHandler) getRange(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, rangeInfo(h.svc.Range()))
}

func (h *webHandler) stepRange(w http.ResponseWriter, r *http.Request) {
	var up bool
	switch r.PathValue("direction") {
	case "up":
		up = true
	case "down":
	default:
		h.writeError(w, http.StatusNotFound, "direction must be up or down")
		return
	}

	step := h.svc.StepRange(up)
	h.writeJSON(w, http.StatusOK, rangeStepResponse{
		From:    rangeInfo(step.From),
		To:      rangeInfo(step.To),
		Changed: step.Changed,
	})
}

func (h *webHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("json encode error", zap.Error(err))
	}
}

func (h *webHandler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
