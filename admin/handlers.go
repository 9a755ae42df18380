package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hieutrieu/replset/topology"
)

// Service is the lock-holding facade the runtime exposes over its
// topology.Coordinator. Handlers call through this interface rather than
// touching a Coordinator directly, since every Coordinator entry point
// assumes its caller already holds the exclusive lock.
type Service interface {
	Status() topology.ReplSetStatusResponse
	IsMaster() topology.IsMasterResponse
	Config() *topology.ConfigSnapshot
	Freeze(secs time.Duration) (topology.PrepareFreezeResponseResult, error)
	StepDown(ctx context.Context, waitFor, stepDownFor time.Duration, force bool) error
	SyncFrom(host string) (topology.SyncFromResponse, error)
	SummarizeAsHtml() string
}

// Handlers implements the admin HTTP endpoints over a Service.
type Handlers struct {
	svc Service
}

// NewHandlers returns admin Handlers backed by svc.
func NewHandlers(svc Service) *Handlers {
	return &Handlers{svc: svc}
}

func writeJSONResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": data}); err != nil {
		log.Error().Err(err).Msg("failed to encode admin response")
	}
}

func writeErrorResponse(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"error": message}); err != nil {
		log.Error().Err(err).Msg("failed to encode admin error response")
	}
}

// HandleStatus serves GET /admin/status: the replSetGetStatus equivalent.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, h.svc.Status())
}

// HandleIsMaster serves GET /admin/isMaster.
func (h *Handlers) HandleIsMaster(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, h.svc.IsMaster())
}

// HandleGetConfig serves GET /admin/replSetGetConfig.
func (h *Handlers) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.svc.Config()
	if cfg == nil || !cfg.IsInstalled() {
		writeErrorResponse(w, http.StatusNotFound, "no configuration installed")
		return
	}
	writeJSONResponse(w, cfg)
}

// HandleFreeze serves POST /admin/freeze?secs=N. secs=0 attempts to clear
// an existing freeze and, for a single-voter set, immediately stand for
// election.
func (h *Handlers) HandleFreeze(w http.ResponseWriter, r *http.Request) {
	secs, err := strconv.Atoi(r.URL.Query().Get("secs"))
	if err != nil && r.URL.Query().Get("secs") != "" {
		writeErrorResponse(w, http.StatusBadRequest, "secs must be an integer")
		return
	}

	result, err := h.svc.Freeze(time.Duration(secs) * time.Second)
	if err != nil {
		writeErrorResponse(w, http.StatusConflict, err.Error())
		return
	}
	writeJSONResponse(w, map[string]interface{}{
		"electSelf": result == topology.FreezeElectSelf,
	})
}

// HandleStepDown serves POST /admin/stepDown?waitSecs=N&stepDownSecs=N&force=bool.
func (h *Handlers) HandleStepDown(w http.ResponseWriter, r *http.Request) {
	waitSecs := queryIntDefault(r, "waitSecs", 10)
	stepDownSecs := queryIntDefault(r, "stepDownSecs", 60)
	force := r.URL.Query().Get("force") == "true"

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(stepDownSecs+5)*time.Second)
	defer cancel()

	if err := h.svc.StepDown(ctx, time.Duration(waitSecs)*time.Second, time.Duration(stepDownSecs)*time.Second, force); err != nil {
		writeErrorResponse(w, http.StatusConflict, err.Error())
		return
	}
	writeJSONResponse(w, map[string]interface{}{"ok": true})
}

// HandleSyncFrom serves POST /admin/replSetSyncFrom?host=H.
func (h *Handlers) HandleSyncFrom(w http.ResponseWriter, r *http.Request) {
	host := r.URL.Query().Get("host")
	if host == "" {
		writeErrorResponse(w, http.StatusBadRequest, "host is required")
		return
	}
	resp, err := h.svc.SyncFrom(host)
	if err != nil {
		writeErrorResponse(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSONResponse(w, resp)
}

// HandleSummary serves GET /admin/ with a human-readable HTML dashboard.
func (h *Handlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(h.svc.SummarizeAsHtml()))
}

func queryIntDefault(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
