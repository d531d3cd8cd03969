package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"LovelyStaking/internal/recorder"
	"LovelyStaking/internal/staking"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Controller serves the staking ledger over HTTP. Amounts travel as base-unit
// decimal strings.
type Controller struct {
	Ledger   *staking.Service
	Recorder recorder.Recorder
	Log      *zap.Logger

	mu sync.Mutex
}

// NewController returns a new controller.
func NewController(ledger *staking.Service, rec recorder.Recorder, logger *zap.Logger) *Controller {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{Ledger: ledger, Recorder: rec, Log: logger}
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/health", c.HandleHealth).Methods(http.MethodGet)

	r.HandleFunc("/api/pools", c.HandlePools).Methods(http.MethodGet)
	r.HandleFunc("/api/pools/{pool}", c.HandlePool).Methods(http.MethodGet)
	r.HandleFunc("/api/summary", c.HandleSummary).Methods(http.MethodGet)
	r.HandleFunc("/api/events", c.HandleEvents).Methods(http.MethodGet)

	r.HandleFunc("/api/accounts/{account}/pools/{pool}", c.HandleAccountPool).Methods(http.MethodGet)
	r.HandleFunc("/api/accounts/{account}/earnings", c.HandleEarnings).Methods(http.MethodGet)

	r.HandleFunc("/api/stake", c.serialized(c.HandleStake)).Methods(http.MethodPost)
	r.HandleFunc("/api/unstake", c.serialized(c.HandleUnstake)).Methods(http.MethodPost)
	r.HandleFunc("/api/withdraw", c.serialized(c.HandleWithdraw)).Methods(http.MethodPost)
	r.HandleFunc("/api/compound", c.serialized(c.HandleCompound)).Methods(http.MethodPost)
	r.HandleFunc("/api/fund", c.serialized(c.HandleFund)).Methods(http.MethodPost)

	// the caller is named by the X-Caller header
	r.HandleFunc("/api/admin/rescue", c.serialized(c.HandleRescue)).Methods(http.MethodPost)
	r.HandleFunc("/api/admin/owner", c.serialized(c.HandleTransferOwnership)).Methods(http.MethodPost)

	return r
}

// serialized runs h with no other mutation in flight. The ledger rejects
// overlapping mutations, so concurrent requests queue here instead.
func (c *Controller) serialized(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		defer c.mu.Unlock()
		h(w, r)
	}
}

func (c *Controller) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps a ledger error to its HTTP status.
func (c *Controller) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, staking.ErrUnknownPool), errors.Is(err, staking.ErrUnknownSlot):
		status = http.StatusNotFound
	case errors.Is(err, staking.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, staking.ErrReentrant):
		status = http.StatusConflict
	case errors.Is(err, staking.ErrTokenLedger):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		c.Log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		c.Log.Debug("request rejected", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	writeError(w, status, err.Error())
}
