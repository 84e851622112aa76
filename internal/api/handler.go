package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wallseat/payment-transaction-model/internal/domain"
	"github.com/wallseat/payment-transaction-model/internal/service"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transaction_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transaction_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

// Initiator reserves funds and schedules settlement.
type Initiator interface {
	Initiate(ctx context.Context, amount decimal.Decimal, sourceID, destID int64) (*domain.TransactionInfo, error)
}

// Store is the read/support slice of the ledger the API exposes.
type Store interface {
	GetAccount(ctx context.Context, id int64) (*domain.Account, error)
	CreateAccount(ctx context.Context, name string, balance decimal.Decimal) (int64, error)
	StatusHistory(ctx context.Context, transactionID uuid.UUID) ([]domain.StatusEvent, error)
}

type Handler struct {
	store     Store
	initiator Initiator
	log       *zap.Logger
}

func NewHandler(store Store, initiator Initiator, log *zap.Logger) *Handler {
	return &Handler{store: store, initiator: initiator, log: log}
}

// Register wires the handler's routes onto the router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/pay", h.Pay).Methods("GET")

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/accounts", h.CreateAccount).Methods("POST")
	apiV1.HandleFunc("/accounts/{id}", h.GetAccount).Methods("GET")
	apiV1.HandleFunc("/transactions/{id}/status", h.GetStatusHistory).Methods("GET")
}

// Pay reserves funds for a transfer and schedules its settlement. The
// response reports the pending status; the final outcome lands in the
// status history once the worker settles.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("GET", "/api/pay"))
	defer timer.ObserveDuration()

	q := r.URL.Query()

	amount, err := decimal.NewFromString(q.Get("amount"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Malformed amount", "GET", "/api/pay")
		return
	}

	sourceID, err := strconv.ParseInt(q.Get("source"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Malformed source account id", "GET", "/api/pay")
		return
	}

	destID, err := strconv.ParseInt(q.Get("dest"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Malformed dest account id", "GET", "/api/pay")
		return
	}

	info, err := h.initiator.Initiate(r.Context(), amount, sourceID, destID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAmount):
			h.respondError(w, http.StatusBadRequest, "Amount must be positive", "GET", "/api/pay")
		case errors.Is(err, service.ErrAccountNotFound):
			h.respondError(w, http.StatusNotFound, "Account not found", "GET", "/api/pay")
		case errors.Is(err, service.ErrInsufficientFunds):
			h.respondError(w, http.StatusUnprocessableEntity, "Insufficient funds", "GET", "/api/pay")
		default:
			h.log.Error("reservation failed", zap.Error(err))
			h.respondError(w, http.StatusInternalServerError, "Internal Server Error", "GET", "/api/pay")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, info, "GET", "/api/pay")
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string          `json:"name"`
		Balance decimal.Decimal `json:"balance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Malformed JSON body", "POST", "/accounts")
		return
	}
	if req.Name == "" {
		h.respondError(w, http.StatusBadRequest, "Name is required", "POST", "/accounts")
		return
	}
	if req.Balance.IsNegative() {
		h.respondError(w, http.StatusBadRequest, "Balance must not be negative", "POST", "/accounts")
		return
	}

	id, err := h.store.CreateAccount(r.Context(), req.Name, req.Balance)
	if err != nil {
		h.log.Error("account creation failed", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "System error creating account", "POST", "/accounts")
		return
	}
	h.respondJSON(w, http.StatusCreated, map[string]int64{"account_id": id}, "POST", "/accounts")
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Malformed account id", "GET", "/accounts/{id}")
		return
	}

	account, err := h.store.GetAccount(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			h.respondError(w, http.StatusNotFound, "Account not found", "GET", "/accounts/{id}")
			return
		}
		h.log.Error("account lookup failed", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Internal Server Error", "GET", "/accounts/{id}")
		return
	}
	h.respondJSON(w, http.StatusOK, account, "GET", "/accounts/{id}")
}

// GetStatusHistory returns a transaction's status events oldest first. This
// is the audit surface: events are append-only and never rewritten.
func (h *Handler) GetStatusHistory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Malformed transaction id", "GET", "/transactions/{id}/status")
		return
	}

	events, err := h.store.StatusHistory(r.Context(), id)
	if err != nil {
		h.log.Error("status history lookup failed", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Internal Server Error", "GET", "/transactions/{id}/status")
		return
	}
	if len(events) == 0 {
		h.respondError(w, http.StatusNotFound, "Transaction not found", "GET", "/transactions/{id}/status")
		return
	}
	h.respondJSON(w, http.StatusOK, events, "GET", "/transactions/{id}/status")
}

func (h *Handler) respondJSON(w http.ResponseWriter, code int, payload interface{}, method, endpoint string) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, code int, message, method, endpoint string) {
	h.respondJSON(w, code, map[string]string{"error": message}, method, endpoint)
}
