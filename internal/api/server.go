// Package api exposes the venue over HTTP: order submission, transfers,
// the state read model, operator controls, and a WebSocket event stream.
//
// All monetary values use shopspring/decimal — never float64 for money.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"github.com/arbz/zeroday-engine/internal/events"
	"github.com/arbz/zeroday-engine/internal/ledger"
	"github.com/arbz/zeroday-engine/internal/metrics"
	"github.com/arbz/zeroday-engine/internal/model"
	"github.com/arbz/zeroday-engine/internal/venue"
)

// Service wires HTTP handlers to the venue.
type Service struct {
	venue  *venue.Venue
	recent *events.MemoryLog // recent-events read model; may be nil
	hub    *Hub              // may be nil
}

// NewService creates the HTTP service. recent and hub are optional.
func NewService(v *venue.Venue, recent *events.MemoryLog, hub *Hub) *Service {
	return &Service{venue: v, recent: recent, hub: hub}
}

// Router builds the chi router with the standard middleware stack.
func (s *Service) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"zeroday-engine"}`))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/state", s.GetState)
		r.Get("/state/{trader}", s.GetTrader)
		r.Get("/status", s.GetStatus)
		r.Get("/events", s.GetEvents)

		r.Post("/deposit", s.Deposit)
		r.Post("/withdraw", s.Withdraw)
		r.Post("/orders", s.PlaceOrder)
		r.Post("/orders/signed", s.PlaceSignedOrder)

		// Operator endpoints; the venue checks the token.
		r.Post("/oracle", s.UpdateOracle)
		r.Post("/fees", s.SetFees)
		r.Post("/fees/withdraw", s.WithdrawFees)
		r.Post("/pause", s.Pause)
		r.Post("/unpause", s.Unpause)

		if s.hub != nil {
			r.Get("/ws", s.hub.HandleWS)
		}
	})
	return r
}

// --- Request/Response types ---

// TransferRequest is the JSON body for deposits and withdrawals.
type TransferRequest struct {
	Trader string          `json:"trader"`
	Amount decimal.Decimal `json:"amount"`
}

// OrderBody is the JSON body for POST /orders and /orders/signed.
type OrderBody struct {
	Trader   string          `json:"trader"`
	Side     string          `json:"side"` // "buy" or "sell"
	Price    decimal.Decimal `json:"price"`
	Qty      decimal.Decimal `json:"qty"`
	Leverage int64           `json:"leverage"`
	TTLSecs  int64           `json:"ttl_secs,omitempty"`
	IsLimit  bool            `json:"is_limit,omitempty"`
	Nonce    uint64          `json:"nonce,omitempty"` // signed endpoint only
}

// OracleBody is the JSON body for POST /oracle.
type OracleBody struct {
	Price decimal.Decimal `json:"price"`
}

// FeesBody is the JSON body for POST /fees.
type FeesBody struct {
	MakerBps decimal.Decimal `json:"maker_bps"`
	TakerBps decimal.Decimal `json:"taker_bps"`
}

// FeeWithdrawBody is the JSON body for POST /fees/withdraw.
type FeeWithdrawBody struct {
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

// StatusResponse is the lightweight liveness view.
type StatusResponse struct {
	Paused        bool            `json:"paused"`
	Authoritative bool            `json:"authoritative"`
	Degraded      bool            `json:"degraded"`
	RestingBuys   int             `json:"resting_buys"`
	RestingSells  int             `json:"resting_sells"`
	Mark          decimal.Decimal `json:"mark"`
	AccruedFees   decimal.Decimal `json:"accrued_fees"`
}

// --- Handlers ---

func (s *Service) Deposit(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.venue.Deposit(r.Context(), req.Trader, req.Amount); err != nil {
		writeVenueError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Service) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.venue.Withdraw(r.Context(), req.Trader, req.Amount); err != nil {
		writeVenueError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Service) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeOrder(w, r)
	if !ok {
		return
	}
	ack, err := s.venue.PlaceOrder(r.Context(), req)
	if err != nil {
		writeVenueError(w, err)
		return
	}
	writeJSON(w, ack)
}

func (s *Service) PlaceSignedOrder(w http.ResponseWriter, r *http.Request) {
	var body OrderBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req, ok := orderRequest(w, body)
	if !ok {
		return
	}
	ack, err := s.venue.PlaceSignedOrder(r.Context(), req, body.Nonce)
	if err != nil {
		writeVenueError(w, err)
		return
	}
	writeJSON(w, ack)
}

func (s *Service) GetState(w http.ResponseWriter, r *http.Request) {
	snap, err := s.venue.Snapshot(r.Context())
	if err != nil {
		writeError(w, "failed to assemble state", http.StatusInternalServerError)
		return
	}
	writeJSON(w, snap)
}

func (s *Service) GetTrader(w http.ResponseWriter, r *http.Request) {
	trader := chi.URLParam(r, "trader")
	view, err := s.venue.Trader(r.Context(), trader)
	if err != nil {
		writeError(w, "failed to load trader", http.StatusInternalServerError)
		return
	}
	writeJSON(w, view)
}

func (s *Service) GetStatus(w http.ResponseWriter, _ *http.Request) {
	buys, sells := s.venue.Depth()
	writeJSON(w, StatusResponse{
		Paused:        s.venue.Paused(),
		Authoritative: s.venue.Authoritative(),
		Degraded:      s.venue.Degraded(),
		RestingBuys:   buys,
		RestingSells:  sells,
		Mark:          s.venue.Mark().Price,
		AccruedFees:   s.venue.AccruedFees(),
	})
}

func (s *Service) GetEvents(w http.ResponseWriter, r *http.Request) {
	if s.recent == nil {
		writeJSON(w, []events.Event{})
		return
	}
	var evs []events.Event
	if t := r.URL.Query().Get("type"); t != "" {
		evs = s.recent.OfType(events.Type(t))
	} else {
		evs = s.recent.Events()
	}
	if limStr := r.URL.Query().Get("limit"); limStr != "" {
		if lim, err := strconv.Atoi(limStr); err == nil && lim >= 0 && lim < len(evs) {
			evs = evs[len(evs)-lim:]
		}
	}
	if evs == nil {
		evs = []events.Event{}
	}
	writeJSON(w, evs)
}

func (s *Service) UpdateOracle(w http.ResponseWriter, r *http.Request) {
	var body OracleBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	p, err := s.venue.UpdateOracle(r.Context(), operatorToken(r), body.Price)
	if err != nil {
		writeVenueError(w, err)
		return
	}
	writeJSON(w, p)
}

func (s *Service) SetFees(w http.ResponseWriter, r *http.Request) {
	var body FeesBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.venue.SetFees(operatorToken(r), body.MakerBps, body.TakerBps); err != nil {
		writeVenueError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Service) WithdrawFees(w http.ResponseWriter, r *http.Request) {
	var body FeeWithdrawBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	taken, err := s.venue.WithdrawFees(r.Context(), operatorToken(r), body.To, body.Amount)
	if err != nil {
		writeVenueError(w, err)
		return
	}
	writeJSON(w, map[string]decimal.Decimal{"withdrawn": taken})
}

func (s *Service) Pause(w http.ResponseWriter, r *http.Request) {
	if err := s.venue.Pause(operatorToken(r)); err != nil {
		writeVenueError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "paused"})
}

func (s *Service) Unpause(w http.ResponseWriter, r *http.Request) {
	if err := s.venue.Unpause(operatorToken(r)); err != nil {
		writeVenueError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// --- Helpers ---

func decodeOrder(w http.ResponseWriter, r *http.Request) (venue.OrderRequest, bool) {
	var body OrderBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return venue.OrderRequest{}, false
	}
	return orderRequest(w, body)
}

func orderRequest(w http.ResponseWriter, body OrderBody) (venue.OrderRequest, bool) {
	var side model.Side
	switch strings.ToLower(body.Side) {
	case "buy":
		side = model.Buy
	case "sell":
		side = model.Sell
	default:
		writeError(w, "side must be buy or sell", http.StatusBadRequest)
		return venue.OrderRequest{}, false
	}
	return venue.OrderRequest{
		Trader:   body.Trader,
		Side:     side,
		Price:    body.Price,
		Qty:      body.Qty,
		Leverage: body.Leverage,
		TTL:      body.TTLSecs,
		IsLimit:  body.IsLimit,
	}, true
}

// operatorToken pulls the operator credential from the Authorization header
// (Bearer form) or the X-Operator-Token header.
func operatorToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get("X-Operator-Token")
}

// writeVenueError maps the venue's rejection taxonomy to HTTP statuses.
func writeVenueError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, venue.ErrPaused):
		writeError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, venue.ErrUnauthorized):
		writeError(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, venue.ErrInsufficientCollateral),
		errors.Is(err, ledger.ErrInsufficientFree):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, venue.ErrNonceMismatch):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, venue.ErrInvalidOrder),
		errors.Is(err, venue.ErrInvalidAmount):
		writeError(w, err.Error(), http.StatusBadRequest)
	default:
		writeError(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
