// Package api exposes the settlement engine over HTTP: market
// creation, betting, resolution, claims, and the read surface (odds,
// bets, balances). Signature verification happens upstream; the
// authenticating gateway injects the verified signer identity in the
// X-Signer header as 64 hex characters.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/paribook/settle-engine/internal/engine"
	"github.com/paribook/settle-engine/internal/ident"
	"github.com/paribook/settle-engine/internal/ledger"
	"github.com/paribook/settle-engine/internal/limits"
	"github.com/paribook/settle-engine/internal/metrics"
	"github.com/paribook/settle-engine/internal/model"
	"github.com/paribook/settle-engine/internal/money"
	"github.com/paribook/settle-engine/internal/pari"
	"github.com/paribook/settle-engine/internal/store"
)

// signerHeader carries the gateway-verified caller identity.
const signerHeader = "X-Signer"

// Balances is the read-only account view backing the balance endpoint.
type Balances interface {
	Balance(account ident.ID) money.Amount
}

// Service handles HTTP requests. Writes go through the engine; reads
// go straight to the store.
type Service struct {
	engine   *engine.Engine
	store    store.Store
	balances Balances
	hub      *WSHub // optional; nil disables event broadcasts
}

// NewService creates the HTTP service. Pass nil for hub if WebSocket
// broadcasting is not needed, and nil for balances to disable the
// balance endpoint.
func NewService(eng *engine.Engine, st store.Store, balances Balances, hub *WSHub) *Service {
	return &Service{engine: eng, store: st, balances: balances, hub: hub}
}

// Mount registers all routes on the given router.
func (s *Service) Mount(r chi.Router) {
	r.Get("/markets", s.ListMarkets)
	r.Post("/markets", s.CreateMarket)
	r.Get("/markets/{marketID}", s.GetMarket)
	r.Get("/markets/{marketID}/odds", s.GetOdds)
	r.Get("/markets/{marketID}/bets", s.ListBets)
	r.Get("/markets/{marketID}/bets/{bettor}", s.GetBet)
	r.Post("/markets/{marketID}/bets", s.PlaceBet)
	r.Post("/markets/{marketID}/resolve", s.ResolveMarket)
	r.Post("/markets/{marketID}/claim", s.ClaimWinnings)
	r.Get("/accounts/{accountID}/balance", s.GetBalance)
	if s.hub != nil {
		r.Get("/ws", s.hub.HandleWS)
	}
}

// --- Request/Response types ---

// CreateMarketRequest is the JSON body for market creation. The client
// supplies the question hash it signed over; the engine re-derives it
// from the question bytes and rejects mismatches.
type CreateMarketRequest struct {
	Question     string       `json:"question"`
	EndTime      int64        `json:"end_time"` // unix seconds
	QuestionHash ident.Digest `json:"question_hash"`
}

// PlaceBetRequest is the JSON body for placing a bet.
type PlaceBetRequest struct {
	Amount  money.Amount `json:"amount"`
	Outcome string       `json:"outcome"` // "yes" or "no"
}

// ResolveRequest is the JSON body for resolving a market.
type ResolveRequest struct {
	Outcome string `json:"outcome"` // "yes" or "no"
}

// ClaimResponse is returned from a successful claim.
type ClaimResponse struct {
	MarketID ident.ID     `json:"market_id"`
	Bettor   ident.ID     `json:"bettor"`
	Payout   money.Amount `json:"payout"`
}

// BalanceResponse is returned from the balance endpoint.
type BalanceResponse struct {
	Account ident.ID     `json:"account"`
	Balance money.Amount `json:"balance"`
}

// --- HTTP Handlers ---

// CreateMarket handles POST /api/v1/markets
func (s *Service) CreateMarket(w http.ResponseWriter, r *http.Request) {
	signer, ok := s.signer(w, r)
	if !ok {
		return
	}

	var req CreateMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	m, err := s.engine.InitializeMarket(r.Context(), signer, req.Question, req.EndTime, req.QuestionHash)
	if err != nil {
		writeError(w, err.Error(), errStatus(err))
		return
	}

	metrics.MarketsCreated.Inc()
	metrics.OpenMarkets.Inc()
	if s.hub != nil {
		s.hub.Broadcast(Event{
			Type:     "market_created",
			MarketID: m.ID.String(),
		})
	}

	writeJSON(w, http.StatusCreated, m)
}

// GetMarket handles GET /api/v1/markets/{marketID}
func (s *Service) GetMarket(w http.ResponseWriter, r *http.Request) {
	marketID, ok := pathID(w, r, "marketID")
	if !ok {
		return
	}

	m, err := s.store.GetMarket(r.Context(), marketID)
	if err != nil {
		writeError(w, err.Error(), errStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ListMarkets handles GET /api/v1/markets
func (s *Service) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := s.store.ListMarkets(r.Context())
	if err != nil {
		writeError(w, "failed to list markets", http.StatusInternalServerError)
		return
	}
	if markets == nil {
		markets = []model.Market{}
	}
	writeJSON(w, http.StatusOK, markets)
}

// GetOdds handles GET /api/v1/markets/{marketID}/odds
func (s *Service) GetOdds(w http.ResponseWriter, r *http.Request) {
	marketID, ok := pathID(w, r, "marketID")
	if !ok {
		return
	}

	m, err := s.store.GetMarket(r.Context(), marketID)
	if err != nil {
		writeError(w, err.Error(), errStatus(err))
		return
	}

	pool := pari.Pool{TotalYes: m.TotalYes, TotalNo: m.TotalNo, FeeBps: m.FeeBps}
	writeJSON(w, http.StatusOK, pool.ImpliedOdds())
}

// ListBets handles GET /api/v1/markets/{marketID}/bets
func (s *Service) ListBets(w http.ResponseWriter, r *http.Request) {
	marketID, ok := pathID(w, r, "marketID")
	if !ok {
		return
	}

	bets, err := s.store.ListBetsByMarket(r.Context(), marketID)
	if err != nil {
		writeError(w, "failed to list bets", http.StatusInternalServerError)
		return
	}
	if bets == nil {
		bets = []model.Bet{}
	}
	writeJSON(w, http.StatusOK, bets)
}

// GetBet handles GET /api/v1/markets/{marketID}/bets/{bettor}
func (s *Service) GetBet(w http.ResponseWriter, r *http.Request) {
	marketID, ok := pathID(w, r, "marketID")
	if !ok {
		return
	}
	bettor, ok := pathID(w, r, "bettor")
	if !ok {
		return
	}

	b, err := s.store.GetBet(r.Context(), ident.BetKey(marketID, bettor))
	if err != nil {
		writeError(w, err.Error(), errStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// PlaceBet handles POST /api/v1/markets/{marketID}/bets
func (s *Service) PlaceBet(w http.ResponseWriter, r *http.Request) {
	signer, ok := s.signer(w, r)
	if !ok {
		return
	}
	marketID, ok := pathID(w, r, "marketID")
	if !ok {
		return
	}

	var req PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	side, err := model.ParseSide(req.Outcome)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	b, err := s.engine.PlaceBet(r.Context(), signer, marketID, req.Amount, side)
	if err != nil {
		metrics.BetsRejected.Inc()
		writeError(w, err.Error(), errStatus(err))
		return
	}

	metrics.BetsPlaced.WithLabelValues(side.String()).Inc()
	metrics.EscrowHeld.Add(float64(b.Amount))
	if s.hub != nil {
		m, merr := s.store.GetMarket(r.Context(), marketID)
		ev := Event{
			Type:     "bet_placed",
			MarketID: marketID.String(),
			Outcome:  side.String(),
			Amount:   b.Amount.String(),
		}
		if merr == nil {
			ev.TotalYes = m.TotalYes.String()
			ev.TotalNo = m.TotalNo.String()
		}
		s.hub.Broadcast(ev)
	}

	writeJSON(w, http.StatusCreated, b)
}

// ResolveMarket handles POST /api/v1/markets/{marketID}/resolve
func (s *Service) ResolveMarket(w http.ResponseWriter, r *http.Request) {
	signer, ok := s.signer(w, r)
	if !ok {
		return
	}
	marketID, ok := pathID(w, r, "marketID")
	if !ok {
		return
	}

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	outcome, err := model.ParseSide(req.Outcome)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.engine.ResolveMarket(r.Context(), signer, marketID, outcome); err != nil {
		writeError(w, err.Error(), errStatus(err))
		return
	}

	metrics.OpenMarkets.Dec()
	if s.hub != nil {
		s.hub.Broadcast(Event{
			Type:     "market_resolved",
			MarketID: marketID.String(),
			Outcome:  outcome.String(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved", "outcome": outcome.String()})
}

// ClaimWinnings handles POST /api/v1/markets/{marketID}/claim
func (s *Service) ClaimWinnings(w http.ResponseWriter, r *http.Request) {
	signer, ok := s.signer(w, r)
	if !ok {
		return
	}
	marketID, ok := pathID(w, r, "marketID")
	if !ok {
		return
	}

	payout, err := s.engine.ClaimWinnings(r.Context(), signer, marketID)
	if err != nil {
		writeError(w, err.Error(), errStatus(err))
		return
	}

	metrics.ClaimsPaid.Inc()
	metrics.ClaimValue.Add(float64(payout))
	metrics.EscrowHeld.Sub(float64(payout))
	if s.hub != nil {
		s.hub.Broadcast(Event{
			Type:     "winnings_claimed",
			MarketID: marketID.String(),
			Amount:   payout.String(),
		})
	}

	writeJSON(w, http.StatusOK, ClaimResponse{MarketID: marketID, Bettor: signer, Payout: payout})
}

// GetBalance handles GET /api/v1/accounts/{accountID}/balance
func (s *Service) GetBalance(w http.ResponseWriter, r *http.Request) {
	if s.balances == nil {
		writeError(w, "balance endpoint not available", http.StatusNotFound)
		return
	}
	account, ok := pathID(w, r, "accountID")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{
		Account: account,
		Balance: s.balances.Balance(account),
	})
}

// --- Helpers ---

// signer extracts the gateway-verified identity from the X-Signer
// header, writing 401 on absence or malformed hex.
func (s *Service) signer(w http.ResponseWriter, r *http.Request) (ident.ID, bool) {
	raw := r.Header.Get(signerHeader)
	if raw == "" {
		writeError(w, "missing "+signerHeader+" header", http.StatusUnauthorized)
		return ident.ID{}, false
	}
	id, err := ident.FromHex(raw)
	if err != nil {
		writeError(w, "malformed "+signerHeader+" header", http.StatusUnauthorized)
		return ident.ID{}, false
	}
	return id, true
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (ident.ID, bool) {
	id, err := ident.FromHex(chi.URLParam(r, param))
	if err != nil {
		writeError(w, "invalid "+param, http.StatusBadRequest)
		return ident.ID{}, false
	}
	return id, true
}

// errStatus maps engine/store/ledger sentinels to HTTP status codes.
// Conflicting state (wrong phase, duplicates, double claims, overflow)
// is 409: the request was well-formed but the book refuses it.
func errStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrInvalidEndTime),
		errors.Is(err, engine.ErrHashMismatch),
		errors.Is(err, engine.ErrQuestionTooLong),
		errors.Is(err, engine.ErrInvalidAmount),
		errors.Is(err, engine.ErrInvalidOutcome),
		errors.Is(err, model.ErrInvalidOutcome):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrUnauthorizedResolution),
		errors.Is(err, engine.ErrInvalidBettor):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrAlreadyExists),
		errors.Is(err, engine.ErrMarketResolved),
		errors.Is(err, engine.ErrBettingEnded),
		errors.Is(err, engine.ErrBettingNotEnded),
		errors.Is(err, engine.ErrMarketNotResolved),
		errors.Is(err, engine.ErrNotAWinner),
		errors.Is(err, engine.ErrAlreadyClaimed),
		errors.Is(err, money.ErrOverflow),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, limits.ErrStakeLimitExceeded),
		errors.Is(err, limits.ErrPoolLimitExceeded):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
