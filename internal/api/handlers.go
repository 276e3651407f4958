package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/xtrntr/matching-engine/internal/auth"
	"github.com/xtrntr/matching-engine/internal/exchange"
	"github.com/xtrntr/matching-engine/internal/models"
	"go.uber.org/zap"
)

// Limits bound the query parameters accepted by the read endpoints
type Limits struct {
	DefaultDepth       int
	DefaultTradesLimit int
	MaxQuerySize       int
}

// DefaultLimits returns the limits used when none are configured
func DefaultLimits() Limits {
	return Limits{DefaultDepth: 100, DefaultTradesLimit: 50, MaxQuerySize: 1000}
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	Exchange *exchange.Exchange
	limits   Limits
	logger   *zap.Logger
}

// NewHandler creates a new handler
func NewHandler(ex *exchange.Exchange, limits Limits, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Exchange: ex, limits: limits, logger: logger}
}

// Routes mounts the API on r. Order endpoints are wrapped by gw.
func (h *Handler) Routes(r chi.Router, gw *auth.Gateway) {
	r.Get("/healthz", h.Health)
	r.Get("/api/orderbook/{symbol}", h.GetOrderBook)
	r.Get("/api/trades/{symbol}", h.GetTrades)

	// Signed routes
	r.Group(func(r chi.Router) {
		r.Use(gw.Middleware)
		r.Post("/api/orders/{symbol}", h.PlaceOrder)
		r.Delete("/api/orders/{symbol}/{orderID}", h.CancelOrder)
	})
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type placeOrderRequest struct {
	Side        string          `json:"side"`
	Price       decimal.Decimal `json:"price"`
	Quantity    decimal.Decimal `json:"quantity"`
	TimeInForce string          `json:"timeInForce"`
}

type orderResponse struct {
	models.Order
	Status models.Status `json:"status"`
}

type placeOrderResponse struct {
	Order  orderResponse  `json:"order"`
	Trades []models.Trade `json:"trades"`
}

// PlaceOrder validates a limit order and submits it for matching
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	symbol := exchange.NormalizeSymbol(chi.URLParam(r, "symbol"))

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := req.toOrder()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := h.Exchange.Submit(symbol, order)
	if err != nil {
		h.submitFailed(w, r, symbol, err)
		return
	}

	h.logger.Info("order processed",
		zap.String("symbol", symbol),
		zap.String("order_id", out.Order.ID),
		zap.String("side", string(out.Order.Side)),
		zap.String("time_in_force", string(out.Order.TimeInForce)),
		zap.String("status", string(out.Status)),
		zap.Int("trades", len(out.Trades)),
	)

	writeJSON(w, http.StatusCreated, placeOrderResponse{
		Order:  orderResponse{Order: out.Order, Status: out.Status},
		Trades: out.Trades,
	})
}

func (h *Handler) submitFailed(w http.ResponseWriter, r *http.Request, symbol string, err error) {
	var invariant *exchange.InvariantError
	switch {
	case errors.Is(err, exchange.ErrInvalidOrder):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &invariant):
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		h.logger.Error("submit failed", zap.String("symbol", symbol), zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (req placeOrderRequest) toOrder() (models.Order, error) {
	side, err := models.ParseSide(req.Side)
	if err != nil {
		return models.Order{}, err
	}
	tif, err := models.ParseTimeInForce(req.TimeInForce)
	if err != nil {
		return models.Order{}, err
	}
	if err := models.CheckAmount("price", req.Price); err != nil {
		return models.Order{}, err
	}
	if err := models.CheckAmount("quantity", req.Quantity); err != nil {
		return models.Order{}, err
	}
	return models.Order{Side: side, Price: req.Price, Quantity: req.Quantity, TimeInForce: tif}, nil
}

// CancelOrder removes a resting order from the book
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	symbol := exchange.NormalizeSymbol(chi.URLParam(r, "symbol"))
	orderID := chi.URLParam(r, "orderID")

	order, err := h.Exchange.Cancel(symbol, orderID)
	if errors.Is(err, exchange.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		h.logger.Error("cancel failed", zap.String("symbol", symbol), zap.String("order_id", orderID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.logger.Info("order cancelled", zap.String("symbol", symbol), zap.String("order_id", orderID))
	writeJSON(w, http.StatusOK, orderResponse{Order: order, Status: models.StatusCancelled})
}

// GetOrderBook returns the aggregated levels of a symbol
func (h *Handler) GetOrderBook(w http.ResponseWriter, r *http.Request) {
	depth, err := h.queryInt(r, "depth", h.limits.DefaultDepth)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.Exchange.Snapshot(chi.URLParam(r, "symbol"), depth))
}

// GetTrades returns the most recent trades of a symbol, newest first
func (h *Handler) GetTrades(w http.ResponseWriter, r *http.Request) {
	limit, err := h.queryInt(r, "limit", h.limits.DefaultTradesLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.Exchange.RecentTrades(chi.URLParam(r, "symbol"), limit))
}

// queryInt parses a positive integer query parameter bounded by MaxQuerySize
func (h *Handler) queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw, present := r.URL.Query()[name]
	if !present {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw[0])
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive", name)
	}
	if h.limits.MaxQuerySize > 0 && n > h.limits.MaxQuerySize {
		return 0, fmt.Errorf("%s must not exceed %d", name, h.limits.MaxQuerySize)
	}
	return n, nil
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
