package stream

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xtrntr/matching-engine/internal/models"
	"go.uber.org/zap"
)

const (
	subscriberBuffer = 64
	writeWait        = 10 * time.Second
	pingPeriod       = 30 * time.Second
)

// Message is the envelope written to websocket clients
type Message struct {
	Type string         `json:"type"`
	Data []models.Trade `json:"data"`
}

// TradeStream publishes executed trades to websocket subscribers
type TradeStream struct {
	hub      *Hub[[]models.Trade]
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewTradeStream creates a trade stream. An empty origin list accepts any origin.
func NewTradeStream(logger *zap.Logger, allowedOrigins ...string) *TradeStream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TradeStream{
		hub:      NewHub[[]models.Trade](),
		upgrader: websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)},
		logger:   logger,
	}
}

// PublishTrades hands a batch to every subscriber without blocking
func (s *TradeStream) PublishTrades(trades []models.Trade) {
	if len(trades) == 0 || s.hub.Len() == 0 {
		return
	}
	batch := append([]models.Trade(nil), trades...)
	s.hub.Broadcast(batch)
}

// Subscribers returns the number of connected clients
func (s *TradeStream) Subscribers() int {
	return s.hub.Len()
}

// Dropped returns how many batches slow clients missed
func (s *TradeStream) Dropped() uint64 {
	return s.hub.Dropped()
}

// ServeHTTP upgrades the connection and streams trade batches until the
// client goes away
func (s *TradeStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := s.hub.Subscribe(subscriberBuffer)
	defer s.hub.Unsubscribe(sub)

	s.logger.Info("trade stream client connected", zap.String("remote", r.RemoteAddr))
	defer s.logger.Info("trade stream client disconnected", zap.String("remote", r.RemoteAddr))

	// reader detects the close frame; clients never send data
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case batch, ok := <-sub.C():
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(Message{Type: "trades", Data: batch}); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
