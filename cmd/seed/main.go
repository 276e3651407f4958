package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xtrntr/matching-engine/internal/auth"
	"github.com/xtrntr/matching-engine/internal/logger"
	"go.uber.org/zap"
)

type orderRequest struct {
	Side        string `json:"side"`
	Price       string `json:"price"`
	Quantity    string `json:"quantity"`
	TimeInForce string `json:"timeInForce,omitempty"`
}

type client struct {
	baseURL string
	key     string
	secret  string
	http    *http.Client
}

// placeOrder signs and submits one order, returning the decoded response
func (c *client) placeOrder(ctx context.Context, symbol string, order orderRequest) (map[string]any, error) {
	body, err := json.Marshal(order)
	if err != nil {
		return nil, err
	}
	path := "/api/orders/" + symbol
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(auth.HeaderAPIKey, c.key)
	req.Header.Set(auth.HeaderTimestamp, ts)
	req.Header.Set(auth.HeaderSignature, auth.Sign(c.secret, ts, http.MethodPost, path, body))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to place order: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return out, nil
}

// Seed a running server with a ladder of resting orders and one crossing order
func main() {
	baseURL := flag.String("url", "http://localhost:8080", "server base URL")
	symbol := flag.String("symbol", "BTCZAR", "symbol to seed")
	mid := flag.String("mid", "1000000", "mid price of the ladder")
	step := flag.String("step", "100", "price distance between levels")
	levels := flag.Int("levels", 5, "levels per side")
	qty := flag.String("qty", "0.1", "quantity per order")
	flag.Parse()

	log, err := logger.New(os.Getenv("LOG_LEVEL"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	midPrice, err := decimal.NewFromString(*mid)
	if err != nil {
		log.Fatal("invalid mid price", zap.Error(err))
	}
	stepSize, err := decimal.NewFromString(*step)
	if err != nil {
		log.Fatal("invalid step", zap.Error(err))
	}

	orderQty, err := decimal.NewFromString(*qty)
	if err != nil || !orderQty.IsPositive() {
		log.Fatal("invalid quantity", zap.String("qty", *qty))
	}

	c := &client{
		baseURL: *baseURL,
		key:     envOr("API_KEY", "test-key"),
		secret:  envOr("API_SECRET", "test-secret"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	ctx := context.Background()

	// Resting ladder on both sides of the mid
	for i := 1; i <= *levels; i++ {
		offset := stepSize.Mul(decimal.NewFromInt(int64(i)))
		for _, o := range []orderRequest{
			{Side: "BUY", Price: midPrice.Sub(offset).String(), Quantity: orderQty.String()},
			{Side: "SELL", Price: midPrice.Add(offset).String(), Quantity: orderQty.String()},
		} {
			if _, err := c.placeOrder(ctx, *symbol, o); err != nil {
				log.Fatal("failed to seed order", zap.String("side", o.Side), zap.String("price", o.Price), zap.Error(err))
			}
		}
	}
	log.Info("seeded ladder", zap.String("symbol", *symbol), zap.Int("levels", *levels))

	// An IOC buy that sweeps the two best asks
	crossing := orderRequest{
		Side:        "BUY",
		Price:       midPrice.Add(stepSize.Mul(decimal.NewFromInt(2))).String(),
		Quantity:    orderQty.Mul(decimal.NewFromInt(2)).String(),
		TimeInForce: "IOC",
	}
	out, err := c.placeOrder(ctx, *symbol, crossing)
	if err != nil {
		log.Fatal("failed to place crossing order", zap.Error(err))
	}
	trades, _ := out["trades"].([]any)
	order, _ := out["order"].(map[string]any)
	log.Info("placed crossing order",
		zap.Any("status", order["status"]),
		zap.Int("trades", len(trades)),
	)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
