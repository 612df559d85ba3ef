package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"ensemble-trader/internal/errors"
	"ensemble-trader/internal/models"
)

// KiteBroker implements Broker against the Zerodha Kite Connect API.
type KiteBroker struct {
	client   *kiteconnect.Client
	exchange string

	mu     sync.RWMutex
	tokens map[string]int // tradingsymbol -> instrument token
}

// KiteConfig holds Kite Connect connection settings.
type KiteConfig struct {
	APIKey      string
	AccessToken string
	Exchange    string
}

// NewKiteBroker creates a Kite broker with a pre-generated access token.
func NewKiteBroker(cfg KiteConfig) (*KiteBroker, error) {
	if cfg.APIKey == "" || cfg.AccessToken == "" {
		return nil, errors.ErrNotAuthenticated
	}

	client := kiteconnect.New(cfg.APIKey)
	client.SetAccessToken(cfg.AccessToken)

	exchange := cfg.Exchange
	if exchange == "" {
		exchange = "NSE"
	}

	return &KiteBroker{
		client:   client,
		exchange: exchange,
		tokens:   make(map[string]int),
	}, nil
}

// Name identifies the implementation in logs.
func (k *KiteBroker) Name() string { return "kite" }

// GetLatestBar builds the current session bar from the live quote.
func (k *KiteBroker) GetLatestBar(ctx context.Context, symbol string) (models.Candle, error) {
	if err := ctx.Err(); err != nil {
		return models.Candle{}, err
	}

	key := fmt.Sprintf("%s:%s", k.exchange, symbol)
	quotes, err := k.client.GetQuote(key)
	if err != nil {
		return models.Candle{}, errors.NewBrokerError("get_latest_bar", symbol, "quote fetch failed", err)
	}

	q, ok := quotes[key]
	if !ok {
		return models.Candle{}, errors.NewBrokerError("get_latest_bar", symbol, "quote missing from response", errors.ErrDataUnavailable)
	}

	return models.Candle{
		Timestamp: q.LastTradeTime.Time,
		Open:      q.OHLC.Open,
		High:      q.OHLC.High,
		Low:       q.OHLC.Low,
		Close:     q.LastPrice,
		Volume:    int64(q.Volume),
	}, nil
}

// GetHistorical fetches daily bars for the range.
func (k *KiteBroker) GetHistorical(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	token, err := k.instrumentToken(symbol)
	if err != nil {
		return nil, err
	}

	bars, err := k.client.GetHistoricalData(token, "day", from, to, false, false)
	if err != nil {
		return nil, errors.NewBrokerError("get_historical", symbol, "historical fetch failed", err)
	}

	candles := make([]models.Candle, len(bars))
	for i, b := range bars {
		candles[i] = models.Candle{
			Timestamp: b.Date.Time,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    int64(b.Volume),
		}
	}
	return candles, nil
}

// PlaceOrder submits a regular market order with its bracket prices attached
// as metadata; protective exits are managed locally, not broker-side.
func (k *KiteBroker) PlaceOrder(ctx context.Context, order *models.Order) (*models.OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params := kiteconnect.OrderParams{
		Exchange:        k.exchange,
		Tradingsymbol:   order.Symbol,
		TransactionType: string(order.Side),
		OrderType:       "MARKET",
		Product:         "MIS",
		Quantity:        order.Quantity,
		Validity:        "DAY",
		Tag:             order.Tag,
	}

	resp, err := k.client.PlaceOrder(kiteconnect.VarietyRegular, params)
	if err != nil {
		return nil, errors.NewBrokerError("place_order", order.Symbol, "order placement failed", err)
	}

	order.ID = resp.OrderID
	order.Status = "PLACED"
	order.PlacedAt = time.Now()

	return &models.OrderResult{
		OrderID: resp.OrderID,
		Status:  "PLACED",
		Message: "order placed",
	}, nil
}

// GetBalance returns the equity segment margins.
func (k *KiteBroker) GetBalance(ctx context.Context) (*models.Balance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	margins, err := k.client.GetUserMargins()
	if err != nil {
		return nil, errors.NewBrokerError("get_balance", "", "margin fetch failed", err)
	}

	return &models.Balance{
		AvailableCash: margins.Equity.Available.Cash,
		TotalEquity:   margins.Equity.Net,
	}, nil
}

func (k *KiteBroker) instrumentToken(symbol string) (int, error) {
	k.mu.RLock()
	token, ok := k.tokens[symbol]
	k.mu.RUnlock()
	if ok {
		return token, nil
	}

	instruments, err := k.client.GetInstruments()
	if err != nil {
		return 0, errors.NewBrokerError("instrument_token", symbol, "instrument dump failed", err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	for _, inst := range instruments {
		if inst.Exchange == k.exchange {
			k.tokens[inst.Tradingsymbol] = inst.InstrumentToken
		}
	}

	token, ok = k.tokens[symbol]
	if !ok {
		return 0, errors.NewBrokerError("instrument_token", symbol, "instrument not found", errors.ErrDataUnavailable)
	}
	return token, nil
}
