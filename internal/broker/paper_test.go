package broker

import (
	"context"
	"testing"
	"time"

	"ensemble-trader/internal/data"
	"ensemble-trader/internal/errors"
	"ensemble-trader/internal/models"
)

func replayCandles(n int) []models.Candle {
	candles := make([]models.Candle, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range candles {
		price := 100 + float64(i)
		candles[i] = models.Candle{
			Timestamp: start.AddDate(0, 0, i),
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    1000,
		}
	}
	return candles
}

func newTestPaperBroker(bars int) *PaperBroker {
	source := data.NewReplaySource(replayCandles(bars))
	return NewPaperBroker(source, func() float64 { return 100000 })
}

func TestPaperBrokerFeedsBarsInOrder(t *testing.T) {
	p := newTestPaperBroker(3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		bar, err := p.GetLatestBar(ctx, "NIFTY50")
		if err != nil {
			t.Fatal(err)
		}
		if bar.Close != 100+float64(i) {
			t.Fatalf("bar %d close = %.2f", i, bar.Close)
		}
	}
}

func TestPaperBrokerExhaustionReportsDataUnavailable(t *testing.T) {
	p := newTestPaperBroker(1)
	ctx := context.Background()

	if _, err := p.GetLatestBar(ctx, "NIFTY50"); err != nil {
		t.Fatal(err)
	}

	_, err := p.GetLatestBar(ctx, "NIFTY50")
	if !errors.Is(err, errors.ErrDataUnavailable) {
		t.Fatalf("err = %v, want ErrDataUnavailable", err)
	}

	var brokerErr *errors.BrokerError
	if !errors.As(err, &brokerErr) || brokerErr.Op != "get_latest_bar" {
		t.Fatalf("err = %v, want BrokerError with op get_latest_bar", err)
	}
}

func TestPaperBrokerFillsOrders(t *testing.T) {
	p := newTestPaperBroker(1)

	order := &models.Order{
		Symbol:   "NIFTY50",
		Side:     models.OrderSideBuy,
		Quantity: 10,
		Price:    101.5,
	}
	result, err := p.PlaceOrder(context.Background(), order)
	if err != nil {
		t.Fatal(err)
	}

	if result.Status != "COMPLETE" {
		t.Fatalf("status = %s", result.Status)
	}
	if order.FilledQty != 10 || order.AvgPrice != 101.5 {
		t.Fatalf("fill = %d @ %.2f", order.FilledQty, order.AvgPrice)
	}
	if order.ID == "" {
		t.Fatal("order has no id")
	}
}

func TestPaperBrokerRejectsZeroQuantity(t *testing.T) {
	p := newTestPaperBroker(1)

	_, err := p.PlaceOrder(context.Background(), &models.Order{Symbol: "NIFTY50", Quantity: 0})
	if !errors.Is(err, errors.ErrOrderRejected) {
		t.Fatalf("err = %v, want ErrOrderRejected", err)
	}
}

func TestPaperBrokerBalance(t *testing.T) {
	p := newTestPaperBroker(1)

	balance, err := p.GetBalance(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if balance.TotalEquity != 100000 {
		t.Fatalf("equity = %.2f", balance.TotalEquity)
	}
}

func TestPaperBrokerHonorsContext(t *testing.T) {
	p := newTestPaperBroker(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.GetLatestBar(ctx, "NIFTY50"); err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
