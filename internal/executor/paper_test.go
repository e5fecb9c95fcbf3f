package executor

import (
	"context"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/alanyoungcy/flashscan/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPaperFillsBothSides(t *testing.T) {
	p := NewPaper(0.002, discardLogger())

	buy, err := p.Execute(context.Background(), domain.TradeRequest{
		TokenID:     "tok",
		Side:        domain.OrderSideBuy,
		Price:       0.50,
		SizeUSD:     100,
		MaxSlippage: 3,
	})
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if !buy.Success {
		t.Fatalf("buy rejected: %s", buy.Message)
	}
	if math.Abs(buy.FilledPrice-0.50*1.002) > 1e-9 {
		t.Errorf("buy fill = %v, want %v", buy.FilledPrice, 0.50*1.002)
	}
	if math.Abs(buy.Shares-100/(0.50*1.002)) > 1e-9 {
		t.Errorf("buy shares = %v", buy.Shares)
	}
	if !strings.HasPrefix(buy.OrderID, "paper-") {
		t.Errorf("order id = %q", buy.OrderID)
	}

	sell, err := p.Execute(context.Background(), domain.TradeRequest{
		TokenID:     "tok",
		Side:        domain.OrderSideSell,
		Price:       0.60,
		SizeUSD:     50,
		MaxSlippage: 3,
	})
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if math.Abs(sell.FilledPrice-0.60*0.998) > 1e-9 {
		t.Errorf("sell fill = %v, want %v", sell.FilledPrice, 0.60*0.998)
	}

	if p.Orders() != 2 {
		t.Errorf("orders = %d, want 2", p.Orders())
	}
}

func TestPaperRejectsSlippageBreach(t *testing.T) {
	p := NewPaper(0.05, discardLogger())

	res, err := p.Execute(context.Background(), domain.TradeRequest{
		TokenID:     "tok",
		Side:        domain.OrderSideBuy,
		Price:       0.50,
		SizeUSD:     100,
		MaxSlippage: 3,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Success {
		t.Error("order filled past the slippage bound")
	}
	if p.Orders() != 0 {
		t.Errorf("rejected order counted: %d", p.Orders())
	}
}

func TestPaperRejectsInvalidOrders(t *testing.T) {
	p := NewPaper(0.002, discardLogger())

	cases := []domain.TradeRequest{
		{TokenID: "tok", Side: domain.OrderSideBuy, Price: 0, SizeUSD: 100},
		{TokenID: "tok", Side: domain.OrderSideBuy, Price: 0.5, SizeUSD: 0},
		{TokenID: "tok", Side: domain.OrderSideBuy, Price: -1, SizeUSD: 100},
	}
	for _, req := range cases {
		res, err := p.Execute(context.Background(), req)
		if err != nil {
			t.Fatalf("execute %+v: %v", req, err)
		}
		if res.Success {
			t.Errorf("invalid order filled: %+v", req)
		}
	}
}

func TestPaperHonorsContext(t *testing.T) {
	p := NewPaper(0.002, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Execute(ctx, domain.TradeRequest{
		TokenID: "tok",
		Side:    domain.OrderSideBuy,
		Price:   0.5,
		SizeUSD: 100,
	})
	if err == nil {
		t.Fatal("expected error on cancelled context")
	}
}
