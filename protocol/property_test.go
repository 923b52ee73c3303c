package protocol

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"
)

func drawDecimal(t *rapid.T, label string, max int64) decimal.Decimal {
	return decimal.New(rapid.Int64Range(1, max).Draw(t, label), -2)
}

func TestProperty_TradeLinesParseBack(t *testing.T) {
	parser := NewParser(1)

	rapid.Check(t, func(t *rapid.T) {
		symbol := rapid.StringMatching(`[A-Za-z][A-Za-z0-9.]{0,7}`).Draw(t, "symbol")
		amount := drawDecimal(t, "amount", 1_000_000)
		price := drawDecimal(t, "price", 1_000_000)
		userID := rapid.Int64Range(0, 1<<40).Draw(t, "userID")
		verb := rapid.SampledFrom([]string{CommandBuy, CommandSell}).Draw(t, "verb")

		line := fmt.Sprintf("%s %s %s %s %d", verb, symbol, amount, price, userID)
		cmd, err := parser.Parse(line)
		if err != nil {
			t.Fatalf("parse %q: %v", line, err)
		}

		var got decimal.Decimal
		switch c := cmd.(type) {
		case BuyCommand:
			got = c.Request.Total()
			if c.Request.Symbol != symbol || c.Request.UserID != userID {
				t.Fatalf("parse %q: got %+v", line, c.Request)
			}
		case SellCommand:
			got = c.Request.Total()
			if c.Request.Symbol != symbol || c.Request.UserID != userID {
				t.Fatalf("parse %q: got %+v", line, c.Request)
			}
		}
		if cmd.Name() != verb {
			t.Fatalf("parse %q: got command %s", line, cmd.Name())
		}
		if !got.Equal(amount.Mul(price)) {
			t.Fatalf("parse %q: total %s, want %s", line, got, amount.Mul(price))
		}
	})
}

// A BUY followed by a SELL of the same amount at the same price restores the cash balance
func TestProperty_BuyThenSellConservesCash(t *testing.T) {
	ctx := context.Background()

	rapid.Check(t, func(t *rapid.T) {
		interp := newTestInterpreter(t)

		amount := drawDecimal(t, "amount", 10_000)
		price := drawDecimal(t, "price", 10_000)
		affordable := amount.Mul(price).LessThanOrEqual(decimal.NewFromInt(100))

		buy, _ := interp.Execute(ctx, fmt.Sprintf("BUY MSFT %s %s 1", amount, price))
		if affordable != (buy.Code == CodeOK) {
			t.Fatalf("buy %s @ %s: got %s, affordable=%v", amount, price, buy.Status(), affordable)
		}

		sell, _ := interp.Execute(ctx, fmt.Sprintf("SELL MSFT %s %s 1", amount, price))
		if affordable != (sell.Code == CodeOK) {
			t.Fatalf("sell %s @ %s: got %s, affordable=%v", amount, price, sell.Status(), affordable)
		}

		balance, _ := interp.Execute(ctx, "BALANCE 1")
		if balance.Lines[0] != "Balance for user Robby Bobby: $100.00" {
			t.Fatalf("balance after round trip: %q", balance.Lines[0])
		}
	})
}
