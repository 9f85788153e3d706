package investment

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/hbarro/lares/internal/models"
)

// Position is the aggregate state of an asset at one point of its
// movement log.
type Position struct {
	Quantity      float64
	AveragePrice  float64
	TotalInvested float64
}

// applyBuy folds a buy into the position: invested grows by qty*price and
// the average is recomputed over the new quantity.
func applyBuy(p Position, qty, price float64) Position {
	q := decimal.NewFromFloat(p.Quantity).Add(decimal.NewFromFloat(qty))
	invested := decimal.NewFromFloat(p.TotalInvested).
		Add(decimal.NewFromFloat(qty).Mul(decimal.NewFromFloat(price)))
	avg := invested.Div(q)

	return Position{
		Quantity:      mustFloat(q),
		AveragePrice:  mustFloat(avg),
		TotalInvested: mustFloat(invested),
	}
}

// applySell folds a sell: quantity shrinks, invested shrinks by the sold
// quantity at the running average, and the average holds — unless the
// position closes out, which resets invested and average to zero.
func applySell(p Position, qty float64) Position {
	q := decimal.NewFromFloat(p.Quantity).Sub(decimal.NewFromFloat(qty))
	if q.IsZero() {
		return Position{}
	}
	invested := decimal.NewFromFloat(p.TotalInvested).
		Sub(decimal.NewFromFloat(qty).Mul(decimal.NewFromFloat(p.AveragePrice)))

	return Position{
		Quantity:      mustFloat(q),
		AveragePrice:  p.AveragePrice,
		TotalInvested: mustFloat(invested),
	}
}

// Replay recomputes a position from scratch by folding the full movement
// log in (date, seq) order. Dividends never change the position. Used
// after a movement deletion: average cost is not invertible once
// intervening sells have consumed cost basis, so the only safe correction
// is a full recompute.
func Replay(movements []*models.Movement) Position {
	var p Position
	for _, mv := range movements {
		switch mv.Kind {
		case models.MovementBuy:
			p = applyBuy(p, mv.Quantity, mv.PricePerUnit)
		case models.MovementSell:
			p = applySell(p, mv.Quantity)
		}
	}
	return p
}

// QuantityAsOf replays only quantities for movements dated at or before
// cutoff. Dividend bookings snapshot the holding this way.
func QuantityAsOf(movements []*models.Movement, cutoff time.Time) float64 {
	q := decimal.Zero
	for _, mv := range movements {
		if mv.Date.After(cutoff) {
			continue
		}
		switch mv.Kind {
		case models.MovementBuy:
			q = q.Add(decimal.NewFromFloat(mv.Quantity))
		case models.MovementSell:
			q = q.Sub(decimal.NewFromFloat(mv.Quantity))
		}
	}
	return mustFloat(q)
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
