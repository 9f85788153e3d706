package interfaces

import (
	"context"
	"time"

	"github.com/hbarro/lares/internal/models"
)

// QuoteClient fetches read-only market prices for display valuation.
type QuoteClient interface {
	GetQuote(ctx context.Context, ticker string) (*models.Quote, error)
	GetQuotes(ctx context.Context, tickers []string) ([]*models.Quote, error)
}

// AuthState is one event on the identity provider's auth-state stream.
type AuthState struct {
	UserID   string
	SignedIn bool
	At       time.Time
}

// AuthWatcher is the push-style "authentication state changed" stream.
// Subscribers receive an event on every sign-in and sign-out.
type AuthWatcher interface {
	Subscribe() (<-chan AuthState, func())
	Publish(state AuthState)
}
