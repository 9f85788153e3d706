package invoice

import (
	"time"

	"github.com/hbarro/lares/internal/models"
)

// ResolvePeriod maps a purchase date to its billing period: purchases
// after the card's closing day bill into the next calendar month.
func ResolvePeriod(purchaseDate time.Time, closingDay int) models.Period {
	p := models.Period{Month: purchaseDate.Month(), Year: purchaseDate.Year()}
	if purchaseDate.Day() > closingDay {
		return p.Next()
	}
	return p
}
