package models

import (
	"time"
)

// Retailer is a known store chain issuing receipts
type Retailer struct {
	ID        int       `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
