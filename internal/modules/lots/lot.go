// Package lots tracks open purchase lots per instrument and compacts their round numbers.
package lots

import (
	"fmt"
	"time"
)

// DateLayout is the storage format of lot dates.
const DateLayout = "2006-01-02"

// Status of a lot.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Lot is one split-buy purchase. SequenceNumber is the buy round within the instrument.
type Lot struct {
	ID             int64      `json:"id"`
	Owner          string     `json:"owner"`
	Code           string     `json:"code"`
	Name           string     `json:"name,omitempty"`
	SequenceNumber int        `json:"sequence_number"`
	Price          float64    `json:"price"`
	Quantity       int        `json:"quantity"`
	Status         Status     `json:"status"`
	OpenedDate     time.Time  `json:"opened_date"`
	ClosedPrice    *float64   `json:"closed_price,omitempty"`
	ClosedDate     *time.Time `json:"closed_date,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Validate checks the fields a new lot must carry.
func (l *Lot) Validate() error {
	if l.Owner == "" {
		return fmt.Errorf("owner is required")
	}
	if l.Code == "" {
		return fmt.Errorf("code is required")
	}
	if l.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", l.Quantity)
	}
	if l.Price <= 0 {
		return fmt.Errorf("price must be positive, got %v", l.Price)
	}
	if l.OpenedDate.IsZero() {
		return fmt.Errorf("opened date is required")
	}
	return nil
}
