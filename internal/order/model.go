package order

import (
	"time"

	"trattoria-be/internal/pricing"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Terminal statuses freeze the order: no further transitions are accepted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// validTransitions encodes the order lifecycle. Cancellation is allowed from
// any non-terminal state.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusPreparing, StatusCompleted, StatusCancelled},
	StatusPreparing: {StatusCompleted, StatusCancelled},
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusCompleted, StatusCancelled:
		return Status(s), true
	}
	return "", false
}

type Fulfillment string

const (
	FulfillmentDelivery Fulfillment = "delivery"
	FulfillmentPickup   Fulfillment = "pickup"
)

// AddOnSelection captures the add-on's price at selection time so historical
// orders stay stable when the catalog changes.
type AddOnSelection struct {
	AddOnID string  `json:"addon_id"`
	Name    string  `json:"name"`
	Price   float64 `json:"price"`
}

type Line struct {
	ID        string
	ItemID    string
	Name      string
	Quantity  int
	Size      string
	UnitPrice float64
	// AddOns is an ordered list; order matters for conditional pricing.
	AddOns []AddOnSelection
	Notes  string

	ConditionalPricing bool
	IncludedFreeCount  int

	// Total is the line's computed price, authoritative from the engine.
	Total float64
}

// Rules returns the pricing configuration this line carries.
func (l Line) Rules() pricing.Rules {
	return pricing.Rules{
		ConditionalPricing: l.ConditionalPricing,
		IncludedFreeCount:  l.IncludedFreeCount,
	}
}

type Order struct {
	ID             string
	Number         string
	IdempotencyKey string

	CustomerName string
	Phone        string
	Fulfillment  Fulfillment
	Address      string

	Lines []Line
	Total float64

	Status        Status
	PaymentMethod string
	Paid          bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
