package discount

import "github.com/nekogravitycat/court-reservation-engine/internal/pkg/money"

type Kind string

const (
	KindRecurring        Kind = "recurring"
	KindEarlyBird        Kind = "early_bird"
	KindHolidaySurcharge Kind = "holiday_surcharge"
	KindSeasonal         Kind = "seasonal"
)

type Unit string

const (
	UnitPercent Unit = "percent"
	UnitFixed   Unit = "fixed"
)

const (
	holidaySurchargePriority = 100
	seasonalPriority         = 80
)

// Rule is an active discount rule of a venue, optionally scoped to one court.
type Rule struct {
	ID          string
	VenueID     string
	CourtID     string // empty applies to every court of the venue
	Name        string
	Description string
	Type        Kind
	Unit        Unit
	Value       float64 // percent, or pesos for UnitFixed
	MinWeeks    int
	AdvanceDays int
	ValidFrom   string // YYYY-MM-DD, empty means unbounded
	ValidUntil  string
	Priority    int
}

// Holiday adjusts the price of every booking falling inside [StartDate, EndDate].
type Holiday struct {
	ID             string
	VenueID        string
	Name           string
	StartDate      string
	EndDate        string
	Multiplier     float64
	FixedSurcharge *money.Money
}

// Applied is one contribution to the batch price. Increases are surcharges.
type Applied struct {
	Type        Kind        `json:"type"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Amount      money.Money `json:"amount"`
	IsIncrease  bool        `json:"is_increase"`
	Priority    int         `json:"priority"`
}

// Input describes the batch being priced.
type Input struct {
	VenueID         string
	CourtID         string
	StartDate       string // civil date of the first slot
	EndDate         string // civil date of the last slot
	RecurrenceWeeks int
	DaysInAdvance   int
	BasePrice       money.Money
}

// Result is the catalog's verdict for one batch.
type Result struct {
	FinalPrice    money.Money
	TotalDiscount money.Money // negative when surcharges dominate
	Discounts     []Applied
}
