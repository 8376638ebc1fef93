package models

import "time"

// Cabin classes accepted by search.
const (
	CabinEconomy        = "economy"
	CabinPremiumEconomy = "premium_economy"
	CabinBusiness       = "business"
	CabinFirst          = "first"
)

// Flight is a bookable departure with its current fare.
type Flight struct {
	BaseModel
	Number         string    `gorm:"size:8;not null" json:"number"`
	Airline        string    `gorm:"size:2;not null;index" json:"airline"`
	Origin         string    `gorm:"size:3;not null;index:idx_flights_route" json:"origin"`
	Destination    string    `gorm:"size:3;not null;index:idx_flights_route" json:"destination"`
	DepartureAt    time.Time `gorm:"not null;index" json:"departure_at"`
	ArrivalAt      time.Time `gorm:"not null" json:"arrival_at"`
	Cabin          string    `gorm:"size:16;not null;default:economy" json:"cabin"`
	Stops          int       `gorm:"not null;default:0" json:"stops"`
	Price          float64   `gorm:"not null" json:"price"`
	Currency       string    `gorm:"size:3;not null;default:USD" json:"currency"`
	SeatsAvailable int       `gorm:"not null;default:0" json:"seats_available"`
}

// Duration is the scheduled block time.
func (f Flight) Duration() time.Duration {
	return f.ArrivalAt.Sub(f.DepartureAt)
}
