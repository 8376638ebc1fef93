package models

import (
	"time"

	"gorm.io/datatypes"
)

// PriceSnapshot is one observed fare for a route. Snapshots feed the price
// history charts and are pruned by the retention job.
type PriceSnapshot struct {
	BaseModel
	Origin        string         `gorm:"size:3;not null;index:idx_snapshots_route" json:"origin"`
	Destination   string         `gorm:"size:3;not null;index:idx_snapshots_route" json:"destination"`
	Airline       string         `gorm:"size:2" json:"airline,omitempty"`
	Cabin         string         `gorm:"size:16;not null;default:economy" json:"cabin"`
	Price         float64        `gorm:"not null" json:"price"`
	Currency      string         `gorm:"size:3;not null;default:USD" json:"currency"`
	ObservedAt    time.Time      `gorm:"not null;index" json:"observed_at"`
	FareBreakdown datatypes.JSON `json:"fare_breakdown,omitempty"`
}
