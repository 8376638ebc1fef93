package models

import "time"

// Airport is keyed by its IATA code.
type Airport struct {
	Code      string    `gorm:"primaryKey;size:3" json:"code"`
	Name      string    `gorm:"size:128;not null;index" json:"name"`
	City      string    `gorm:"size:96;not null;index" json:"city"`
	Country   string    `gorm:"size:2;not null" json:"country"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}
