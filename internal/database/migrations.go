package database

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/skybook/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Airport{},
		&models.Flight{},
		&models.PriceSnapshot{},
	)
}

// DefaultAirports is the reference data inserted by SeedData.
var DefaultAirports = []models.Airport{
	{Code: "AMS", Name: "Amsterdam Airport Schiphol", City: "Amsterdam", Country: "NL"},
	{Code: "ATL", Name: "Hartsfield-Jackson Atlanta International", City: "Atlanta", Country: "US"},
	{Code: "BOS", Name: "Logan International", City: "Boston", Country: "US"},
	{Code: "CDG", Name: "Charles de Gaulle", City: "Paris", Country: "FR"},
	{Code: "DXB", Name: "Dubai International", City: "Dubai", Country: "AE"},
	{Code: "FRA", Name: "Frankfurt am Main", City: "Frankfurt", Country: "DE"},
	{Code: "HND", Name: "Haneda", City: "Tokyo", Country: "JP"},
	{Code: "JFK", Name: "John F. Kennedy International", City: "New York", Country: "US"},
	{Code: "LAX", Name: "Los Angeles International", City: "Los Angeles", Country: "US"},
	{Code: "LGA", Name: "LaGuardia", City: "New York", Country: "US"},
	{Code: "LHR", Name: "Heathrow", City: "London", Country: "GB"},
	{Code: "LGW", Name: "Gatwick", City: "London", Country: "GB"},
	{Code: "MAD", Name: "Adolfo Suarez Madrid-Barajas", City: "Madrid", Country: "ES"},
	{Code: "NRT", Name: "Narita International", City: "Tokyo", Country: "JP"},
	{Code: "ORD", Name: "O'Hare International", City: "Chicago", Country: "US"},
	{Code: "SFO", Name: "San Francisco International", City: "San Francisco", Country: "US"},
	{Code: "SIN", Name: "Changi", City: "Singapore", Country: "SG"},
	{Code: "SYD", Name: "Kingsford Smith", City: "Sydney", Country: "AU"},
}

// SeedData inserts the reference airports. Existing rows are left untouched.
func SeedData(db *gorm.DB) error {
	airports := make([]models.Airport, len(DefaultAirports))
	copy(airports, DefaultAirports)
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&airports).Error
}
