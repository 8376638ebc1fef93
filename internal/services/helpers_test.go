package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/skybook/internal/cache"
	"github.com/charlesng35/skybook/internal/kvstore"
	"github.com/charlesng35/skybook/internal/models"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newTestCache(t *testing.T) (*cache.Service, *kvstore.MemoryStore) {
	t.Helper()
	store := kvstore.NewMemoryStore(kvstore.WithJanitorInterval(0))
	t.Cleanup(func() { _ = store.Close() })
	return cache.New(store), store
}

type flightSpec struct {
	number  string
	airline string
	depart  time.Time
	block   time.Duration
	cabin   string
	stops   int
	price   float64
	curr    string
	seats   int
}

func seedFlights(t *testing.T, db *gorm.DB, origin, destination string, specs ...flightSpec) {
	t.Helper()
	for _, spec := range specs {
		if spec.cabin == "" {
			spec.cabin = models.CabinEconomy
		}
		if spec.curr == "" {
			spec.curr = "USD"
		}
		if spec.block == 0 {
			spec.block = 7 * time.Hour
		}
		flight := models.Flight{
			Number:         spec.number,
			Airline:        spec.airline,
			Origin:         origin,
			Destination:    destination,
			DepartureAt:    spec.depart,
			ArrivalAt:      spec.depart.Add(spec.block),
			Cabin:          spec.cabin,
			Stops:          spec.stops,
			Price:          spec.price,
			Currency:       spec.curr,
			SeatsAvailable: spec.seats,
		}
		require.NoError(t, db.Create(&flight).Error)
	}
}
