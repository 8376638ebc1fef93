package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/skybook/internal/cache"
	"github.com/charlesng35/skybook/internal/models"
	"github.com/charlesng35/skybook/pkg/logger"
	"github.com/charlesng35/skybook/pkg/validator"
)

const (
	defaultHistoryDays = 30
	maxHistoryDays     = 365
)

// PricePoint aggregates one UTC day of observed fares.
type PricePoint struct {
	Date    string  `json:"date"`
	Min     float64 `json:"min"`
	Avg     float64 `json:"avg"`
	Max     float64 `json:"max"`
	Samples int     `json:"samples"`
}

// PriceHistory is the cached daily series for a route.
type PriceHistory struct {
	Origin      string       `json:"origin"`
	Destination string       `json:"destination"`
	Days        int          `json:"days"`
	Points      []PricePoint `json:"points"`
	Lowest      float64      `json:"lowest"`
	Highest     float64      `json:"highest"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// QuoteInput is a newly observed fare.
type QuoteInput struct {
	Origin        string             `json:"origin" validate:"required,iata"`
	Destination   string             `json:"destination" validate:"required,iata,nefield=Origin"`
	Airline       string             `json:"airline" validate:"omitempty,airline"`
	Cabin         string             `json:"cabin" validate:"omitempty,oneof=economy premium_economy business first"`
	Price         float64            `json:"price" validate:"gt=0"`
	Currency      string             `json:"currency" validate:"omitempty,len=3,alpha"`
	ObservedAt    time.Time          `json:"observed_at"`
	FareBreakdown map[string]float64 `json:"fare_breakdown,omitempty"`
}

// LatestQuote is the most recent fare stored per route.
type LatestQuote struct {
	Airline    string    `json:"airline,omitempty"`
	Cabin      string    `json:"cabin"`
	Price      float64   `json:"price"`
	Currency   string    `json:"currency"`
	ObservedAt time.Time `json:"observed_at"`
}

// PriceHistoryService records fare snapshots and serves daily aggregates.
type PriceHistoryService struct {
	db    *gorm.DB
	cache *cache.Service
	opts  options
}

// NewPriceHistoryService constructs the service.
func NewPriceHistoryService(db *gorm.DB, c *cache.Service, opts ...Option) (*PriceHistoryService, error) {
	if db == nil {
		return nil, errors.New("price history service: db is required")
	}
	if c == nil {
		return nil, errors.New("price history service: cache is required")
	}
	o := buildOptions(options{
		ttl: cache.PriceHistoryTTL,
		log: logger.WithModule("price_history"),
	}, opts)
	return &PriceHistoryService{db: db, cache: c, opts: o}, nil
}

// History returns min/avg/max fares per day for the last days days.
// days <= 0 selects the default 30-day window.
func (s *PriceHistoryService) History(ctx context.Context, origin, destination string, days int) (*PriceHistory, error) {
	origin = strings.ToUpper(strings.TrimSpace(origin))
	destination = strings.ToUpper(strings.TrimSpace(destination))
	if days <= 0 {
		days = defaultHistoryDays
	}
	if days > maxHistoryDays {
		return nil, fmt.Errorf("%w: days must not exceed %d", ErrInvalidInput, maxHistoryDays)
	}
	route := struct {
		Origin      string `json:"origin" validate:"required,iata"`
		Destination string `json:"destination" validate:"required,iata,nefield=Origin"`
	}{origin, destination}
	if err := validator.ValidateStruct(route); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	key := cache.PriceHistoryKey(origin, destination, days)
	if cached, ok := cache.Get[PriceHistory](ctx, s.cache, key); ok {
		return &cached, nil
	}

	now := utcNow(s.opts)
	since := now.Truncate(24*time.Hour).AddDate(0, 0, -(days - 1))

	var snapshots []models.PriceSnapshot
	err := s.db.WithContext(ctx).
		Where("origin = ? AND destination = ?", origin, destination).
		Where("observed_at >= ?", since).
		Order("observed_at ASC").
		Find(&snapshots).Error
	if err != nil {
		return nil, fmt.Errorf("price history service: query snapshots: %w", err)
	}

	history := aggregateDaily(snapshots)
	history.Origin = origin
	history.Destination = destination
	history.Days = days
	history.GeneratedAt = now

	s.cache.SetWithTTL(ctx, key, history, s.opts.ttl)
	return &history, nil
}

func aggregateDaily(snapshots []models.PriceSnapshot) PriceHistory {
	type bucket struct {
		min, max, sum float64
		n             int
	}
	buckets := make(map[string]*bucket)
	out := PriceHistory{Points: []PricePoint{}}
	for i, snap := range snapshots {
		day := snap.ObservedAt.UTC().Format(dateLayout)
		b, ok := buckets[day]
		if !ok {
			b = &bucket{min: snap.Price, max: snap.Price}
			buckets[day] = b
		}
		b.min = math.Min(b.min, snap.Price)
		b.max = math.Max(b.max, snap.Price)
		b.sum += snap.Price
		b.n++

		if i == 0 || snap.Price < out.Lowest {
			out.Lowest = snap.Price
		}
		if snap.Price > out.Highest {
			out.Highest = snap.Price
		}
	}

	for day, b := range buckets {
		out.Points = append(out.Points, PricePoint{
			Date:    day,
			Min:     b.min,
			Avg:     math.Round(b.sum/float64(b.n)*100) / 100,
			Max:     b.max,
			Samples: b.n,
		})
	}
	sort.Slice(out.Points, func(i, j int) bool { return out.Points[i].Date < out.Points[j].Date })
	return out
}

// RecordQuote persists a snapshot, marks the route as tracked, stores it as
// the route's latest quote and drops the cached history windows.
func (s *PriceHistoryService) RecordQuote(ctx context.Context, in QuoteInput) (*models.PriceSnapshot, error) {
	in.Origin = strings.ToUpper(strings.TrimSpace(in.Origin))
	in.Destination = strings.ToUpper(strings.TrimSpace(in.Destination))
	in.Airline = strings.ToUpper(strings.TrimSpace(in.Airline))
	in.Cabin = strings.ToLower(strings.TrimSpace(in.Cabin))
	if in.Cabin == "" {
		in.Cabin = models.CabinEconomy
	}
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Currency == "" {
		in.Currency = defaultSearchCurrency
	}
	if err := validator.ValidateStruct(in); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if in.ObservedAt.IsZero() {
		in.ObservedAt = utcNow(s.opts)
	}

	var known int64
	if err := s.db.WithContext(ctx).Model(&models.Airport{}).
		Where("code IN ?", []string{in.Origin, in.Destination}).
		Count(&known).Error; err != nil {
		return nil, fmt.Errorf("price history service: lookup airports: %w", err)
	}
	if known != 2 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoute, cache.RouteField(in.Origin, in.Destination))
	}

	snapshot := &models.PriceSnapshot{
		Origin:      in.Origin,
		Destination: in.Destination,
		Airline:     in.Airline,
		Cabin:       in.Cabin,
		Price:       in.Price,
		Currency:    in.Currency,
		ObservedAt:  in.ObservedAt.UTC(),
	}
	if len(in.FareBreakdown) > 0 {
		raw, err := json.Marshal(in.FareBreakdown)
		if err != nil {
			return nil, fmt.Errorf("price history service: encode fare breakdown: %w", err)
		}
		snapshot.FareBreakdown = datatypes.JSON(raw)
	}
	if err := s.db.WithContext(ctx).Create(snapshot).Error; err != nil {
		return nil, fmt.Errorf("price history service: create snapshot: %w", err)
	}

	route := cache.RouteField(in.Origin, in.Destination)
	s.cache.SAdd(ctx, cache.TrackedRoutesKey(), route)
	s.cache.HSet(ctx, cache.LatestQuotesKey(), route, LatestQuote{
		Airline:    snapshot.Airline,
		Cabin:      snapshot.Cabin,
		Price:      snapshot.Price,
		Currency:   snapshot.Currency,
		ObservedAt: snapshot.ObservedAt,
	})
	for _, days := range cache.PriceHistoryWindows {
		s.cache.Del(ctx, cache.PriceHistoryKey(in.Origin, in.Destination, days))
	}

	s.opts.log.Debug("price quote recorded",
		zap.String("route", route),
		zap.Float64("price", snapshot.Price),
		zap.String("currency", snapshot.Currency),
	)
	return snapshot, nil
}

// TrackedRoutes lists the routes that have received quotes, sorted.
func (s *PriceHistoryService) TrackedRoutes(ctx context.Context) []string {
	routes := cache.SMembers[string](ctx, s.cache, cache.TrackedRoutesKey())
	sort.Strings(routes)
	return routes
}

// LatestQuotes returns the most recent quote per tracked route.
func (s *PriceHistoryService) LatestQuotes(ctx context.Context) map[string]LatestQuote {
	return cache.HGetAll[LatestQuote](ctx, s.cache, cache.LatestQuotesKey())
}

// PruneSnapshots deletes snapshots observed before cutoff and reports how many were removed.
func (s *PriceHistoryService) PruneSnapshots(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("observed_at < ?", cutoff.UTC()).Delete(&models.PriceSnapshot{})
	if res.Error != nil {
		return 0, fmt.Errorf("price history service: prune snapshots: %w", res.Error)
	}
	return res.RowsAffected, nil
}
