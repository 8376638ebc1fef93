package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/charlesng35/skybook/internal/cache"
	"github.com/charlesng35/skybook/internal/models"
	"github.com/charlesng35/skybook/pkg/logger"
	"github.com/charlesng35/skybook/pkg/validator"
)

const (
	dateLayout            = "2006-01-02"
	defaultSearchResults  = 50
	defaultSearchCurrency = "USD"
)

// Sort orders accepted by search.
const (
	SortByPrice     = "price"
	SortByDuration  = "duration"
	SortByDeparture = "departure"
)

// SearchResult is the cached payload of one flight search.
type SearchResult struct {
	Params     cache.SearchParams `json:"params"`
	Flights    []models.Flight    `json:"flights"`
	Count      int                `json:"count"`
	SearchedAt time.Time          `json:"searched_at"`
	Cached     bool               `json:"cached"`
}

// RecentRecorder stores a user's recent searches.
type RecentRecorder interface {
	RecordRecent(ctx context.Context, userID string, entry RecentSearch) bool
}

// FlightSearchService answers flight searches through the cache.
type FlightSearchService struct {
	db     *gorm.DB
	cache  *cache.Service
	recent RecentRecorder
	group  singleflight.Group
	opts   options
}

// NewFlightSearchService constructs the service. recent may be nil.
func NewFlightSearchService(db *gorm.DB, c *cache.Service, recent RecentRecorder, opts ...Option) (*FlightSearchService, error) {
	if db == nil {
		return nil, errors.New("flight search service: db is required")
	}
	if c == nil {
		return nil, errors.New("flight search service: cache is required")
	}
	o := buildOptions(options{
		ttl:        cache.SearchTTL,
		log:        logger.WithModule("flight_search"),
		maxResults: defaultSearchResults,
	}, opts)
	return &FlightSearchService{db: db, cache: c, recent: recent, opts: o}, nil
}

// NormalizeSearch upper-cases codes and fills the defaults for omitted fields.
func NormalizeSearch(p cache.SearchParams) cache.SearchParams {
	p.Origin = strings.ToUpper(strings.TrimSpace(p.Origin))
	p.Destination = strings.ToUpper(strings.TrimSpace(p.Destination))
	p.DepartureDate = strings.TrimSpace(p.DepartureDate)
	p.ReturnDate = strings.TrimSpace(p.ReturnDate)
	if p.Adults == 0 {
		p.Adults = 1
	}
	p.Cabin = strings.ToLower(strings.TrimSpace(p.Cabin))
	if p.Cabin == "" {
		p.Cabin = models.CabinEconomy
	}
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	if p.Currency == "" {
		p.Currency = defaultSearchCurrency
	}
	p.SortBy = strings.ToLower(strings.TrimSpace(p.SortBy))
	if p.SortBy == "" {
		p.SortBy = SortByPrice
	}
	airlines := make([]string, 0, len(p.Airlines))
	for _, raw := range p.Airlines {
		for _, code := range strings.Split(raw, ",") {
			if code = strings.ToUpper(strings.TrimSpace(code)); code != "" {
				airlines = append(airlines, code)
			}
		}
	}
	sort.Strings(airlines)
	p.Airlines = airlines
	return p
}

func validateSearch(p cache.SearchParams) error {
	if err := validator.ValidateStruct(p); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if p.ReturnDate != "" && p.ReturnDate < p.DepartureDate {
		return fmt.Errorf("%w: return_date precedes departure_date", ErrInvalidInput)
	}
	return nil
}

// Search returns flights matching params. Results are served from the cache
// when present; concurrent misses for the same query share one database read.
// userID, when set, receives the query in its recent-search list.
func (s *FlightSearchService) Search(ctx context.Context, userID string, params cache.SearchParams) (*SearchResult, error) {
	params = NormalizeSearch(params)
	if err := validateSearch(params); err != nil {
		return nil, err
	}

	key := cache.SearchKey(params)
	result, ok := cache.Get[SearchResult](ctx, s.cache, key)
	if ok {
		result.Cached = true
	} else {
		v, err, shared := s.group.Do(key, func() (any, error) {
			// Callers joining this flight share its outcome, so the read must
			// not inherit the first caller's cancellation.
			qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.queryTimeout)
			defer cancel()

			fresh, err := s.query(qctx, params)
			if err != nil {
				return nil, err
			}
			s.cache.SetWithTTL(qctx, key, fresh, s.opts.ttl)
			return fresh, nil
		})
		if err != nil {
			return nil, err
		}
		if shared {
			s.opts.log.Debug("search shared in-flight query", zap.String("key", key))
		}
		result = v.(SearchResult)
		result.Flights = append([]models.Flight(nil), result.Flights...)
	}

	s.recordRecent(ctx, userID, params)
	return &result, nil
}

func (s *FlightSearchService) query(ctx context.Context, p cache.SearchParams) (SearchResult, error) {
	day, err := time.Parse(dateLayout, p.DepartureDate)
	if err != nil {
		return SearchResult{}, fmt.Errorf("%w: departure_date: %v", ErrInvalidInput, err)
	}

	q := s.db.WithContext(ctx).Model(&models.Flight{}).
		Where("origin = ? AND destination = ?", p.Origin, p.Destination).
		Where("departure_at >= ? AND departure_at < ?", day, day.AddDate(0, 0, 1)).
		Where("cabin = ?", p.Cabin).
		Where("currency = ?", p.Currency).
		Where("seats_available >= ?", p.Adults+p.Children)
	if p.MaxPrice > 0 {
		q = q.Where("price <= ?", p.MaxPrice)
	}
	if len(p.Airlines) > 0 {
		q = q.Where("airline IN ?", p.Airlines)
	}
	if p.MaxStops != nil {
		q = q.Where("stops <= ?", *p.MaxStops)
	}

	switch p.SortBy {
	case SortByDeparture:
		q = q.Order("departure_at ASC").Order("price ASC")
	case SortByDuration:
		// Block time is computed in Go; the driver-specific date arithmetic is not portable.
		q = q.Order("departure_at ASC")
	default:
		q = q.Order("price ASC").Order("departure_at ASC")
	}
	if p.SortBy != SortByDuration {
		q = q.Limit(s.opts.maxResults)
	}

	var flights []models.Flight
	if err := q.Find(&flights).Error; err != nil {
		return SearchResult{}, fmt.Errorf("flight search service: query flights: %w", err)
	}

	if p.SortBy == SortByDuration {
		sort.SliceStable(flights, func(i, j int) bool {
			return flights[i].Duration() < flights[j].Duration()
		})
		if len(flights) > s.opts.maxResults {
			flights = flights[:s.opts.maxResults]
		}
	}
	if flights == nil {
		flights = []models.Flight{}
	}

	return SearchResult{
		Params:     p,
		Flights:    flights,
		Count:      len(flights),
		SearchedAt: utcNow(s.opts),
	}, nil
}

func (s *FlightSearchService) recordRecent(ctx context.Context, userID string, p cache.SearchParams) {
	if s.recent == nil || strings.TrimSpace(userID) == "" {
		return
	}
	s.recent.RecordRecent(ctx, userID, RecentSearch{
		Origin:        p.Origin,
		Destination:   p.Destination,
		DepartureDate: p.DepartureDate,
		ReturnDate:    p.ReturnDate,
		Cabin:         p.Cabin,
		Passengers:    p.Adults + p.Children + p.Infants,
		SearchedAt:    utcNow(s.opts),
	})
}
