package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/skybook/internal/cache"
	"github.com/charlesng35/skybook/internal/models"
	"github.com/charlesng35/skybook/pkg/logger"
)

const (
	defaultSuggestLimit = 10
	maxSuggestLimit     = 25
	// RecentSearchLimit is the number of searches kept per user.
	RecentSearchLimit = 10
)

// RecentSearch is one entry of a user's recent-search list.
type RecentSearch struct {
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
	DepartureDate string    `json:"departure_date"`
	ReturnDate    string    `json:"return_date,omitempty"`
	Cabin         string    `json:"cabin"`
	Passengers    int       `json:"passengers"`
	SearchedAt    time.Time `json:"searched_at"`
}

// AutocompleteService suggests airports and keeps per-user recent searches.
type AutocompleteService struct {
	db    *gorm.DB
	cache *cache.Service
	opts  options
}

// NewAutocompleteService constructs the service. Suggestions are cached for
// cache.AutocompleteTTL unless WithTTL overrides it.
func NewAutocompleteService(db *gorm.DB, c *cache.Service, opts ...Option) (*AutocompleteService, error) {
	if db == nil {
		return nil, errors.New("autocomplete service: db is required")
	}
	if c == nil {
		return nil, errors.New("autocomplete service: cache is required")
	}
	o := buildOptions(options{
		ttl:        cache.AutocompleteTTL,
		log:        logger.WithModule("autocomplete"),
		maxResults: maxSuggestLimit,
	}, opts)
	return &AutocompleteService{db: db, cache: c, opts: o}, nil
}

// Suggest returns airports whose code, city or name starts with query.
// Exact code matches rank first, then code, city and name prefixes.
func (s *AutocompleteService) Suggest(ctx context.Context, query string, limit int) ([]models.Airport, error) {
	term := sanitizeQuery(query)
	if term == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	switch {
	case limit <= 0:
		limit = defaultSuggestLimit
	case limit > s.opts.maxResults:
		limit = s.opts.maxResults
	}

	key := cache.AutocompleteKey(term, limit)
	if cached, ok := cache.Get[[]models.Airport](ctx, s.cache, key); ok {
		return cached, nil
	}

	lowered := strings.ToLower(term) + "%"
	var airports []models.Airport
	err := s.db.WithContext(ctx).
		Where("LOWER(code) LIKE ? OR LOWER(city) LIKE ? OR LOWER(name) LIKE ?", lowered, lowered, lowered).
		Order("code ASC").
		Limit(limit * 4).
		Find(&airports).Error
	if err != nil {
		return nil, fmt.Errorf("autocomplete service: query airports: %w", err)
	}

	rankAirports(airports, term)
	if len(airports) > limit {
		airports = airports[:limit]
	}
	if airports == nil {
		airports = []models.Airport{}
	}

	s.cache.SetWithTTL(ctx, key, airports, s.opts.ttl)
	return airports, nil
}

// RecordRecent prepends entry to the user's recent searches and trims the
// list to RecentSearchLimit entries. Anonymous callers are ignored.
func (s *AutocompleteService) RecordRecent(ctx context.Context, userID string, entry RecentSearch) bool {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false
	}
	if entry.SearchedAt.IsZero() {
		entry.SearchedAt = utcNow(s.opts)
	}

	key := cache.RecentSearchesKey(userID)
	if s.cache.LPush(ctx, key, entry) == 0 {
		return false
	}
	if !s.cache.LTrim(ctx, key, 0, RecentSearchLimit-1) {
		s.opts.log.Debug("recent searches not trimmed", zap.String("user_id", userID))
	}
	return true
}

// Recent returns the user's recent searches, newest first.
func (s *AutocompleteService) Recent(ctx context.Context, userID string) []RecentSearch {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return []RecentSearch{}
	}
	return cache.LRange[RecentSearch](ctx, s.cache, cache.RecentSearchesKey(userID), 0, RecentSearchLimit-1)
}

func sanitizeQuery(query string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(query) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == ' ', r == '-', r == '\'', r == '.':
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func rankAirports(airports []models.Airport, term string) {
	lowered := strings.ToLower(term)
	rank := func(a models.Airport) int {
		switch {
		case strings.EqualFold(a.Code, term):
			return 0
		case strings.HasPrefix(strings.ToLower(a.Code), lowered):
			return 1
		case strings.HasPrefix(strings.ToLower(a.City), lowered):
			return 2
		default:
			return 3
		}
	}
	sort.SliceStable(airports, func(i, j int) bool {
		ri, rj := rank(airports[i]), rank(airports[j])
		if ri != rj {
			return ri < rj
		}
		return airports[i].Code < airports[j].Code
	})
}
