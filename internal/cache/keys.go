package cache

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// TTL policy per data class.
const (
	DefaultTTL        = 5 * time.Minute
	SearchTTL         = 5 * time.Minute
	PriceHistoryTTL   = time.Hour
	AutocompleteTTL   = time.Hour
	TokenBlacklistTTL = 7 * 24 * time.Hour
)

// PriceHistoryWindows are the history ranges invalidated when a new quote arrives.
var PriceHistoryWindows = []int{7, 30, 90}

const emptySegment = "~"

var segmentEscaper = strings.NewReplacer("%", "%25", ":", "%3A", "~", "%7E")

// segment escapes a key component so it can never introduce a separator.
func segment(value string) string {
	if value == "" {
		return emptySegment
	}
	return segmentEscaper.Replace(value)
}

func buildKey(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, part := range parts {
		escaped[i] = segment(part)
	}
	return strings.Join(escaped, ":")
}

func upper(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
func lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// SearchParams are the inputs that identify a cached flight search.
type SearchParams struct {
	Origin        string   `form:"origin" json:"origin" validate:"required,iata"`
	Destination   string   `form:"destination" json:"destination" validate:"required,iata,nefield=Origin"`
	DepartureDate string   `form:"departure_date" json:"departure_date" validate:"required,datetime=2006-01-02"`
	ReturnDate    string   `form:"return_date" json:"return_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Adults        int      `form:"adults" json:"adults" validate:"min=1,max=9"`
	Children      int      `form:"children" json:"children" validate:"min=0,max=9"`
	Infants       int      `form:"infants" json:"infants" validate:"min=0,ltefield=Adults"`
	Cabin         string   `form:"cabin" json:"cabin" validate:"oneof=economy premium_economy business first"`
	Currency      string   `form:"currency" json:"currency" validate:"len=3,alpha"`
	SortBy        string   `form:"sort" json:"sort" validate:"oneof=price duration departure"`
	MaxPrice      float64  `form:"max_price" json:"max_price,omitempty" validate:"gte=0"`
	Airlines      []string `form:"airlines" json:"airlines,omitempty" validate:"max=10,dive,airline"`
	MaxStops      *int     `form:"max_stops" json:"max_stops,omitempty" validate:"omitempty,min=0,max=3"`
}

// SearchKey builds flights:search:<origin>:<destination>:<depart>:<return>:<adults>:<children>:<infants>:<cabin>:<currency>:<sort>
// followed by the optional filters that are set.
func SearchKey(p SearchParams) string {
	parts := []string{
		"flights", "search",
		upper(p.Origin), upper(p.Destination),
		strings.TrimSpace(p.DepartureDate), strings.TrimSpace(p.ReturnDate),
		strconv.Itoa(p.Adults), strconv.Itoa(p.Children), strconv.Itoa(p.Infants),
		lower(p.Cabin), upper(p.Currency), lower(p.SortBy),
	}
	if p.MaxPrice > 0 {
		parts = append(parts, "maxprice="+strconv.FormatFloat(p.MaxPrice, 'f', -1, 64))
	}
	if len(p.Airlines) > 0 {
		airlines := make([]string, 0, len(p.Airlines))
		for _, a := range p.Airlines {
			if a = upper(a); a != "" {
				airlines = append(airlines, a)
			}
		}
		sort.Strings(airlines)
		if len(airlines) > 0 {
			parts = append(parts, "airlines="+strings.Join(airlines, ","))
		}
	}
	if p.MaxStops != nil {
		parts = append(parts, "stops="+strconv.Itoa(*p.MaxStops))
	}
	return buildKey(parts...)
}

func PriceHistoryKey(origin, destination string, days int) string {
	return buildKey("flights", "price-history", upper(origin), upper(destination), strconv.Itoa(days))
}

func AutocompleteKey(query string, limit int) string {
	return buildKey("airports", "autocomplete", lower(query), strconv.Itoa(limit))
}

func RecentSearchesKey(userID string) string {
	return buildKey("user", "recent-searches", strings.TrimSpace(userID))
}

func TokenBlacklistKey(jti string) string {
	return buildKey("auth", "blacklist", strings.TrimSpace(jti))
}

// TrackedRoutesKey is the set of routes that have received price quotes.
func TrackedRoutesKey() string {
	return buildKey("flights", "routes", "tracked")
}

// LatestQuotesKey is the hash of route -> most recent quote.
func LatestQuotesKey() string {
	return buildKey("flights", "routes", "latest")
}

// RouteField identifies a route inside the tracked set and latest-quote hash.
func RouteField(origin, destination string) string {
	return upper(origin) + "-" + upper(destination)
}
