package app

import "github.com/charlesng35/skybook/internal/middleware"

// RatePolicies are the route policies built from RateLimitConfig.
type RatePolicies struct {
	Search       middleware.RatePolicy
	Autocomplete middleware.RatePolicy
	Quotes       middleware.RatePolicy
	API          middleware.RatePolicy
}

// Policies converts the configuration into middleware policies. A disabled
// limiter yields zero policies, which the middleware treats as pass-through.
func (c RateLimitConfig) Policies() RatePolicies {
	if !c.Enabled {
		return RatePolicies{}
	}
	policy := func(name string, p PolicyConfig) middleware.RatePolicy {
		return middleware.RatePolicy{Name: name, Limit: p.Limit, Window: p.Window}
	}
	return RatePolicies{
		Search:       policy("search", c.Search),
		Autocomplete: policy("autocomplete", c.Autocomplete),
		Quotes:       policy("quotes", c.Quotes),
		API:          policy("api", c.API),
	}
}
