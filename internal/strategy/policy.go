package strategy

import (
	"time"

	"github.com/guttosm/offline-cache/internal/domain/model"
)

// Max ages of the fixed category policies.
const (
	TileMaxAge     = 7 * 24 * time.Hour
	ImageMaxAge    = 30 * 24 * time.Hour
	CriticalMaxAge = 365 * 24 * time.Hour
	APIMaxAge      = 5 * time.Minute
	DynamicMaxAge  = 24 * time.Hour
)

// Policy is the strategy and freshness limit applied to a category.
type Policy struct {
	Strategy Strategy
	MaxAge   time.Duration
}

// Policies is the fixed category policy table.
var Policies = map[model.Category]Policy{
	model.CategoryTiles:    {Strategy: CacheFirst, MaxAge: TileMaxAge},
	model.CategoryImages:   {Strategy: StaleWhileRevalidate, MaxAge: ImageMaxAge},
	model.CategoryStatic:   {Strategy: CacheFirst, MaxAge: CriticalMaxAge},
	model.CategoryCritical: {Strategy: CacheFirst, MaxAge: CriticalMaxAge},
	model.CategoryAPI:      {Strategy: NetworkFirst, MaxAge: APIMaxAge},
	model.CategoryDynamic:  {Strategy: CacheFirst, MaxAge: DynamicMaxAge},
}

// PolicyFor returns the policy of c, defaulting to the dynamic policy.
func PolicyFor(c model.Category) Policy {
	if p, ok := Policies[c]; ok {
		return p
	}
	return Policies[model.CategoryDynamic]
}
