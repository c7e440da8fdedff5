package model

import (
	"slices"
	"time"
)

// CacheResult is what a cache orchestrator returns for one scope.
type CacheResult[E any, V any] struct {
	Items     []E
	Views     []V
	FromCache bool
	FetchedAt *time.Time
	Failures  []FetchFailure
}

// Empty reports that the scope exists and holds nothing. Failures are reported
// through the error return, never through an empty result.
func (x *CacheResult[E, V]) Empty() bool {
	return len(x.Items) == 0
}

// Clone returns a copy whose slices and fetch time can be modified without
// affecting x.
func (x *CacheResult[E, V]) Clone() *CacheResult[E, V] {
	out := *x
	out.Items = slices.Clone(x.Items)
	out.Views = slices.Clone(x.Views)
	out.Failures = slices.Clone(x.Failures)
	if x.FetchedAt != nil {
		t := *x.FetchedAt
		out.FetchedAt = &t
	}
	return &out
}
