package model

// FetchFailure records one sub-request of a fetch that could not be served,
// such as one organization, one team or one pipeline's latest build.
type FetchFailure struct {
	Target string `json:"target"`
	Reason string `json:"reason"`
}

// FetchBatch is the outcome of a partially successful remote fetch.
type FetchBatch[T any] struct {
	Items    []T
	Failures []FetchFailure
}

func (x *FetchBatch[T]) AddFailure(target string, err error) {
	x.Failures = append(x.Failures, FetchFailure{Target: target, Reason: err.Error()})
}
