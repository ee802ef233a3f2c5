// Package source fetches candidate proxy records from third-party
// listing services. Each adapter is independent and fallible; the
// Aggregator runs all of them and concatenates whatever succeeds.
package source

import (
	"context"

	"github.com/proxycatalog/catalog/internal/catalog"
)

// Source fetches candidate proxy records from one external listing.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]catalog.Record, error)
}

// FetchError is logged by the Aggregator for a source that failed; it
// implements error so callers can still treat Aggregate's no-error
// return as a hard success signal.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return e.Source + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Aggregator runs a fixed set of sources and concatenates their output.
// A failing source never aborts the others — its failure is reported
// through onError and the aggregation continues.
type Aggregator struct {
	sources []Source
	onError func(*FetchError)
}

// NewAggregator builds an Aggregator over sources. onError may be nil.
func NewAggregator(sources []Source, onError func(*FetchError)) *Aggregator {
	return &Aggregator{sources: sources, onError: onError}
}

// Aggregate invokes every configured source once and returns the
// concatenation of their successful results.
func (a *Aggregator) Aggregate(ctx context.Context) []catalog.Record {
	var all []catalog.Record

	for _, s := range a.sources {
		records, err := s.Fetch(ctx)
		if err != nil {
			if a.onError != nil {
				a.onError(&FetchError{Source: s.Name(), Err: err})
			}
			continue
		}
		all = append(all, records...)
	}

	return all
}
