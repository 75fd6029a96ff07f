// Package arrival reports minutes until the next bus reaches a stop.
package arrival

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Unknown is the in-band value reported when no arrival time is available
const Unknown = -1

var (
	// ErrUnavailable wraps every reason an arrival time could not be produced
	ErrUnavailable = errors.New("arrival data unavailable")

	// ErrNotConfigured indicates no upstream account key was supplied
	ErrNotConfigured = fmt.Errorf("%w: account key not configured", ErrUnavailable)

	// ErrNoService indicates the upstream returned no service entries
	ErrNoService = fmt.Errorf("%w: no service data", ErrUnavailable)

	// ErrNoArrival indicates the next bus carries no estimated arrival
	ErrNoArrival = fmt.Errorf("%w: no arrival information for next bus", ErrUnavailable)
)

// Oracle returns the number of whole minutes until the next arrival of a
// service at a stop. Any error means the value is unknown.
type Oracle interface {
	MinutesToArrival(ctx context.Context, stopCode, serviceNo string) (int, error)
}

// Observer receives the outcome and latency of every upstream fetch
type Observer interface {
	ObserveArrivalFetch(outcome string, elapsed time.Duration)
}

// Fetch outcomes reported to an Observer
const (
	OutcomeOK          = "ok"
	OutcomeNoData      = "no_data"
	OutcomeError       = "error"
	OutcomeTimeout     = "timeout"
	OutcomeUnavailable = "not_configured"
)

// Resolve asks the oracle for the arrival time, bounded by timeout, and folds
// every failure into Unknown. A timeout <= 0 leaves the context unchanged.
func Resolve(ctx context.Context, oracle Oracle, stopCode, serviceNo string, timeout time.Duration) (int, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	minutes, err := oracle.MinutesToArrival(ctx, stopCode, serviceNo)
	if err != nil {
		return Unknown, err
	}
	if minutes < 0 {
		return Unknown, ErrNoArrival
	}
	return minutes, nil
}

// minutesUntil rounds the time remaining to the nearest minute; arrivals due
// now or already past report 0
func minutesUntil(eta, now time.Time) int {
	m := int(math.Round(eta.Sub(now).Minutes()))
	if m <= 0 {
		return 0
	}
	return m
}
