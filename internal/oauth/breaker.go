// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package oauth

import (
	"errors"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"

	"github.com/lucyn-dev/lucyn/internal/logging"
	"github.com/lucyn-dev/lucyn/internal/metrics"
)

// breaker guards calls to one provider.
//
// Settings:
//   - 3 trial requests in half-open state
//   - counts reset every minute while closed
//   - 1 minute open before trying again
//   - opens at a 60% failure rate over at least 5 requests
type breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker[any]
}

func newBreaker(name string) *breaker {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logging.Warn().
					Str("breaker", name).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("[CIRCUIT BREAKER] State transition")
			metrics.RecordBreakerTransition(name, from.String(), to.String(), stateToFloat(to))
		},
		IsSuccessful: isBreakerSuccess,
	})

	return &breaker{name: name, cb: cb}
}

// execute runs fn through the breaker and records the outcome.
func execute[T any](b *breaker, fn func() (T, error)) (T, error) {
	var zero T
	result, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RecordBreakerResult(b.name, "rejected")
			logging.Warn().Err(err).Str("breaker", b.name).Msg("[CIRCUIT BREAKER] Request rejected")
		} else {
			metrics.RecordBreakerResult(b.name, "failure")
		}
		return zero, err
	}
	metrics.RecordBreakerResult(b.name, "success")

	typed, ok := result.(T)
	if !ok {
		return zero, nil
	}
	return typed, nil
}

// State returns the breaker state.
func (b *breaker) State() gobreaker.State {
	return b.cb.State()
}

// isBreakerSuccess treats provider 4xx answers as healthy: the provider
// responded, the caller sent something it rejected.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		// Slack reports errors with status 200 and an error code.
		if retrieveErr.ErrorCode != "" {
			return true
		}
		return retrieveErr.Response != nil && isClientStatus(retrieveErr.Response.StatusCode)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return isClientStatus(apiErr.StatusCode)
	}
	return false
}

func isClientStatus(code int) bool {
	return code >= http.StatusBadRequest && code < http.StatusInternalServerError
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
