package dates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/addressing"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/model"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/retry"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/transport"
)

// latestLayout is the date format of the "date" field in latest.json.
const latestLayout = "2006-01-02 15:04:05"

// Transport performs GET requests.
type Transport interface {
	Get(ctx context.Context, url string) (*transport.Response, error)
}

// Parser turns free-form date text into a timestamp.
type Parser interface {
	Parse(s string) (time.Time, error)
}

// Resolver turns a Spec into a concrete UTC timestamp.
type Resolver struct {
	transport Transport
	parser    Parser
	latestURL string
	policy    retry.Policy
}

// NewResolver creates a resolver that asks latestURL for the newest image.
func NewResolver(t Transport, p Parser, latestURL string, policy retry.Policy) *Resolver {
	return &Resolver{transport: t, parser: p, latestURL: latestURL, policy: policy}
}

// WithAttempts returns a copy of r that makes n attempts at the latest endpoint.
func (r *Resolver) WithAttempts(n int) *Resolver {
	c := *r
	c.policy.Attempts = n
	return &c
}

// Resolve returns the timestamp a Spec refers to: an explicit time verbatim,
// parsed text, or the newest image published by the server.
func (r *Resolver) Resolve(ctx context.Context, spec Spec) (time.Time, error) {
	switch {
	case spec.IsLatest():
		return r.ResolveLatest(ctx)
	case spec.text != "":
		t, err := r.parser.Parse(spec.text)
		if err != nil {
			return time.Time{}, &model.InvalidInputError{Field: "date", Value: spec.text, Reason: "unparseable", Err: err}
		}
		return t.UTC(), nil
	default:
		return spec.at.UTC(), nil
	}
}

type latestResponse struct {
	Date string `json:"date"`
	File string `json:"file"`
}

// ResolveLatest asks the status endpoint for the newest published timestamp.
// Non-200 responses and malformed payloads are retried.
func (r *Resolver) ResolveLatest(ctx context.Context) (time.Time, error) {
	ts, err := retry.Do(ctx, r.policy, func(ctx context.Context) (time.Time, int, error) {
		resp, err := r.transport.Get(ctx, r.latestURL)
		if err != nil {
			return time.Time{}, 0, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return time.Time{}, resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		var latest latestResponse
		if err := json.NewDecoder(resp.Body).Decode(&latest); err != nil {
			return time.Time{}, resp.StatusCode, fmt.Errorf("decode latest: %w", err)
		}
		t, err := time.ParseInLocation(latestLayout, latest.Date, time.UTC)
		if err != nil {
			return time.Time{}, resp.StatusCode, fmt.Errorf("parse latest date: %w", err)
		}
		return t, resp.StatusCode, nil
	})
	if err != nil {
		return time.Time{}, &UnavailableError{URL: r.latestURL, Err: err}
	}

	slog.DebugContext(ctx, "resolved latest image", "timestamp", ts)
	return ts, nil
}

// SampleRange resolves both ends and returns the aligned timestamps between
// them, increment apart. It fails with a RangeError if finish precedes start.
func (r *Resolver) SampleRange(ctx context.Context, start, finish Spec, increment time.Duration) (iter.Seq[time.Time], error) {
	if increment < time.Minute || increment%time.Minute != 0 {
		return nil, &model.InvalidInputError{Field: "increment", Value: increment.String(), Reason: "must be a positive whole number of minutes"}
	}

	from, err := r.Resolve(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("resolve start: %w", err)
	}
	to, err := r.Resolve(ctx, finish)
	if err != nil {
		return nil, fmt.Errorf("resolve finish: %w", err)
	}
	if to.Before(from) {
		return nil, &RangeError{Start: from, Finish: to}
	}

	return addressing.Steps(from, to, increment), nil
}

// RangeError reports an end date that precedes the start date.
type RangeError struct {
	Start  time.Time
	Finish time.Time
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("end date %s precedes start date %s", e.Finish.Format(time.RFC3339), e.Start.Format(time.RFC3339))
}

// UnavailableError reports that the latest-date endpoint could not be
// reached or parsed within the allowed attempts.
type UnavailableError struct {
	URL string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("cannot reach or parse the latest-date endpoint %s: %v", e.URL, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Attempts reports how many requests were made before giving up.
func (e *UnavailableError) Attempts() int {
	var exhausted *retry.Exhausted
	if errors.As(e.Err, &exhausted) {
		return exhausted.Attempts
	}
	return 0
}
