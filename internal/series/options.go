package series

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/addressing"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/model"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/retry"
)

const (
	DefaultScale        = addressing.TileSize
	DefaultPrefix       = "himawari8"
	DefaultNameTemplate = "{prefix}_{date}.png"

	// MaxRetries caps attempts per request.
	MaxRetries = 100

	// nameDateLayout renders {date} in file names.
	nameDateLayout = "2006-01-02_150405"
)

// Options are the per-image settings shared by BuildOne and BuildRange.
type Options struct {
	Level   model.GridLevel
	Scale   int // edge length of each tile in the composite, in pixels
	Band    model.Band
	Retries int

	// Concurrency caps parallel tile fetches; 0 means one worker per tile.
	Concurrency int
	Sequential  bool

	// Save persists each composite instead of returning its pixels.
	Save         bool
	Prefix       string
	NameTemplate string

	// Increment is the publication cadence used to align timestamps and to
	// step through a range.
	Increment time.Duration
}

// DefaultOptions returns a level 4 true-color composite at native tile size.
func DefaultOptions() Options {
	return Options{
		Level:        model.DefaultLevel,
		Scale:        DefaultScale,
		Band:         model.TrueColor,
		Retries:      retry.DefaultAttempts,
		Prefix:       DefaultPrefix,
		NameTemplate: DefaultNameTemplate,
		Increment:    addressing.DefaultIncrement,
	}
}

func (o Options) Validate() error {
	if err := o.Level.Validate(); err != nil {
		return err
	}
	if err := o.Band.Validate(); err != nil {
		return err
	}
	if o.Scale < 1 {
		return &model.InvalidInputError{Field: "scale", Value: strconv.Itoa(o.Scale), Reason: "must be at least 1"}
	}
	if maxScale := model.MaxCompositeSide / int(o.Level); o.Scale > maxScale {
		return &model.InvalidInputError{
			Field:  "scale",
			Value:  strconv.Itoa(o.Scale),
			Reason: fmt.Sprintf("at most %d at level %d", maxScale, o.Level),
		}
	}
	if o.Retries < 1 || o.Retries > MaxRetries {
		return &model.InvalidInputError{Field: "retries", Value: strconv.Itoa(o.Retries), Reason: fmt.Sprintf("must be between 1 and %d", MaxRetries)}
	}
	if o.Concurrency < 0 {
		return &model.InvalidInputError{Field: "concurrency", Value: strconv.Itoa(o.Concurrency), Reason: "cannot be negative"}
	}
	if o.Increment < time.Minute || o.Increment%time.Minute != 0 {
		return &model.InvalidInputError{Field: "increment", Value: o.Increment.String(), Reason: "must be a positive whole number of minutes"}
	}
	if o.Save {
		if o.NameTemplate == "" {
			return &model.InvalidInputError{Field: "name", Reason: "cannot be empty"}
		}
		if strings.ContainsAny(o.NameTemplate, `/\`) {
			return &model.InvalidInputError{Field: "name", Value: o.NameTemplate, Reason: "must not contain path separators"}
		}
	}
	return nil
}

// FileName renders NameTemplate for t, substituting {prefix} and {date}.
func (o Options) FileName(t time.Time) string {
	return strings.NewReplacer(
		"{prefix}", o.Prefix,
		"{date}", t.UTC().Format(nameDateLayout),
	).Replace(o.NameTemplate)
}
