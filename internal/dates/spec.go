package dates

import (
	"time"

	"github.com/araddon/dateparse"
)

// Spec is a requested date: an explicit time, text to parse, or "latest".
// The zero value means latest.
type Spec struct {
	at   time.Time
	text string
}

// At requests an explicit timestamp.
func At(t time.Time) Spec {
	return Spec{at: t}
}

// Text requests the timestamp described by s. Empty or "latest" means Latest.
func Text(s string) Spec {
	if s == "latest" {
		return Spec{}
	}
	return Spec{text: s}
}

// Latest requests the newest image the server has published.
func Latest() Spec {
	return Spec{}
}

// IsLatest reports whether the spec defers to the server.
func (s Spec) IsLatest() bool {
	return s.text == "" && s.at.IsZero()
}

func (s Spec) String() string {
	switch {
	case s.IsLatest():
		return "latest"
	case s.text != "":
		return s.text
	default:
		return s.at.UTC().Format(time.RFC3339)
	}
}

// DateParser parses free-form dates ("2021-01-01 00:10", "2021/01/01T00:10:00Z",
// "Jan 1 2021 00:10") in UTC unless the text names a zone.
type DateParser struct{}

func (DateParser) Parse(s string) (time.Time, error) {
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
