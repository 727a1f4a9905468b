package model

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxSpectralChannel is the highest AHI channel the tile server publishes.
const MaxSpectralChannel = 16

// Band selects which imagery product a tile belongs to: the true-color
// composite or one numbered spectral channel. The zero value is TrueColor.
type Band struct {
	channel int
}

// TrueColor is the RGB composite product.
var TrueColor = Band{}

// Spectral returns the band for one numbered channel.
// Use Validate to check the channel is published.
func Spectral(channel int) Band {
	return Band{channel: channel}
}

// ParseBand accepts "RGB" (any case, or empty) for true color and either
// "13" or "B13" for a spectral channel.
func ParseBand(s string) (Band, error) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "", "RGB", "TRUECOLOR", "TRUE-COLOR":
		return TrueColor, nil
	}
	digits := strings.TrimPrefix(strings.ToUpper(s), "B")
	ch, err := strconv.Atoi(digits)
	if err != nil {
		return Band{}, &InvalidInputError{Field: "band", Value: s, Reason: "expected RGB or a channel number", Err: err}
	}
	if ch < 1 || ch > MaxSpectralChannel {
		return Band{}, &InvalidInputError{
			Field:  "band",
			Value:  s,
			Reason: fmt.Sprintf("channel must be between 1 and %d", MaxSpectralChannel),
		}
	}
	return Spectral(ch), nil
}

// IsTrueColor reports whether b is the RGB composite.
func (b Band) IsTrueColor() bool {
	return b.channel == 0
}

// Channel returns the spectral channel number, or 0 for true color.
func (b Band) Channel() int {
	return b.channel
}

// Validate checks that a spectral channel is within the published range.
func (b Band) Validate() error {
	if b.IsTrueColor() {
		return nil
	}
	if b.channel < 1 || b.channel > MaxSpectralChannel {
		return &InvalidInputError{
			Field:  "band",
			Value:  strconv.Itoa(b.channel),
			Reason: fmt.Sprintf("channel must be between 1 and %d", MaxSpectralChannel),
		}
	}
	return nil
}

// String returns "RGB" or "Bnn".
func (b Band) String() string {
	if b.IsTrueColor() {
		return "RGB"
	}
	return fmt.Sprintf("B%02d", b.channel)
}
