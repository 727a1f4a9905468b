package tiles

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"

	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/addressing"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/model"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/retry"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/transport"
)

// Transport performs GET requests.
type Transport interface {
	Get(ctx context.Context, url string) (*transport.Response, error)
}

// Decoder turns tile bytes into pixels.
type Decoder interface {
	Decode(r io.Reader) (image.Image, error)
}

// Fetcher downloads and decodes single tiles.
type Fetcher struct {
	transport Transport
	decoder   Decoder
	scheme    addressing.Scheme
	policy    retry.Policy
}

// NewFetcher creates a Fetcher. policy.Attempts is only a default;
// FetchTile takes the attempt count per call.
func NewFetcher(t Transport, d Decoder, scheme addressing.Scheme, policy retry.Policy) *Fetcher {
	return &Fetcher{transport: t, decoder: d, scheme: scheme, policy: policy}
}

// FetchTile downloads and decodes one tile, making up to retries attempts.
// A non-200 status, a transport error and an undecodable body are all
// retried the same way.
func (f *Fetcher) FetchTile(ctx context.Context, id model.TileID, retries int) (model.DecodedTile, error) {
	url := f.scheme.TileURL(id)
	policy := f.policy
	if retries > 0 {
		policy.Attempts = retries
	}

	img, err := retry.Do(ctx, policy, func(ctx context.Context) (image.Image, int, error) {
		return f.attempt(ctx, url)
	})
	if err != nil {
		fetchErr := &FetchError{ID: id, URL: url, Err: err}
		var exhausted *retry.Exhausted
		if errors.As(err, &exhausted) {
			fetchErr.Attempts = exhausted.Attempts
			fetchErr.Status = exhausted.Status
		}
		return model.DecodedTile{}, fetchErr
	}

	slog.DebugContext(ctx, "tile fetched", "x", id.Coord.X, "y", id.Coord.Y, "level", int(id.Level), "band", id.Band.String())
	return model.DecodedTile{Coord: id.Coord, Image: img}, nil
}

// attempt makes one request. The response body is closed on every path.
func (f *Fetcher) attempt(ctx context.Context, url string) (image.Image, int, error) {
	resp, err := f.transport.Get(ctx, url)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	img, err := f.decoder.Decode(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return img, resp.StatusCode, nil
}

// FetchError reports a tile that could not be fetched within its attempts.
type FetchError struct {
	ID       model.TileID
	URL      string
	Attempts int
	Status   int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch tile %s at level %dd for %s: %v",
		e.ID.Coord, e.ID.Level, e.ID.Time.Format("2006-01-02 15:04"), e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
