package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/catalog"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/dates"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/grid"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/model"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/series"
)

// Builder builds one composite on demand.
type Builder interface {
	BuildOne(ctx context.Context, date dates.Spec, opts series.Options) (*series.Result, error)
}

// Encoder serialises composites for the response body.
type Encoder interface {
	Encode(w io.Writer, img image.Image) error
	ContentType() string
}

// LatestLookup finds the newest recorded composite per band.
type LatestLookup interface {
	LatestForBands(ctx context.Context, level model.GridLevel, bands []model.Band) ([]catalog.Record, error)
}

// Handler holds shared dependencies for all HTTP handlers.
type Handler struct {
	builder Builder
	encoder Encoder
	lookup  LatestLookup
}

// NewHandler creates a new Handler. lookup may be nil when no catalog is
// configured; the catalog route is then not registered.
func NewHandler(builder Builder, encoder Encoder, lookup LatestLookup) *Handler {
	return &Handler{builder: builder, encoder: encoder, lookup: lookup}
}

// RegisterRoutes attaches all routes to the provided mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /v1/composite", h.handleComposite)
	if h.lookup != nil {
		mux.HandleFunc("GET /v1/composites/latest", h.handleLatest)
	}
}

// handleHealth returns 204 No Content for liveness checks.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// handleComposite builds a composite for ?date= (default latest) and
// streams it back.
func (h *Handler) handleComposite(w http.ResponseWriter, r *http.Request) {
	opts, err := compositeOptions(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.builder.BuildOne(r.Context(), dates.Text(r.URL.Query().Get("date")), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := h.encoder.Encode(&buf, result.Composite.Image); err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", h.encoder.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Composite-Time", result.Composite.Time.Format(time.RFC3339))
	_, _ = buf.WriteTo(w)
}

type compositeRecord struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Band      string    `json:"band"`
	Level     int       `json:"level"`
	Scale     int       `json:"scale"`
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
}

type latestResponse struct {
	Composites []compositeRecord `json:"composites"`
}

// handleLatest returns the newest recorded composite for each ?band= at
// ?level=. Bands default to RGB.
func (h *Handler) handleLatest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	level := model.DefaultLevel
	if s := q.Get("level"); s != "" {
		l, err := model.ParseGridLevel(s)
		if err != nil {
			writeError(w, r, err)
			return
		}
		level = l
	}

	bands := []model.Band{model.TrueColor}
	if raw := q["band"]; len(raw) > 0 {
		bands = bands[:0]
		for _, s := range raw {
			b, err := model.ParseBand(s)
			if err != nil {
				writeError(w, r, err)
				return
			}
			bands = append(bands, b)
		}
	}

	records, err := h.lookup.LatestForBands(r.Context(), level, bands)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := latestResponse{Composites: make([]compositeRecord, 0, len(records))}
	for _, rec := range records {
		resp.Composites = append(resp.Composites, compositeRecord{
			ID:        rec.ID.String(),
			RunID:     rec.RunID.String(),
			Timestamp: rec.Timestamp,
			Band:      rec.Band.String(),
			Level:     int(rec.Level),
			Scale:     rec.Scale,
			Key:       rec.Key,
			CreatedAt: rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func compositeOptions(r *http.Request) (series.Options, error) {
	q := r.URL.Query()
	opts := series.DefaultOptions()

	if s := q.Get("level"); s != "" {
		l, err := model.ParseGridLevel(s)
		if err != nil {
			return opts, err
		}
		opts.Level = l
	}
	if s := q.Get("band"); s != "" {
		b, err := model.ParseBand(s)
		if err != nil {
			return opts, err
		}
		opts.Band = b
	}

	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"scale", &opts.Scale},
		{"retries", &opts.Retries},
		{"concurrency", &opts.Concurrency},
	} {
		s := q.Get(p.name)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return opts, &model.InvalidInputError{Field: p.name, Value: s, Reason: "not a number", Err: err}
		}
		*p.dst = n
	}

	return opts, opts.Validate()
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	var (
		invalid     *model.InvalidInputError
		rangeErr    *dates.RangeError
		unavailable *dates.UnavailableError
		gridErr     *grid.GridFetchError
	)
	switch {
	case errors.As(err, &invalid), errors.As(err, &rangeErr):
		return http.StatusBadRequest
	case errors.As(err, &unavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &gridErr):
		if gridErr.Cancelled() {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case errors.Is(err, catalog.ErrRecordNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "status", status, "error", err)
	} else {
		slog.InfoContext(r.Context(), "request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
