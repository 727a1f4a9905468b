package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/config"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/dates"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/exitcode"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/grid"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/model"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/progress"
	"github.com/kacper-wojtaszczyk/jackfruit/himawari-go/internal/series"
)

type stubPipeline struct {
	opts   series.Options
	dates  []dates.Spec
	keys   []string
	err    error
	ranged bool
}

func (s *stubPipeline) BuildOne(ctx context.Context, date dates.Spec, opts series.Options) (*series.Result, error) {
	s.opts = opts
	s.dates = []dates.Spec{date}
	if s.err != nil {
		return nil, s.err
	}
	return &series.Result{Key: s.keys[0]}, nil
}

func (s *stubPipeline) BuildRange(ctx context.Context, start, finish dates.Spec, opts series.Options) ([]*series.Result, error) {
	s.opts = opts
	s.dates = []dates.Spec{start, finish}
	s.ranged = true
	if s.err != nil {
		return nil, s.err
	}
	var results []*series.Result
	for _, k := range s.keys {
		results = append(results, &series.Result{Key: k})
	}
	return results, nil
}

type stubLatest struct {
	ts  time.Time
	err error
}

func (s stubLatest) ResolveLatest(ctx context.Context) (time.Time, error) {
	return s.ts, s.err
}

type harness struct {
	pipeline *stubPipeline
	latest   stubLatest
	wireErr  error
	wired    int
	closed   int
	options  *cliOptions
}

func (h *harness) wire(ctx context.Context, o *cliOptions, stderr io.Writer) (*app, error) {
	h.wired++
	h.options = o
	if h.wireErr != nil {
		return nil, h.wireErr
	}
	return &app{
		pipeline: h.pipeline,
		latest:   h.latest,
		progress: progress.Nop{},
		close:    func() { h.closed++ },
	}, nil
}

func execute(h *harness, args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr, h.wire)
	return code, stdout.String(), stderr.String()
}

func TestRun_Image(t *testing.T) {
	h := &harness{pipeline: &stubPipeline{keys: []string{"B13/8d/2021/01/01/h8_2021-01-01_001000.png"}}}

	code, out, _ := execute(h, "image", "2021-01-01 00:10", "--level", "8", "--scale", "275", "--band", "13", "--prefix", "h8", "--concurrency", "4")

	if code != exitcode.Success {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if strings.TrimSpace(out) != "B13/8d/2021/01/01/h8_2021-01-01_001000.png" {
		t.Errorf("stdout = %q", out)
	}
	opts := h.pipeline.opts
	if opts.Level != 8 || opts.Scale != 275 || opts.Band != model.Spectral(13) || opts.Concurrency != 4 || opts.Prefix != "h8" {
		t.Errorf("unexpected options %+v", opts)
	}
	if !opts.Save {
		t.Error("CLI composites must be saved")
	}
	if h.pipeline.dates[0].String() != "2021-01-01 00:10" {
		t.Errorf("date = %s", h.pipeline.dates[0])
	}
	if h.closed != 1 {
		t.Errorf("app closed %d times", h.closed)
	}
}

func TestRun_ImageDefaultsToLatest(t *testing.T) {
	h := &harness{pipeline: &stubPipeline{keys: []string{"k"}}}

	if code, _, _ := execute(h, "image"); code != exitcode.Success {
		t.Fatalf("exit code = %d", code)
	}
	if !h.pipeline.dates[0].IsLatest() {
		t.Errorf("expected latest, got %s", h.pipeline.dates[0])
	}
	if h.pipeline.opts.Level != model.DefaultLevel || h.pipeline.opts.NameTemplate != series.DefaultNameTemplate {
		t.Errorf("unexpected defaults %+v", h.pipeline.opts)
	}
}

func TestRun_Series(t *testing.T) {
	h := &harness{pipeline: &stubPipeline{keys: []string{"a.png", "b.png", "c.png"}}}

	code, out, _ := execute(h, "series", "2021-01-01 00:00", "2021-01-01 06:00", "--increment", "2h", "--sequential")

	if code != exitcode.Success {
		t.Fatalf("exit code = %d", code)
	}
	if out != "a.png\nb.png\nc.png\n" {
		t.Errorf("stdout = %q", out)
	}
	if !h.pipeline.ranged || h.pipeline.opts.Increment != 2*time.Hour || !h.pipeline.opts.Sequential {
		t.Errorf("unexpected series call %+v", h.pipeline.opts)
	}
}

func TestRun_Latest(t *testing.T) {
	h := &harness{latest: stubLatest{ts: time.Date(2021, 1, 1, 0, 10, 0, 0, time.UTC)}}

	code, out, _ := execute(h, "latest")

	if code != exitcode.Success {
		t.Fatalf("exit code = %d", code)
	}
	if strings.TrimSpace(out) != "2021-01-01T00:10:00Z" {
		t.Errorf("stdout = %q", out)
	}
}

func TestRun_ExitCodes(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		err     error
		wireErr error
		want    int
		wired   bool
	}{
		{name: "invalid level", args: []string{"image", "--level", "3"}, want: exitcode.DataError},
		{name: "invalid band", args: []string{"image", "--band", "B99"}, want: exitcode.DataError},
		{name: "invalid run id", args: []string{"image", "--run-id", "nope"}, want: exitcode.DataError},
		{name: "fractional increment", args: []string{"series", "a", "b", "--increment", "90s"}, want: exitcode.DataError},
		{name: "missing args", args: []string{"series", "2021-01-01"}, want: exitcode.ApplicationError},
		{name: "config", args: []string{"image"}, wireErr: &config.ErrMissingRequiredEnvVar{Name: "MINIO_BUCKET"}, want: exitcode.ConfigError, wired: true},
		{name: "storage setup", args: []string{"image"}, wireErr: &setupError{code: exitcode.StorageError, err: errors.New("bucket check failed")}, want: exitcode.StorageError, wired: true},
		{name: "reversed range", args: []string{"series", "b", "a"}, err: &dates.RangeError{}, want: exitcode.DataError, wired: true},
		{name: "latest unavailable", args: []string{"image"}, err: &dates.UnavailableError{Err: errors.New("down")}, want: exitcode.NetworkError, wired: true},
		{name: "tile exhausted", args: []string{"image"}, err: &grid.GridFetchError{Err: errors.New("gave up")}, want: exitcode.APIError, wired: true},
		{name: "persist", args: []string{"image"}, err: &series.PersistError{Key: "k", Err: errors.New("disk full")}, want: exitcode.StorageError, wired: true},
		{name: "unexpected", args: []string{"image"}, err: errors.New("boom"), want: exitcode.ApplicationError, wired: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &harness{pipeline: &stubPipeline{err: tt.err}, wireErr: tt.wireErr}

			code, _, stderr := execute(h, tt.args...)

			if code != tt.want {
				t.Errorf("exit code = %d, want %d", code, tt.want)
			}
			if !strings.Contains(stderr, "Error:") {
				t.Errorf("stderr does not report the error: %q", stderr)
			}
			if (h.wired > 0) != tt.wired {
				t.Errorf("wired %d times", h.wired)
			}
		})
	}
}
