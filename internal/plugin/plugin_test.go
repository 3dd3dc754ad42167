package plugin

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/nao1215/iconscan/internal/model"
	"github.com/nao1215/iconscan/internal/probe"
)

func quietPlugin() *IconPlugin {
	return New(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

// TestIconPluginIdentity tests the plugin metadata.
func TestIconPluginIdentity(t *testing.T) {
	t.Parallel()

	p := New()
	if p.Name() != "Icon" {
		t.Errorf("got name %q", p.Name())
	}
	if p.Weight() != "light" {
		t.Errorf("got weight %q", p.Weight())
	}
}

// TestDefaultOptions tests the default run options.
func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions("http://example.com")
	if opts.Target != "http://example.com" {
		t.Errorf("got target %q", opts.Target)
	}
	if opts.ConnectTimeout.Seconds() != 5 {
		t.Errorf("expected 5s connect timeout, got %v", opts.ConnectTimeout)
	}
	if opts.PageTimeout.Seconds() != 15 {
		t.Errorf("expected 15s page timeout, got %v", opts.PageTimeout)
	}
	if opts.ProbeTimeout != 0 {
		t.Errorf("expected no probe timeout, got %v", opts.ProbeTimeout)
	}
}

// TestIconPluginRun tests complete runs against a local site.
func TestIconPluginRun(t *testing.T) {
	t.Parallel()

	t.Run("reports each finding in its own call", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/":
				w.Header().Set("Content-Type", "text/html")
				_, _ = w.Write([]byte(`<html><head><link rel="icon" type="image/gif" href="/a.gif"></head></html>`))
			case "/a.gif":
				w.Header().Set("Content-Type", "image/gif")
			default:
				http.NotFound(w, r)
			}
		}))
		defer server.Close()

		var mu sync.Mutex
		calls := make([][]model.Finding, 0)
		reporter := ReporterFunc(func(_ context.Context, findings []model.Finding) error {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, findings)
			return nil
		})

		report, err := quietPlugin().Run(context.Background(), DefaultOptions(server.URL), reporter)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(calls) != 1 || len(calls[0]) != 1 {
			t.Fatalf("expected one call with one finding, got %v", calls)
		}
		if calls[0][0].Code != "ICON-3" {
			t.Errorf("got code %s, expected ICON-3", calls[0][0].Code)
		}
		if calls[0][0].SeverityText != "Low" {
			t.Errorf("got severity %q, expected Low", calls[0][0].SeverityText)
		}
		if len(report.Findings) != 1 {
			t.Errorf("expected the finding in the report, got %d", len(report.Findings))
		}
	})

	t.Run("site headers and cookie reach every request", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 16, 16))); err != nil {
			t.Fatal(err)
		}

		var mu sync.Mutex
		unauthorized := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer t" || r.Header.Get("Cookie") != "s=1" {
				mu.Lock()
				unauthorized++
				mu.Unlock()
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			switch r.URL.Path {
			case "/":
				_, _ = w.Write([]byte(`<link rel="icon" type="image/png" sizes="16x16" href="/f.png">`))
			case "/f.png":
				w.Header().Set("Content-Type", "image/png")
				_, _ = w.Write(buf.Bytes())
			default:
				http.NotFound(w, r)
			}
		}))
		defer server.Close()

		opts := DefaultOptions(server.URL)
		opts.Headers = map[string]string{"Authorization": "Bearer t"}
		opts.Cookie = "s=1"

		report, err := quietPlugin().Run(context.Background(), opts, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.HasFindings() {
			t.Errorf("expected no findings, got %v", report.Codes())
		}
		if unauthorized != 0 {
			t.Errorf("expected every request to be authorized, %d were not", unauthorized)
		}
	})

	t.Run("run error is returned, not reported", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		reported := false
		reporter := ReporterFunc(func(context.Context, []model.Finding) error {
			reported = true
			return nil
		})

		report, err := quietPlugin().Run(context.Background(), DefaultOptions(server.URL), reporter)

		var statusErr *probe.StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("expected StatusError, got %v", err)
		}
		if reported {
			t.Error("run errors must not be reported as findings")
		}
		if report == nil || !report.Failed() {
			t.Error("expected a failed report")
		}
	})

	t.Run("empty target", func(t *testing.T) {
		t.Parallel()

		_, err := quietPlugin().Run(context.Background(), Options{Target: "  "}, nil)
		if !errors.Is(err, ErrNoTarget) {
			t.Errorf("expected ErrNoTarget, got %v", err)
		}
	})
}
