package roadpath

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"route-tracker/internal/domain"
)

var waypoints = []domain.Coordinates{
	{Lat: -23.5505, Lon: -46.6333},
	{Lat: -23.5510, Lon: -46.6340},
}

func newTestProvider(t *testing.T, url string, timeout time.Duration) *OSRMRoadPath {
	t.Helper()
	p, err := NewOSRMRoadPath(url, "driving", timeout, WithRateLimit(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return p
}

func TestToRoadPathDecodesGeometry(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":"Ok","routes":[{"geometry":{"type":"LineString","coordinates":[[-46.6333,-23.5505],[-46.6336,-23.5507],[-46.6340,-23.5510]]}}]}`))
	}))
	defer srv.Close()

	got := newTestProvider(t, srv.URL, time.Second).ToRoadPath(context.Background(), waypoints)

	want := []domain.Coordinates{
		{Lat: -23.5505, Lon: -46.6333},
		{Lat: -23.5507, Lon: -46.6336},
		{Lat: -23.5510, Lon: -46.6340},
	}
	if !slices.Equal(got, want) {
		t.Fatalf("path = %v, want %v", got, want)
	}

	if wantPath := "/route/v1/driving/-46.633300,-23.550500;-46.634000,-23.551000"; gotPath != wantPath {
		t.Fatalf("request path = %q, want %q", gotPath, wantPath)
	}
	if !strings.Contains(gotQuery, "overview=full") || !strings.Contains(gotQuery, "geometries=geojson") {
		t.Fatalf("request query = %q, want overview=full and geometries=geojson", gotQuery)
	}
}

func TestToRoadPathFallsBack(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"malformed json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"routes":[`))
		}},
		{"no routes", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"code":"NoRoute","routes":[]}`))
		}},
		{"short coordinate", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"code":"Ok","routes":[{"geometry":{"coordinates":[[1]]}}]}`))
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			got := newTestProvider(t, srv.URL, time.Second).ToRoadPath(context.Background(), waypoints)
			if !slices.Equal(got, waypoints) {
				t.Fatalf("path = %v, want input unchanged", got)
			}
		})
	}
}

func TestToRoadPathUnreachableWithinTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	timeout := 500 * time.Millisecond
	p := newTestProvider(t, url, timeout)

	start := time.Now()
	got := p.ToRoadPath(context.Background(), waypoints)
	if elapsed := time.Since(start); elapsed > timeout+time.Second {
		t.Fatalf("fallback took %v, want within %v", elapsed, timeout)
	}
	if !slices.Equal(got, waypoints) {
		t.Fatalf("path = %v, want input unchanged", got)
	}
}

func TestToRoadPathSlowServerTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	timeout := 200 * time.Millisecond
	start := time.Now()
	got := newTestProvider(t, srv.URL, timeout).ToRoadPath(context.Background(), waypoints)
	if elapsed := time.Since(start); elapsed > timeout+time.Second {
		t.Fatalf("fallback took %v, want within %v", elapsed, timeout)
	}
	if !slices.Equal(got, waypoints) {
		t.Fatalf("path = %v, want input unchanged", got)
	}
}

func TestToRoadPathSinglePointSkipsLookup(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))
	defer srv.Close()

	in := waypoints[:1]
	got := newTestProvider(t, srv.URL, time.Second).ToRoadPath(context.Background(), in)
	if !slices.Equal(got, in) || calls != 0 {
		t.Fatalf("path = %v calls = %d, want input unchanged and no calls", got, calls)
	}
}

func TestNewOSRMRoadPathRequiresBaseURL(t *testing.T) {
	if _, err := NewOSRMRoadPath("  ", "driving", time.Second); err == nil {
		t.Fatal("expected error for empty base url")
	}
}
