package roadpath

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"route-tracker/internal/domain"
	"route-tracker/internal/platform/obs"
)

const maxResponseBytes = 8 << 20

var errRateLimited = errors.New("road path rate limit")

type routeResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Geometry struct {
			Type        string      `json:"type"`
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

// OSRMRoadPath implements ports.RoadPathProvider against an OSRM-compatible
// /route service.
//
// Every call is a fresh request: there is no cache and no retry. Any failure,
// including the rate limiter refusing to wait within the timeout, returns the
// input points unchanged so callers can draw straight lines.
type OSRMRoadPath struct {
	session   *http.Client
	baseURL   string
	profile   string
	timeout   time.Duration
	limiter   *rate.Limiter
	userAgent string
}

type Option func(*OSRMRoadPath)

// WithHTTPClient replaces the default client. The per-call timeout still applies.
func WithHTTPClient(c *http.Client) Option {
	return func(o *OSRMRoadPath) { o.session = c }
}

// WithRateLimit caps outbound requests per second; a non-positive value disables the cap.
func WithRateLimit(perSecond float64) Option {
	return func(o *OSRMRoadPath) {
		if perSecond <= 0 {
			o.limiter = nil
			return
		}
		o.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

func WithUserAgent(ua string) Option {
	return func(o *OSRMRoadPath) { o.userAgent = ua }
}

func NewOSRMRoadPath(baseURL, profile string, timeout time.Duration, opts ...Option) (*OSRMRoadPath, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("osrm base url is empty")
	}
	if profile == "" {
		profile = "driving"
	}
	if timeout <= 0 {
		timeout = 12 * time.Second
	}

	o := &OSRMRoadPath{
		session: &http.Client{Timeout: timeout},
		baseURL: baseURL,
		profile: profile,
		timeout: timeout,
	}
	for _, opt := range opts {
		opt(o)
	}

	return o, nil
}

// ToRoadPath returns the road-following polyline through points, in
// latitude/longitude order, or points unchanged on any failure.
func (o *OSRMRoadPath) ToRoadPath(ctx context.Context, points []domain.Coordinates) []domain.Coordinates {
	if len(points) < 2 {
		return points
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	path, err := o.fetchRoute(ctx, points)
	if err != nil {
		reason := fallbackReason(err)
		obs.RoadPathFallbacks.WithLabelValues(reason).Inc()
		log.Printf("req_id=%s op=roadpath.fallback reason=%s points=%d err=%v", obs.RequestID(ctx), reason, len(points), err)
		return points
	}

	return path
}

func (o *OSRMRoadPath) fetchRoute(ctx context.Context, points []domain.Coordinates) (_ []domain.Coordinates, err error) {
	defer obs.Time(ctx, "roadpath.fetchRoute")(&err)

	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", errRateLimited, err)
		}
	}

	req, err := o.newRequest(ctx, o.routeURL(points))
	if err != nil {
		return nil, err
	}

	resp, err := o.do(req)
	if err != nil {
		return nil, fmt.Errorf("route request failed: %w", err)
	}
	defer resp.Body.Close()

	var decoded routeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode route response: %w", err)
	}

	if decoded.Code != "" && decoded.Code != "Ok" {
		return nil, fmt.Errorf("route response code %q", decoded.Code)
	}
	if len(decoded.Routes) == 0 {
		return nil, errors.New("route response has no routes")
	}

	coords := decoded.Routes[0].Geometry.Coordinates
	if len(coords) == 0 {
		return nil, errors.New("route geometry is empty")
	}

	out := make([]domain.Coordinates, 0, len(coords))
	for i, c := range coords {
		if len(c) < 2 {
			return nil, fmt.Errorf("invalid coordinate format at %d", i)
		}
		// GeoJSON positions are [lon, lat].
		p := domain.Coordinates{Lat: c[1], Lon: c[0]}
		if !p.Valid() {
			return nil, fmt.Errorf("coordinate out of range at %d: %v", i, c)
		}
		out = append(out, p)
	}

	return out, nil
}

func (o *OSRMRoadPath) routeURL(points []domain.Coordinates) string {
	parts := make([]string, 0, len(points))
	for _, p := range points {
		parts = append(parts,
			strconv.FormatFloat(p.Lon, 'f', 6, 64)+","+strconv.FormatFloat(p.Lat, 'f', 6, 64))
	}

	return fmt.Sprintf("%s/route/v1/%s/%s?overview=full&geometries=geojson",
		o.baseURL, o.profile, strings.Join(parts, ";"))
}

func fallbackReason(err error) string {
	var he *httpStatusError
	var netErr net.Error
	switch {
	case errors.Is(err, errRateLimited):
		return "rate_limited"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &he):
		return "status"
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			return "timeout"
		}
		return "network"
	default:
		return "payload"
	}
}
