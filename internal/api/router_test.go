package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"route-tracker/internal/adapters/repositories"
	"route-tracker/internal/adapters/roadpath"
	"route-tracker/internal/adapters/sessionstore"
	"route-tracker/internal/adapters/solver"
	"route-tracker/internal/adapters/stopfile"
	"route-tracker/internal/api/dto"
	"route-tracker/internal/auth"
	"route-tracker/internal/platform/obs"
	"route-tracker/internal/services"
	"route-tracker/internal/session"
)

const stopsCSV = `Latitude,Longitude,Destination Address,SPX TN
0,0.001,first,A
0,0.002,second,B
0,0.0005,third,C
0,0.0005,third,D
`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	repo, err := repositories.NewMemoryDriverRepository(map[string]string{"driver": "secret"})
	if err != nil {
		t.Fatalf("repo: %v", err)
	}
	authn := auth.NewAuthenticator(repo, "test-secret", time.Hour)
	ctl := session.NewController(
		sessionstore.NewMemorySessionStore(time.Hour),
		authn,
		stopfile.NewCSVParser(),
		services.NewRouteBuilder(solver.NewCheapestArcSolver(true), time.Second),
		roadpath.StraightLine{},
		session.Settings{ProximityRadius: 50, RefreshInterval: 25 * time.Second, PositionMaxAge: time.Minute},
	)

	srv := httptest.NewServer(NewRouter(ctl, authn))
	t.Cleanup(srv.Close)
	return srv
}

type client struct {
	t     *testing.T
	base  string
	token string
}

func (c *client) do(method, path, contentType string, body io.Reader) (int, []byte) {
	c.t.Helper()

	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		c.t.Fatalf("read body: %v", err)
	}
	return res.StatusCode, b
}

func (c *client) sendJSON(method, path string, v any) (int, []byte) {
	c.t.Helper()
	var body io.Reader
	if v != nil {
		b, err := json.Marshal(v)
		if err != nil {
			c.t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(b)
	}
	return c.do(method, path, "application/json", body)
}

// snapshot issues a request that must succeed and decodes the snapshot reply.
func (c *client) snapshot(method, path, contentType string, body io.Reader) dto.SnapshotResponse {
	c.t.Helper()
	status, b := c.do(method, path, contentType, body)
	if status != http.StatusOK {
		c.t.Fatalf("%s %s: status %d body %s", method, path, status, b)
	}
	var snap dto.SnapshotResponse
	if err := json.Unmarshal(b, &snap); err != nil {
		c.t.Fatalf("decode snapshot: %v", err)
	}
	return snap
}

func (c *client) login() {
	c.t.Helper()
	status, b := c.sendJSON(http.MethodPost, "/login", dto.LoginRequest{UserID: "driver", AccessKey: "secret"})
	if status != http.StatusOK {
		c.t.Fatalf("login: status %d body %s", status, b)
	}
	var res dto.LoginResponse
	if err := json.Unmarshal(b, &res); err != nil {
		c.t.Fatalf("decode login: %v", err)
	}
	if res.Token == "" || res.SessionID == "" || res.ExpiresInSeconds != 3600 {
		c.t.Fatalf("login response = %+v", res)
	}
	c.token = res.Token
}

func position(lat, lon float64) map[string]float64 {
	return map[string]float64{"lat": lat, "lon": lon}
}

func TestDeliveryFlow(t *testing.T) {
	srv := newTestServer(t)
	c := &client{t: t, base: srv.URL}
	c.login()

	if status, _ := c.do(http.MethodPost, "/route", "", nil); status != http.StatusConflict {
		t.Fatalf("route without position: status %d, want 409", status)
	}

	if status, b := c.sendJSON(http.MethodPut, "/position", position(0, 0)); status != http.StatusOK {
		t.Fatalf("position: status %d body %s", status, b)
	}

	if status, _ := c.do(http.MethodPost, "/route", "", nil); status != http.StatusConflict {
		t.Fatalf("route without upload: status %d, want 409", status)
	}

	snap := c.snapshot(http.MethodPost, "/stops", "text/csv", strings.NewReader(stopsCSV))
	if snap.UploadedStops != 3 {
		t.Fatalf("uploaded stops = %d, want 3", snap.UploadedStops)
	}

	snap = c.snapshot(http.MethodPost, "/route", "", nil)
	var order []string
	for _, s := range snap.Stops {
		order = append(order, s.Stop.Address)
	}
	if strings.Join(order, ",") != "third,first,second" {
		t.Fatalf("order = %v", order)
	}
	if snap.Stops[0].Stop.TrackingCodes != "C | D" || snap.Stops[0].Stop.ItemCount != 2 {
		t.Fatalf("merged stop = %+v", snap.Stops[0].Stop)
	}
	if snap.RefreshIntervalSeconds != 25 {
		t.Fatalf("refresh interval = %d, want 25", snap.RefreshIntervalSeconds)
	}

	if status, b := c.sendJSON(http.MethodPut, "/position", position(0, 0.0005)); status != http.StatusOK {
		t.Fatalf("position: status %d body %s", status, b)
	}
	snap = c.snapshot(http.MethodPost, "/tick", "", nil)
	if snap.DoneCount != 1 || !snap.Stops[0].Done {
		t.Fatalf("tick did not complete the first stop: %+v", snap.Stops)
	}
	if len(snap.RoadPath) != 4 || snap.EncodedPath == "" {
		t.Fatalf("road path = %v encoded=%q", snap.RoadPath, snap.EncodedPath)
	}

	snap = c.snapshot(http.MethodPost, "/route/stops/1/complete", "", nil)
	if snap.DoneCount != 2 || snap.ActiveIndex == nil || *snap.ActiveIndex != 2 {
		t.Fatalf("after complete: done=%d active=%v", snap.DoneCount, snap.ActiveIndex)
	}

	if status, _ := c.do(http.MethodPost, "/route/stops/9/complete", "", nil); status != http.StatusBadRequest {
		t.Fatalf("out of range index: status %d, want 400", status)
	}
	if status, _ := c.do(http.MethodPost, "/route/stops/x/complete", "", nil); status != http.StatusBadRequest {
		t.Fatalf("non-numeric index: status %d, want 400", status)
	}

	status, b := c.do(http.MethodGet, "/route/navigation", "", nil)
	if status != http.StatusOK {
		t.Fatalf("navigation: status %d body %s", status, b)
	}
	var nav dto.NavigationResponse
	if err := json.Unmarshal(b, &nav); err != nil {
		t.Fatalf("decode navigation: %v", err)
	}
	if !strings.Contains(nav.URL, "destination=0.000000%2C0.002000") {
		t.Fatalf("navigation url = %s", nav.URL)
	}

	snap = c.snapshot(http.MethodPost, "/route/stops/2/skip", "", nil)
	if !snap.RouteCompleted || !snap.Stops[2].Skipped {
		t.Fatalf("route not completed by skip: %+v", snap)
	}

	snap = c.snapshotJSON(http.MethodPut, "/view", map[string]string{"mode": "list"})
	if snap.ViewMode != session.ViewList {
		t.Fatalf("view mode = %q", snap.ViewMode)
	}

	snap = c.snapshot(http.MethodDelete, "/route", "", nil)
	if snap.HasRoute || snap.UploadedStops != 3 {
		t.Fatalf("after reset: %+v", snap)
	}

	if status, _ := c.do(http.MethodPost, "/logout", "", nil); status != http.StatusNoContent {
		t.Fatalf("logout: status %d, want 204", status)
	}
	if status, _ := c.do(http.MethodGet, "/route", "", nil); status != http.StatusUnauthorized {
		t.Fatalf("after logout: status %d, want 401", status)
	}
}

func (c *client) snapshotJSON(method, path string, v any) dto.SnapshotResponse {
	c.t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		c.t.Fatalf("marshal: %v", err)
	}
	return c.snapshot(method, path, "application/json", bytes.NewReader(b))
}

func TestPositionLost(t *testing.T) {
	srv := newTestServer(t)
	c := &client{t: t, base: srv.URL}
	c.login()

	c.snapshotJSON(http.MethodPut, "/position", position(0, 0))
	c.snapshot(http.MethodPost, "/stops", "text/csv", strings.NewReader(stopsCSV))

	snap := c.snapshot(http.MethodDelete, "/position", "", nil)
	if !snap.WaitingForPosition || snap.Position != nil {
		t.Fatalf("after losing position: %+v", snap)
	}

	status, b := c.do(http.MethodPost, "/route", "", nil)
	if status != http.StatusConflict || !strings.Contains(string(b), "waiting for position") {
		t.Fatalf("compute without position: status %d body %s", status, b)
	}
}

func TestUploadRejectsBadFile(t *testing.T) {
	srv := newTestServer(t)
	c := &client{t: t, base: srv.URL}
	c.login()

	c.snapshot(http.MethodPost, "/stops", "text/csv", strings.NewReader(stopsCSV))

	status, b := c.do(http.MethodPost, "/stops", "text/csv", strings.NewReader("Longitude\n1\n"))
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("status %d, want 422", status)
	}
	if !strings.Contains(string(b), "latitude") {
		t.Fatalf("error body %s should name the missing column", b)
	}

	snap := c.snapshot(http.MethodGet, "/route", "", nil)
	if snap.UploadedStops != 3 {
		t.Fatalf("uploaded stops = %d, rejected file replaced the earlier one", snap.UploadedStops)
	}
}

func TestUploadMultipart(t *testing.T) {
	srv := newTestServer(t)
	c := &client{t: t, base: srv.URL}
	c.login()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "stops.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.WriteString(fw, stopsCSV); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	snap := c.snapshot(http.MethodPost, "/stops", mw.FormDataContentType(), &buf)
	if snap.UploadedStops != 3 {
		t.Fatalf("uploaded stops = %d, want 3", snap.UploadedStops)
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)
	c := &client{t: t, base: srv.URL}

	if status, _ := c.do(http.MethodGet, "/route", "", nil); status != http.StatusUnauthorized {
		t.Fatalf("no token: status %d, want 401", status)
	}

	c.token = "not-a-token"
	if status, _ := c.do(http.MethodPost, "/tick", "", nil); status != http.StatusUnauthorized {
		t.Fatalf("bad token: status %d, want 401", status)
	}

	c.token = ""
	status, _ := c.sendJSON(http.MethodPost, "/login", dto.LoginRequest{UserID: "driver", AccessKey: "nope"})
	if status != http.StatusUnauthorized {
		t.Fatalf("wrong key: status %d, want 401", status)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	obs.RegisterDefault()
	srv := newTestServer(t)
	c := &client{t: t, base: srv.URL}

	status, b := c.do(http.MethodGet, "/health", "", nil)
	if status != http.StatusOK || !strings.Contains(string(b), `"ok"`) {
		t.Fatalf("health: status %d body %s", status, b)
	}

	status, b = c.do(http.MethodGet, "/metrics", "", nil)
	if status != http.StatusOK {
		t.Fatalf("metrics: status %d", status)
	}
	if !strings.Contains(string(b), "http_requests_total") {
		t.Fatalf("metrics output missing http_requests_total")
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set(requestIDHeader, "abc-123")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	res.Body.Close()

	if got := res.Header.Get(requestIDHeader); got != "abc-123" {
		t.Fatalf("request id = %q, want abc-123", got)
	}
}

func TestRequestValidation(t *testing.T) {
	srv := newTestServer(t)
	c := &client{t: t, base: srv.URL}
	c.login()

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"missing lon", http.MethodPut, "/position", map[string]float64{"lat": 1}},
		{"latitude out of range", http.MethodPut, "/position", position(91, 0)},
		{"unknown view", http.MethodPut, "/view", map[string]string{"mode": "satellite"}},
		{"unknown field", http.MethodPut, "/view", map[string]string{"mode": "map", "zoom": "3"}},
		{"empty login", http.MethodPost, "/login", dto.LoginRequest{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c.t = t
			if status, b := c.sendJSON(tc.method, tc.path, tc.body); status != http.StatusBadRequest {
				t.Fatalf("status %d body %s, want 400", status, b)
			}
		})
	}
}
