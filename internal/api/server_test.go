package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"moonwatch/config"
	"moonwatch/internal/astro"
	"moonwatch/internal/calendar"
	"moonwatch/internal/collector"
	"moonwatch/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var march20 = time.Date(2024, 3, 20, 12, 0, 0, 0, time.Local)

func testSource() astro.Source {
	known := map[string]bool{"tokyo": true, "lima": true}
	return astro.SourceFunc(func(_ context.Context, date calendar.Date, location string) (*astro.Observation, error) {
		if !known[strings.ToLower(location)] {
			return nil, astro.ErrLocationNotFound
		}
		return &astro.Observation{
			Date:                date,
			Location:            location,
			Hemisphere:          astro.Northern,
			PhaseName:           "Waxing Crescent",
			IlluminationPercent: 60,
			Moonrise:            calendar.TimeOfDay{Hour: 9, Minute: 12},
			Moonset:             calendar.TimeOfDay{Hour: 23, Minute: 40},
			Sunrise:             calendar.TimeOfDay{Hour: 5, Minute: 45},
			Sunset:              calendar.TimeOfDay{Hour: 17, Minute: 52},
		}, nil
	})
}

type stubGeocoder struct{ label string }

func (g stubGeocoder) Resolve(context.Context, string) (astro.Place, error) {
	return astro.Place{}, astro.ErrLocationNotFound
}

func (g stubGeocoder) ReverseGeocode(context.Context, float64, float64) (string, error) {
	return g.label, nil
}

type testServer struct {
	*httptest.Server
	client     *http.Client
	db         *storage.Database
	configPath string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Server.DefaultLocation = "Tokyo"

	dir := t.TempDir()
	db, err := storage.NewDatabase(filepath.Join(dir, "moonwatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	configPath := filepath.Join(dir, "config.yaml")
	s, err := NewServer(ServerConfig{
		Source:     testSource(),
		Geocoder:   stubGeocoder{label: "Lima"},
		Database:   db,
		Config:     cfg,
		ConfigPath: configPath,
		Now:        func() time.Time { return march20 },
	})
	require.NoError(t, err)

	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testServer{Server: srv, client: client, db: db, configPath: configPath}
}

func (ts *testServer) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := ts.client.Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (ts *testServer) send(t *testing.T, method, path string, payload interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	req, err := http.NewRequest(method, ts.URL+path, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func stateOf(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	if nested, ok := body["state"].(map[string]interface{}); ok {
		if inner, ok := nested["state"].(map[string]interface{}); ok {
			return inner
		}
		return nested
	}
	t.Fatalf("no state in %v", body)
	return nil
}

func TestPageRendersObservation(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.get(t, "/2024/3/20/tokyo")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "<title>Moon today · tokyo</title>")
	assert.Contains(t, body, "March 20, 2024")
	assert.Contains(t, body, `data-frame="8"`)
	assert.Contains(t, body, `href="/2024/3/19/tokyo"`)
	assert.Contains(t, body, `href="/2024/3/21/tokyo"`)
	assert.Contains(t, body, "05:45")

	var found bool
	for _, c := range ts.client.Jar.Cookies(mustParse(t, ts.URL)) {
		found = found || c.Name == sessionCookie
	}
	assert.True(t, found)
}

func TestInvalidDateRedirectsHome(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.get(t, "/2023/2/29/tokyo")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	resp, body := ts.get(t, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Moon today · Tokyo")
}

func TestLocationFormRollsBackUnknownPlace(t *testing.T) {
	ts := newTestServer(t)
	ts.get(t, "/2024/3/20/tokyo")

	resp, err := ts.client.PostForm(ts.URL+"/location", url.Values{"location": {"Nowhereland"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/2024/3/20/tokyo", resp.Header.Get("Location"))

	_, body := ts.get(t, "/2024/3/20/tokyo")
	assert.Contains(t, body, "No moon data found for Nowhereland.")
	assert.Contains(t, body, `value="tokyo"`)

	_, body = ts.get(t, "/2024/3/20/tokyo")
	assert.NotContains(t, body, "Nowhereland")
}

func TestLocationFormPersistsPreference(t *testing.T) {
	ts := newTestServer(t)
	ts.get(t, "/")

	resp, err := ts.client.PostForm(ts.URL+"/location", url.Values{"location": {"Lima"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "/2024/3/20/lima", resp.Header.Get("Location"))

	_, body := ts.get(t, "/")
	assert.Contains(t, body, `value="Lima"`)

	records, err := ts.db.GetObservationHistory("lima", 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestResetForm(t *testing.T) {
	ts := newTestServer(t)
	ts.get(t, "/2020/1/1/lima")

	resp, err := ts.client.PostForm(ts.URL+"/reset", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	_, body := ts.get(t, "/")
	assert.Contains(t, body, "Moon today · lima")
}

func TestAPINavigate(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.send(t, http.MethodPost, "/api/v1/navigate", NavigateRequest{Direction: "next"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	state := body["state"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"year": 2024.0, "month": 3.0, "day": 21.0}, state["active_date"])
	assert.Equal(t, "Tokyo", state["location"])
	assert.Equal(t, "/2024/3/21/tokyo", body["path"])

	resp, _ = ts.send(t, http.MethodPost, "/api/v1/navigate", NavigateRequest{Direction: "sideways"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPILocationFailure(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.send(t, http.MethodPost, "/api/v1/location", LocationRequest{Location: "Atlantis"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body["error"], "Atlantis")

	state := stateOf(t, body)
	assert.Equal(t, "Tokyo", state["location"])
	assert.Equal(t, false, state["loading"])
}

func TestAPIGeolocate(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.send(t, http.MethodPost, "/api/v1/geolocate", GeolocateRequest{Denied: true})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "Tokyo", stateOf(t, body)["location"])

	resp, _ = ts.send(t, http.MethodPost, "/api/v1/geolocate", GeolocateRequest{TimedOut: true})
	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)

	resp, body = ts.send(t, http.MethodPost, "/api/v1/geolocate", GeolocateRequest{Latitude: -12.05, Longitude: -77.04})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Lima", body["state"].(map[string]interface{})["location"])
}

func TestAPIObservation(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.get(t, "/api/v1/observation?date=2024-03-20&location=Tokyo")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var view ObservationView
	require.NoError(t, json.Unmarshal([]byte(body), &view))
	assert.Equal(t, 30, view.Observation.CyclePercent)
	assert.Equal(t, 8, view.Sprite.Frame)
	assert.Equal(t, -1400, view.Sprite.Offset)
	assert.Greater(t, view.Sun.Sweep.Sweep, 0.0)

	resp, _ = ts.get(t, "/api/v1/observation?date=2024-02-30")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.get(t, "/api/v1/observation?location=Atlantis")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHistory(t *testing.T) {
	ts := newTestServer(t)
	ts.get(t, "/2024/3/20/tokyo")
	ts.get(t, "/2024/3/21/tokyo")

	resp, body := ts.get(t, "/api/v1/history?location=tokyo&limit=5")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var records []storage.ObservationRecord
	require.NoError(t, json.Unmarshal([]byte(body), &records))
	assert.Len(t, records, 2)

	resp, body = ts.get(t, "/api/v1/history?location=tokyo&from=2024-03-21&to=2024-03-31")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal([]byte(body), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "2024-03-21", records[0].Date)

	resp, _ = ts.get(t, "/api/v1/history?from=yesterday&to=today")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = ts.get(t, "/api/v1/history?location=tokyo&latest=true")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var latest storage.ObservationRecord
	require.NoError(t, json.Unmarshal([]byte(body), &latest))
	assert.Equal(t, "2024-03-21", latest.Date)

	resp, _ = ts.get(t, "/api/v1/history?location=lima&latest=true")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDisplayConfig(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.send(t, http.MethodPut, "/api/v1/config/display", DisplayConfigRequest{
		DefaultLocation: "Lima",
		Locale:          "es",
		MonthStyle:      "sideways",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.send(t, http.MethodPut, "/api/v1/config/display", DisplayConfigRequest{
		DefaultLocation: "Lima",
		Locale:          "es",
		MonthStyle:      "long",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, body := ts.get(t, "/api/v1/config/display")
	assert.Contains(t, body, `"locale":"es"`)

	written, err := os.ReadFile(ts.configPath)
	require.NoError(t, err)
	assert.Contains(t, string(written), "default_location: Lima")

	_, page := ts.get(t, "/2024/3/21/lima")
	assert.Contains(t, page, "21 de marzo de 2024")
}

func TestHealthAndUnknownAPIRoute(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"status":"healthy"`)

	resp, _ = ts.get(t, "/api/v1/nothing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ts.get(t, "/static/moonwatch.css")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthReportsCollectedLocations(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Collector.Locations = []string{"Tokyo", "Atlantis"}

	coll := collector.NewCollector(collector.CollectorConfig{
		Source:    testSource(),
		Locations: cfg.Collector.Locations,
		Now:       func() time.Time { return march20 },
	})
	_, err = coll.CollectOnce(context.Background(), "Tokyo")
	require.NoError(t, err)

	s, err := NewServer(ServerConfig{Source: testSource(), Collector: coll, Config: cfg, Now: func() time.Time { return march20 }})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var health struct {
		Latest map[string]struct {
			Date  string `json:"date"`
			Phase string `json:"phase"`
		} `json:"latest"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	require.Contains(t, health.Latest, "Tokyo")
	assert.NotContains(t, health.Latest, "Atlantis")
	assert.Equal(t, "2024-03-20", health.Latest["Tokyo"].Date)
	assert.Equal(t, "Waxing Crescent", health.Latest["Tokyo"].Phase)
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}
