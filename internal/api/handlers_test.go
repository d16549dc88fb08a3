package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"hydro-monitor/internal/auth"
	"hydro-monitor/internal/model"
	"hydro-monitor/internal/store"
)

type testEnv struct {
	server     *httptest.Server
	store      *store.Store
	adminToken string
	userToken  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "api_test.sqlite"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	am := auth.NewManager("test-secret", 30, st)
	h := NewHandler(st, am, nil, slog.Default())
	srv := httptest.NewServer(NewRouter(h, am))
	t.Cleanup(srv.Close)

	env := &testEnv{server: srv, store: st}
	env.adminToken = env.seedUser(t, st, am, "root", auth.RoleAdmin)
	env.userToken = env.seedUser(t, st, am, "viewer", auth.RoleUser)
	return env
}

func (e *testEnv) seedUser(t *testing.T, st *store.Store, am *auth.Manager, username, role string) string {
	t.Helper()
	hashed, err := auth.HashPassword("pw")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	u := &model.User{Username: username, Email: username + "@dam.example", HashedPassword: hashed, Role: role, IsActive: true}
	if err := st.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("seed user failed: %v", err)
	}
	token, err := am.GenerateToken(username, role)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, raw
}

func (e *testEnv) createPoint(t *testing.T, code, deviceType string) {
	t.Helper()
	resp, raw := e.do(t, http.MethodPost, "/points", e.adminToken, map[string]any{
		"point_code":  code,
		"point_name":  "point " + code,
		"device_type": deviceType,
		"longitude":   103.45,
		"latitude":    31.0,
		"height":      856.0,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create point %s: status %d body %s", code, resp.StatusCode, raw)
	}
}

func TestAuthRequired(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/points", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodGet, "/points", "garbage", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for malformed header, got %d", resp.StatusCode)
	}
}

func TestRoleEnforcement(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodPost, "/points", env.userToken, map[string]any{
		"point_code": "EX1", "point_name": "x", "device_type": "tension-line",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin creation, got %d", resp.StatusCode)
	}

	// nothing persisted
	points, err := env.store.ListPoints(context.Background())
	if err != nil {
		t.Fatalf("ListPoints failed: %v", err)
	}
	if len(points) != 0 {
		t.Fatalf("forbidden create must not persist, found %d points", len(points))
	}

	// reads are open to any active account
	resp, _ = env.do(t, http.MethodGet, "/points", env.userToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for active read, got %d", resp.StatusCode)
	}
}

func TestPointLifecycle(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.createPoint(t, "EX1", "tension-line")

	resp, raw := env.do(t, http.MethodPost, "/points", env.adminToken, map[string]any{
		"point_code": "EX1", "point_name": "dup", "device_type": "tension-line",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate code, got %d body %s", resp.StatusCode, raw)
	}

	resp, _ = env.do(t, http.MethodGet, "/points/ghost", env.userToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown point, got %d", resp.StatusCode)
	}

	// unknown update fields are rejected, not silently applied
	resp, _ = env.do(t, http.MethodPut, "/points/EX1", env.adminToken, map[string]any{
		"point_name": "renamed", "not_a_field": 1,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown update field, got %d", resp.StatusCode)
	}

	resp, raw = env.do(t, http.MethodPut, "/points/EX1", env.adminToken, map[string]any{
		"point_name": "renamed",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update failed: %d %s", resp.StatusCode, raw)
	}
	var updated model.MonitorPoint
	if err := json.Unmarshal(raw, &updated); err != nil {
		t.Fatalf("decode updated point: %v", err)
	}
	if updated.PointName != "renamed" || updated.DeviceType != "tension-line" {
		t.Fatalf("partial update wrong: %+v", updated)
	}

	resp, raw = env.do(t, http.MethodGet, "/points/EX1", env.userToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("detail failed: %d", resp.StatusCode)
	}
	var detail store.PointDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if detail.DataCount != 0 {
		t.Fatalf("expected zero data_count, got %d", detail.DataCount)
	}

	resp, _ = env.do(t, http.MethodDelete, "/points/EX1", env.adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete failed: %d", resp.StatusCode)
	}
}

func TestMeasurementFlow(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.createPoint(t, "X", "tension-line")
	env.createPoint(t, "Y", "water-level")

	t1 := time.Date(2026, 3, 1, 1, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	for _, m := range []map[string]any{
		{"point_code": "X", "value": 10.0, "time": t1.Format(time.RFC3339)},
		{"point_code": "X", "value": 15.0, "time": t2.Format(time.RFC3339)},
	} {
		resp, raw := env.do(t, http.MethodPost, "/measurements", env.adminToken, m)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("create measurement: %d %s", resp.StatusCode, raw)
		}
	}

	resp, raw := env.do(t, http.MethodPost, "/measurements", env.adminToken, map[string]any{
		"point_code": "ghost", "value": 1.0,
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown point, got %d %s", resp.StatusCode, raw)
	}

	// batch: one unknown item is skipped, two accepted
	resp, raw = env.do(t, http.MethodPost, "/measurements/batch", env.adminToken, map[string]any{
		"measurements": []map[string]any{
			{"point_code": "Y", "value": 115.0},
			{"point_code": "ghost", "value": 2.0},
			{"point_code": "Y", "value": 116.0},
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("batch failed: %d %s", resp.StatusCode, raw)
	}
	var accepted []model.Measurement
	if err := json.Unmarshal(raw, &accepted); err != nil {
		t.Fatalf("decode batch result: %v", err)
	}
	if len(accepted) != 2 {
		t.Fatalf("expected 2 accepted rows, got %d", len(accepted))
	}

	resp, raw = env.do(t, http.MethodGet, "/measurements/X/stats", env.userToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats failed: %d %s", resp.StatusCode, raw)
	}
	var stats store.MeasurementStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Count != 2 || stats.MaxValue != 15 || stats.MinValue != 10 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	resp, raw = env.do(t, http.MethodGet, "/measurements/X/compare", env.userToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("compare failed: %d %s", resp.StatusCode, raw)
	}
	var cmp store.CompareResult
	if err := json.Unmarshal(raw, &cmp); err != nil {
		t.Fatalf("decode compare: %v", err)
	}
	if cmp.CurrentValue != 15 || cmp.PreviousValue != 10 || cmp.ChangeValue != 5 || cmp.ChangePercent != 50 {
		t.Fatalf("unexpected compare result: %+v", cmp)
	}

	resp, raw = env.do(t, http.MethodGet, "/measurements/latest", env.userToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("global latest failed: %d %s", resp.StatusCode, raw)
	}
	var latest []store.LatestMeasurement
	if err := json.Unmarshal(raw, &latest); err != nil {
		t.Fatalf("decode latest: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("expected latest for 2 points, got %d", len(latest))
	}

	resp, _ = env.do(t, http.MethodGet,
		"/measurements/X/range?start_time=bogus&end_time="+t2.Format(time.RFC3339), env.userToken, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unparseable timestamp, got %d", resp.StatusCode)
	}

	resp, raw = env.do(t, http.MethodGet, fmt.Sprintf("/measurements/X/range?start_time=%s&end_time=%s",
		t1.Format(time.RFC3339), t2.Format(time.RFC3339)), env.userToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("range failed: %d %s", resp.StatusCode, raw)
	}
	var rows []store.MeasurementOut
	if err := json.Unmarshal(raw, &rows); err != nil {
		t.Fatalf("decode range: %v", err)
	}
	if len(rows) != 2 || rows[0].DeviceType != "tension-line" {
		t.Fatalf("unexpected range rows: %+v", rows)
	}
}

func TestReadingEndpoints(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.createPoint(t, "IP1", "inverted-plumb")

	resp, raw := env.do(t, http.MethodPost, "/readings/inverted-plumb", env.adminToken, map[string]any{
		"point_code": "IP1",
		"values":     map[string]float64{"left-right": 1.25, "up-down": -0.75},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create reading failed: %d %s", resp.StatusCode, raw)
	}
	var created []model.InstrumentReading
	if err := json.Unmarshal(raw, &created); err != nil {
		t.Fatalf("decode created readings: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected one row per axis, got %d", len(created))
	}

	resp, _ = env.do(t, http.MethodPost, "/readings/seismograph", env.adminToken, map[string]any{
		"point_code": "IP1", "values": map[string]float64{"left-right": 1},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown family, got %d", resp.StatusCode)
	}

	resp, raw = env.do(t, http.MethodGet, "/readings/inverted-plumb/IP1/latest", env.userToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("latest reading failed: %d %s", resp.StatusCode, raw)
	}

	resp, _ = env.do(t, http.MethodGet, "/readings/water-level/IP1/latest", env.userToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for empty series, got %d", resp.StatusCode)
	}
}

func TestAlertCheck(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.createPoint(t, "X", "water-level")

	resp, raw := env.do(t, http.MethodPost, "/measurements", env.adminToken, map[string]any{
		"point_code": "X", "value": 150.0,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create measurement: %d %s", resp.StatusCode, raw)
	}

	rules := []map[string]any{
		{"point_code": "X", "max_value": 100.0, "alert_enabled": true},
		{"point_code": "X", "max_value": 100.0, "alert_enabled": false},
		{"point_code": "nodata", "max_value": 1.0},
	}
	resp, raw = env.do(t, http.MethodPost, "/alerts/check", env.userToken, rules)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("alert check failed: %d %s", resp.StatusCode, raw)
	}
	var alerts []map[string]any
	if err := json.Unmarshal(raw, &alerts); err != nil {
		t.Fatalf("decode alerts: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected exactly one alert, got %d: %s", len(alerts), raw)
	}
	if alerts[0]["kind"] != "above-max" || alerts[0]["threshold"] != 100.0 || alerts[0]["current_value"] != 150.0 {
		t.Fatalf("unexpected alert: %+v", alerts[0])
	}

	// evaluation is gated at the active capability
	resp, _ = env.do(t, http.MethodPost, "/alerts/check", "", rules)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", resp.StatusCode)
	}
}

func TestRegisterLoginMe(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	resp, raw := env.do(t, http.MethodPost, "/auth/register", "", map[string]any{
		"username": "carol", "email": "carol@dam.example", "password": "pw",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register failed: %d %s", resp.StatusCode, raw)
	}

	resp, _ = env.do(t, http.MethodPost, "/auth/register", "", map[string]any{
		"username": "carol", "email": "other@dam.example", "password": "pw",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate username, got %d", resp.StatusCode)
	}

	resp, raw = env.do(t, http.MethodPost, "/auth/login", "", map[string]any{
		"username": "carol", "password": "pw",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d %s", resp.StatusCode, raw)
	}
	var login struct {
		AccessToken string     `json:"access_token"`
		TokenType   string     `json:"token_type"`
		User        model.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if login.TokenType != "bearer" || login.AccessToken == "" || login.User.Username != "carol" {
		t.Fatalf("unexpected login payload: %+v", login)
	}

	resp, raw = env.do(t, http.MethodGet, "/auth/me", login.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me failed: %d %s", resp.StatusCode, raw)
	}
	var me model.User
	if err := json.Unmarshal(raw, &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.Username != "carol" || me.Role != auth.RoleUser {
		t.Fatalf("unexpected me payload: %+v", me)
	}

	resp, _ = env.do(t, http.MethodPost, "/auth/login", "", map[string]any{
		"username": "carol", "password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad credentials, got %d", resp.StatusCode)
	}
}

func TestUserAdministration(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/auth/users", env.userToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin user list, got %d", resp.StatusCode)
	}

	resp, raw := env.do(t, http.MethodGet, "/auth/users", env.adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("user list failed: %d %s", resp.StatusCode, raw)
	}
	var users []model.User
	if err := json.Unmarshal(raw, &users); err != nil {
		t.Fatalf("decode users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected the 2 seeded users, got %d", len(users))
	}

	viewerID := users[1].ID
	resp, raw = env.do(t, http.MethodPut, fmt.Sprintf("/auth/users/%d", viewerID), env.adminToken, map[string]any{
		"is_active": false,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("user update failed: %d %s", resp.StatusCode, raw)
	}

	// deactivated account loses access immediately
	resp, _ = env.do(t, http.MethodGet, "/points", env.userToken, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for deactivated account, got %d", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodDelete, fmt.Sprintf("/auth/users/%d", viewerID), env.adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("user delete failed: %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodDelete, fmt.Sprintf("/auth/users/%d", viewerID), env.adminToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 deleting twice, got %d", resp.StatusCode)
	}
}
