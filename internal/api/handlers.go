// Package api adapts the store, auth gate and alert evaluator to HTTP.
// Handlers stay thin: decode, call, map the error taxonomy to a status.
package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"hydro-monitor/internal/alert"
	"hydro-monitor/internal/auth"
	"hydro-monitor/internal/hydroerr"
	"hydro-monitor/internal/model"
	"hydro-monitor/internal/store"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	store        *store.Store
	auth         *auth.Manager
	defaultRules []alert.Rule
	log          *slog.Logger
}

func NewHandler(st *store.Store, am *auth.Manager, defaultRules []alert.Rule, log *slog.Logger) *Handler {
	return &Handler{store: st, auth: am, defaultRules: defaultRules, log: log}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respondError maps the error taxonomy onto HTTP statuses. Duplicate-key
// conflicts surface as 400 to match the original wire contract.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case hydroerr.IsValidation(err), hydroerr.IsConflict(err):
		status = http.StatusBadRequest
	case hydroerr.IsNotFound(err):
		status = http.StatusNotFound
	case hydroerr.IsUnauthenticated(err):
		status = http.StatusUnauthorized
	case hydroerr.IsForbidden(err):
		status = http.StatusForbidden
	default:
		status = http.StatusInternalServerError
		h.log.Error("request failed", "error", err)
	}
	respondJSON(w, status, map[string]string{"detail": err.Error()})
}

// decodeJSON decodes a request body strictly: unknown fields are a
// validation error, never silently applied.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return hydroerr.Validationf("invalid request body: %v", err)
	}
	return nil
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// queryTime parses an optional RFC3339 query parameter.
func queryTime(r *http.Request, key string) (*time.Time, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, hydroerr.Validationf("unparseable %s %q", key, s)
	}
	return &t, nil
}

// ---- points ----

func (h *Handler) ListPoints(w http.ResponseWriter, r *http.Request) {
	points, err := h.store.ListPoints(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, points)
}

func (h *Handler) CreatePoint(w http.ResponseWriter, r *http.Request) {
	var p model.MonitorPoint
	if err := decodeJSON(r, &p); err != nil {
		h.respondError(w, err)
		return
	}
	if p.PointCode == "" {
		h.respondError(w, hydroerr.Validationf("point_code must be set"))
		return
	}
	if err := h.store.CreatePoint(r.Context(), &p); err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handler) PointDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := h.store.PointDetail(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

func (h *Handler) UpdatePoint(w http.ResponseWriter, r *http.Request) {
	var upd store.PointUpdate
	if err := decodeJSON(r, &upd); err != nil {
		h.respondError(w, err)
		return
	}
	p, err := h.store.UpdatePoint(r.Context(), chi.URLParam(r, "code"), upd)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handler) DeletePoint(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeletePoint(r.Context(), chi.URLParam(r, "code")); err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "point deleted"})
}

// ---- generic measurements ----

func (h *Handler) CreateMeasurement(w http.ResponseWriter, r *http.Request) {
	var in store.MeasurementCreate
	if err := decodeJSON(r, &in); err != nil {
		h.respondError(w, err)
		return
	}
	m, err := h.store.CreateMeasurement(r.Context(), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (h *Handler) CreateMeasurementsBatch(w http.ResponseWriter, r *http.Request) {
	var batch struct {
		Measurements []store.MeasurementCreate `json:"measurements"`
	}
	if err := decodeJSON(r, &batch); err != nil {
		h.respondError(w, err)
		return
	}
	accepted, err := h.store.CreateMeasurementsBatch(r.Context(), batch.Measurements)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, accepted)
}

func (h *Handler) ListMeasurements(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.ListMeasurements(r.Context(), chi.URLParam(r, "code"),
		queryInt(r, "skip", 0), queryInt(r, "limit", 100))
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *Handler) MeasurementsRange(w http.ResponseWriter, r *http.Request) {
	start, err := queryTime(r, "start_time")
	if err != nil {
		h.respondError(w, err)
		return
	}
	end, err := queryTime(r, "end_time")
	if err != nil {
		h.respondError(w, err)
		return
	}
	if start == nil || end == nil {
		h.respondError(w, hydroerr.Validationf("start_time and end_time are required"))
		return
	}
	rows, err := h.store.MeasurementsRange(r.Context(), chi.URLParam(r, "code"), *start, *end)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *Handler) LatestMeasurement(w http.ResponseWriter, r *http.Request) {
	latest, err := h.store.LatestMeasurement(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, latest)
}

func (h *Handler) AllLatestMeasurements(w http.ResponseWriter, r *http.Request) {
	latest, err := h.store.AllLatestMeasurements(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, latest)
}

func (h *Handler) MeasurementStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.MeasurementStats(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (h *Handler) CompareMeasurements(w http.ResponseWriter, r *http.Request) {
	current, err := queryTime(r, "current_time")
	if err != nil {
		h.respondError(w, err)
		return
	}
	previous, err := queryTime(r, "previous_time")
	if err != nil {
		h.respondError(w, err)
		return
	}
	res, err := h.store.CompareMeasurements(r.Context(), chi.URLParam(r, "code"), current, previous)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// ---- instrument readings ----

func urlFamily(r *http.Request) (model.Family, error) {
	f, err := model.ParseFamily(chi.URLParam(r, "family"))
	if err != nil {
		return "", hydroerr.Validationf("%v", err)
	}
	return f, nil
}

func (h *Handler) CreateReading(w http.ResponseWriter, r *http.Request) {
	family, err := urlFamily(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	var in struct {
		PointCode string             `json:"point_code"`
		Time      time.Time          `json:"time"`
		Values    map[string]float64 `json:"values"`
	}
	if err := decodeJSON(r, &in); err != nil {
		h.respondError(w, err)
		return
	}
	values := make(map[model.Channel]float64, len(in.Values))
	for ch, v := range in.Values {
		values[model.Channel(ch)] = v
	}
	rows, err := h.store.AppendReading(r.Context(), family, store.ReadingCreate{
		PointCode: in.PointCode,
		Time:      in.Time,
		Values:    values,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *Handler) ListReadings(w http.ResponseWriter, r *http.Request) {
	family, err := urlFamily(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	rows, err := h.store.ListReadings(r.Context(), family, chi.URLParam(r, "code"),
		queryInt(r, "skip", 0), queryInt(r, "limit", 100))
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *Handler) LatestReading(w http.ResponseWriter, r *http.Request) {
	family, err := urlFamily(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	rows, err := h.store.LatestReading(r.Context(), family, chi.URLParam(r, "code"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// ---- alerts ----

// CheckAlerts evaluates caller-supplied rules (or the configured standing
// rule set when the body is empty) against the latest value per point.
func (h *Handler) CheckAlerts(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.respondError(w, hydroerr.Validationf("read body: %v", err))
		return
	}
	rules := h.defaultRules
	if len(body) > 0 {
		rules = nil
		if err := json.Unmarshal(body, &rules); err != nil {
			h.respondError(w, hydroerr.Validationf("invalid rule list: %v", err))
			return
		}
	}

	snapshot := make(alert.Snapshot, len(rules))
	for _, rule := range rules {
		if _, seen := snapshot[rule.PointCode]; seen {
			continue
		}
		latest, err := h.store.LatestMeasurement(r.Context(), rule.PointCode)
		if err != nil {
			if hydroerr.IsNotFound(err) {
				continue
			}
			h.respondError(w, err)
			return
		}
		snapshot[rule.PointCode] = alert.Latest{
			PointName: latest.PointName,
			Value:     latest.Value,
			Time:      latest.Time,
		}
	}
	respondJSON(w, http.StatusOK, alert.Evaluate(rules, snapshot))
}

// ---- auth & users ----

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *Handler) newUser(in registerRequest) (*model.User, error) {
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, hydroerr.Validationf("username, email and password must be set")
	}
	role := in.Role
	if role == "" {
		role = auth.RoleUser
	}
	if role != auth.RoleAdmin && role != auth.RoleUser {
		return nil, hydroerr.Validationf("unknown role %q", role)
	}
	hashed, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	return &model.User{
		Username:       in.Username,
		Email:          in.Email,
		HashedPassword: hashed,
		Role:           role,
		IsActive:       true,
	}, nil
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := decodeJSON(r, &in); err != nil {
		h.respondError(w, err)
		return
	}
	u, err := h.newUser(in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if err := h.store.CreateUser(r.Context(), u); err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		h.respondError(w, err)
		return
	}
	u, token, err := h.auth.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"user":         u,
	})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r.Context())
	if !ok {
		h.respondError(w, hydroerr.ErrInvalidToken)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context(), queryInt(r, "skip", 0), queryInt(r, "limit", 100))
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	h.Register(w, r)
}

func urlUserID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		return 0, hydroerr.Validationf("invalid user id %q", chi.URLParam(r, "id"))
	}
	return uint(id), nil
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := urlUserID(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	var in struct {
		Email    *string `json:"email"`
		Password *string `json:"password"`
		Role     *string `json:"role"`
		IsActive *bool   `json:"is_active"`
	}
	if err := decodeJSON(r, &in); err != nil {
		h.respondError(w, err)
		return
	}
	upd := store.UserUpdate{Email: in.Email, Role: in.Role, IsActive: in.IsActive}
	if in.Password != nil {
		hashed, err := auth.HashPassword(*in.Password)
		if err != nil {
			h.respondError(w, err)
			return
		}
		upd.HashedPassword = &hashed
	}
	if in.Role != nil && *in.Role != auth.RoleAdmin && *in.Role != auth.RoleUser {
		h.respondError(w, hydroerr.Validationf("unknown role %q", *in.Role))
		return
	}
	u, err := h.store.UpdateUser(r.Context(), id, upd)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := urlUserID(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if err := h.store.DeleteUser(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}
