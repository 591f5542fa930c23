package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"dayview/internal/config"
	"dayview/internal/host"
	"dayview/internal/ics"
	"dayview/internal/interaction"
	"dayview/internal/layout"
	appLog "dayview/internal/log"
	"dayview/internal/model"
)

// DayReader is the part of the event store the API reads.
type DayReader interface {
	EventsOn(ctx context.Context, day time.Time) ([]model.CalendarEvent, error)
	All(ctx context.Context) ([]model.CalendarEvent, error)
}

// Sessions is the live keyboard-session surface. It is called from HTTP
// goroutines and must do its own synchronization; host.Host satisfies it.
type Sessions interface {
	View(ctx context.Context) (interaction.SessionView, error)
	Begin(ctx context.Context, id string, day time.Time, mode interaction.Mode) error
	Key(ctx context.Context, k interaction.Key) (interaction.Outcome, error)
	Cancel(ctx context.Context) (interaction.Outcome, error)
}

// Refresher re-imports the configured feeds.
type Refresher interface {
	RunOnce(ctx context.Context) error
}

// Server provides the HTTP API over the event store and the live
// keyboard session.
type Server struct {
	store     DayReader
	loc       *time.Location
	auth      *config.BasicAuthConfig
	sessions  Sessions
	refresher Refresher
	now       func() time.Time
	mux       *http.ServeMux
}

type Option func(*Server)

func WithSessions(ss Sessions) Option { return func(s *Server) { s.sessions = ss } }

func WithRefresher(r Refresher) Option { return func(s *Server) { s.refresher = r } }

func WithBasicAuth(a *config.BasicAuthConfig) Option { return func(s *Server) { s.auth = a } }

// WithClock overrides the clock deciding which day "today" is.
func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

func NewServer(st DayReader, loc *time.Location, opts ...Option) *Server {
	if loc == nil {
		loc = time.Local
	}
	s := &Server{
		store: st,
		loc:   loc,
		now:   time.Now,
		mux:   http.NewServeMux(),
	}
	for _, o := range opts {
		o(s)
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled")
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled treats an empty username or password as disabled.
func (s *Server) basicAuthEnabled() bool {
	return s.auth != nil && s.auth.Username != "" && s.auth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.auth.Username
	password := s.auth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="dayview", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/day", s.handleDay)
	s.mux.HandleFunc("GET /api/session", s.handleSession)
	s.mux.HandleFunc("POST /api/session", s.handleBegin)
	s.mux.HandleFunc("POST /api/session/key", s.handleKey)
	s.mux.HandleFunc("DELETE /api/session", s.handleCancel)
	s.mux.HandleFunc("GET /api/calendar.ics", s.handleExport)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// dayResponse is the JSON response shape for /api/day.
type dayResponse struct {
	Date     string     `json:"date"`
	TimeZone string     `json:"timezone"`
	AllDay   []eventDTO `json:"all_day"`
	Timed    []eventDTO `json:"timed"`
}

type eventDTO struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	AllDay       bool      `json:"all_day"`
	Color        string    `json:"color,omitempty"`
	Source       string    `json:"source,omitempty"`
	SeriesID     string    `json:"series_id,omitempty"`
	Column       int       `json:"column"`
	TotalColumns int       `json:"total_columns"`
}

func toDTO(ev model.CalendarEvent) eventDTO {
	return eventDTO{
		ID:           ev.ID,
		Title:        ev.Title,
		Start:        ev.Start,
		End:          ev.End,
		AllDay:       ev.AllDay,
		Color:        ev.Color,
		Source:       ev.Source,
		SeriesID:     ev.SeriesID,
		TotalColumns: 1,
	}
}

// handleDay returns one day's events with the column layout of the timed
// ones.
//
// GET /api/day?date=2025-05-20 (default: today in the configured zone)
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	day := model.DateOf(s.now().In(s.loc))
	if q := r.URL.Query().Get("date"); q != "" {
		d, err := time.ParseInLocation("2006-01-02", q, s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = d
	}

	events, err := s.store.EventsOn(r.Context(), day)
	if err != nil {
		appLog.Error("api day: store read failed", err, "date", day.Format("2006-01-02"))
		writeError(w, http.StatusInternalServerError, "failed to read events")
		return
	}

	resp := dayResponse{
		Date:     day.Format("2006-01-02"),
		TimeZone: s.loc.String(),
		AllDay:   []eventDTO{},
		Timed:    []eventDTO{},
	}
	for _, ev := range events {
		if ev.AllDay {
			resp.AllDay = append(resp.AllDay, toDTO(ev))
		}
	}
	for _, a := range layout.Columns(layout.TimedOn(events, day)) {
		dto := toDTO(a.Event)
		dto.Column = a.Column
		dto.TotalColumns = a.TotalColumns
		resp.Timed = append(resp.Timed, dto)
	}

	appLog.Debug("api day request", "date", resp.Date, "all_day", len(resp.AllDay), "timed", len(resp.Timed))
	writeJSON(w, http.StatusOK, resp)
}

type rangeDTO struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	AllDay bool      `json:"all_day"`
}

type sessionResponse struct {
	Active   bool      `json:"active"`
	State    string    `json:"state"`
	Mode     string    `json:"mode,omitempty"`
	Edge     string    `json:"edge,omitempty"`
	EventID  string    `json:"event_id,omitempty"`
	Original *rangeDTO `json:"original,omitempty"`
	Proposed *rangeDTO `json:"proposed,omitempty"`
	Valid    bool      `json:"valid"`
	Reason   string    `json:"reason,omitempty"`
	NavZone  int       `json:"nav_zone"`
	NavArmed bool      `json:"nav_armed"`
	Outcome  string    `json:"outcome,omitempty"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeJSON(w, http.StatusOK, sessionResponse{State: interaction.Idle.String()})
		return
	}
	v, err := s.sessions.View(r.Context())
	if err != nil {
		appLog.Error("api session: snapshot failed", err)
		writeError(w, http.StatusServiceUnavailable, "session unavailable")
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(v))
}

func toSessionResponse(v interaction.SessionView) sessionResponse {
	resp := sessionResponse{Active: v.Active, State: v.State.String()}
	if !v.Active {
		return resp
	}
	resp.Mode = v.Mode.String()
	resp.EventID = v.Event.ID
	if v.Mode == interaction.Resize {
		resp.Edge = v.Edge.String()
	}
	resp.Original = &rangeDTO{Start: v.Original.Start, End: v.Original.End, AllDay: v.Original.AllDay}
	resp.Proposed = &rangeDTO{Start: v.Proposed.Start, End: v.Proposed.End, AllDay: v.Proposed.AllDay}
	resp.Valid = v.Valid
	if !v.Valid {
		resp.Reason = v.Reason.String()
	}
	resp.NavZone = v.NavZone
	resp.NavArmed = v.NavArmed
	return resp
}

type beginRequest struct {
	EventID string `json:"event_id"`
	Date    string `json:"date"`
	Mode    string `json:"mode"` // "move" (default) or "resize"
}

// handleBegin starts a keyboard session.
//
// POST /api/session {"event_id": "a", "date": "2025-05-20", "mode": "resize"}
func (s *Server) handleBegin(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusNotFound, "sessions disabled")
		return
	}
	var req beginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.EventID == "" {
		writeError(w, http.StatusBadRequest, "event_id is required")
		return
	}
	day, err := time.ParseInLocation("2006-01-02", req.Date, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	mode := interaction.Move
	switch req.Mode {
	case "", "move":
	case "resize":
		mode = interaction.Resize
	default:
		writeError(w, http.StatusBadRequest, "mode must be move or resize")
		return
	}

	if err := s.sessions.Begin(r.Context(), req.EventID, day, mode); err != nil {
		status := http.StatusConflict
		if errors.Is(err, host.ErrNotOnDay) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	s.writeSession(w, r, "")
}

type keyRequest struct {
	Key string `json:"key"`
}

// handleKey applies one key to the keyboard session.
//
// POST /api/session/key {"key": "down"}
func (s *Server) handleKey(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusNotFound, "sessions disabled")
		return
	}
	var req keyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	k, ok := interaction.ParseKey(req.Key)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown key")
		return
	}
	out, err := s.sessions.Key(r.Context(), k)
	if err != nil {
		appLog.Error("api session: key failed", err, "key", req.Key)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeSession(w, r, out.String())
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusNotFound, "sessions disabled")
		return
	}
	out, err := s.sessions.Cancel(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.writeSession(w, r, out.String())
}

// writeSession answers with the session after a change; outcome is set
// when the change ended it.
func (s *Server) writeSession(w http.ResponseWriter, r *http.Request, outcome string) {
	v, err := s.sessions.View(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "session unavailable")
		return
	}
	resp := toSessionResponse(v)
	if outcome != interaction.None.String() {
		resp.Outcome = outcome
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.All(r.Context())
	if err != nil {
		appLog.Error("api export: store read failed", err)
		writeError(w, http.StatusInternalServerError, "failed to read events")
		return
	}
	var buf bytes.Buffer
	if err := ics.Encode(&buf, events, s.now()); err != nil {
		if errors.Is(err, ics.ErrNoEvents) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		appLog.Error("api export: encode failed", err)
		writeError(w, http.StatusInternalServerError, "failed to encode calendar")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		writeError(w, http.StatusNotFound, "no sources configured")
		return
	}
	if err := s.refresher.RunOnce(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
