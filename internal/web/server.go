// Package web provides the HTTP status page and control API for the
// home-agent daemon.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thermolearn/home-agent/internal/agent"
	"github.com/thermolearn/home-agent/internal/geo"
	"github.com/thermolearn/home-agent/internal/pairing"
	"github.com/thermolearn/home-agent/internal/presence"
	"github.com/thermolearn/home-agent/internal/status"
)

// Controller is the slice of the agent the HTTP layer needs.
type Controller interface {
	Login(ctx context.Context, email, password string) error
	Logout(ctx context.Context) error
	StartPairing(ctx context.Context, thermostatID, ssid, password string) error
	CancelPairing(ctx context.Context) error
	PairingStatus() pairing.Status
	StageHomeLocation(ctx context.Context) (geo.Point, error)
	ConfirmHomeLocation(ctx context.Context) error
	Home(ctx context.Context) (geo.Point, bool, error)
	StagedHome() (geo.Point, bool)
	RecentEvents(ctx context.Context, limit int) ([]presence.Event, error)
}

// Server serves the status page and control API.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	ctl        Controller
}

// New creates a Server that reads state from the tracker and drives the
// controller.
func New(addr string, tracker *status.Tracker, ctl Controller) *Server {
	s := &Server{tracker: tracker, ctl: ctl}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/api/login", s.handleLogin)
	mux.HandleFunc("/api/logout", s.handleLogout)
	mux.HandleFunc("/api/pair/start", s.handlePairStart)
	mux.HandleFunc("/api/pair/status", s.handlePairStatus)
	mux.HandleFunc("/api/pair/cancel", s.handlePairCancel)
	mux.HandleFunc("/api/home/stage", s.handleHomeStage)
	mux.HandleFunc("/api/home/confirm", s.handleHomeConfirm)
	mux.HandleFunc("/api/home", s.handleHome)
	mux.HandleFunc("/api/events", s.handleEvents)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password required")
		return
	}
	if err := s.ctl.Login(r.Context(), req.Email, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	writeOK(w)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if err := s.ctl.Logout(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w)
}

func (s *Server) handlePairStart(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		ThermostatID string `json:"thermostat_id"`
		SSID         string `json:"ssid"`
		Password     string `json:"password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.ctl.StartPairing(r.Context(), req.ThermostatID, req.SSID, req.Password); err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, agent.ErrNotLoggedIn) {
			code = http.StatusUnauthorized
		}
		writeError(w, code, err.Error())
		return
	}
	s.writePairStatus(w)
}

func (s *Server) handlePairStatus(w http.ResponseWriter, r *http.Request) {
	s.writePairStatus(w)
}

func (s *Server) handlePairCancel(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if err := s.ctl.CancelPairing(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writePairStatus(w)
}

// pairStatusJSON is the wire form of a pairing status snapshot.
type pairStatusJSON struct {
	State        string `json:"state"`
	Reason       string `json:"reason,omitempty"`
	ThermostatID string `json:"thermostat_id,omitempty"`
	PollAttempts int    `json:"poll_attempts"`
}

func (s *Server) writePairStatus(w http.ResponseWriter) {
	st := s.ctl.PairingStatus()
	writeJSON(w, pairStatusJSON{
		State:        string(st.State),
		Reason:       string(st.Reason),
		ThermostatID: st.ThermostatID,
		PollAttempts: st.PollAttempts,
	})
}

// homeJSON is the wire form of the home location view.
type homeJSON struct {
	Committed *pointJSON `json:"committed,omitempty"`
	Staged    *pointJSON `json:"staged,omitempty"`
}

type pointJSON struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (s *Server) handleHomeStage(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	p, err := s.ctl.StageHomeLocation(r.Context())
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, agent.ErrNotLoggedIn) {
			code = http.StatusUnauthorized
		}
		writeError(w, code, err.Error())
		return
	}
	writeJSON(w, homeJSON{Staged: &pointJSON{Latitude: p.Latitude, Longitude: p.Longitude}})
}

func (s *Server) handleHomeConfirm(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if err := s.ctl.ConfirmHomeLocation(r.Context()); err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, agent.ErrNotLoggedIn) {
			code = http.StatusUnauthorized
		}
		writeError(w, code, err.Error())
		return
	}
	s.handleHome(w, r)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	committed, ok, err := s.ctl.Home(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var out homeJSON
	if ok {
		out.Committed = &pointJSON{Latitude: committed.Latitude, Longitude: committed.Longitude}
	}
	if staged, stagedOK := s.ctl.StagedHome(); stagedOK {
		out.Staged = &pointJSON{Latitude: staged.Latitude, Longitude: staged.Longitude}
	}
	writeJSON(w, out)
}

// eventJSON is the wire form of one presence transition.
type eventJSON struct {
	Timestamp      string  `json:"timestamp"`
	Event          string  `json:"event"`
	DistanceMeters float64 `json:"distance_m"`
	AtHome         bool    `json:"at_home"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 25
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	events, err := s.ctl.RecentEvents(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]eventJSON, 0, len(events))
	for _, ev := range events {
		out = append(out, eventJSON{
			Timestamp:      ev.Timestamp.UTC().Format(time.RFC3339),
			Event:          string(ev.Type),
			DistanceMeters: ev.DistanceMeters,
			AtHome:         ev.AtHome,
		})
	}
	writeJSON(w, out)
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return false
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, map[string]bool{"ok": true})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
