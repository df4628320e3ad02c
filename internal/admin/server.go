// Package admin serves the control panel and JSON API of the simulator.
package admin

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"metro-sim/internal/board"
	"metro-sim/internal/broker"
	"metro-sim/internal/config"
	"metro-sim/internal/feed"
)

//go:embed templates/index.html
var content embed.FS

// Controller is the part of the broker the admin API drives.
type Controller interface {
	Connect()
	Disconnect()
	Status() broker.Status
	Session() string
	VehicleID() string
	RouteID() string
	SubscribeTo(broker.Scope)
	UnsubscribeFrom(broker.Scope)
	Scopes() []broker.Scope
}

// Options carries the optional pieces mounted by the server.
type Options struct {
	Lines    []config.Line
	Stations []config.Station
	Stream   http.Handler // mounted at /ws
	Metrics  http.Handler // mounted at /metrics
	Logger   *slog.Logger
	Now      func() time.Time
}

type Server struct {
	ctrl  Controller
	board *board.Board
	opts  Options
	log   *slog.Logger
	tpl   *template.Template
	mux   *http.ServeMux
}

func NewServer(ctrl Controller, bd *board.Board, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		ctrl:  ctrl,
		board: bd,
		opts:  opts,
		log:   opts.Logger.With("component", "admin"),
		tpl:   template.Must(template.New("index.html").ParseFS(content, "templates/index.html")),
		mux:   http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("POST /connect", s.handleConnect)
	s.mux.HandleFunc("POST /disconnect", s.handleDisconnect)
	s.mux.HandleFunc("POST /subscribe", s.handleSubscribe)
	s.mux.HandleFunc("POST /unsubscribe", s.handleUnsubscribe)
	s.mux.HandleFunc("GET /vehicles", s.handleVehicles)
	s.mux.HandleFunc("GET /vehicles/{id}", s.handleVehicle)
	s.mux.HandleFunc("POST /select", s.handleSelect)
	s.mux.HandleFunc("DELETE /select", s.handleClearSelection)
	s.mux.HandleFunc("GET /lines", s.handleLines)
	s.mux.HandleFunc("GET /stations", s.handleStations)
	s.mux.Handle("GET /gtfs-rt/vehicle-positions", feed.Handler(s.board, s.opts.Now))
	if s.opts.Stream != nil {
		s.mux.Handle("/ws", s.opts.Stream)
	}
	if s.opts.Metrics != nil {
		s.mux.Handle("GET /metrics", s.opts.Metrics)
	}
}

// Handler exposes the server's routes.
func (s *Server) Handler() http.Handler { return s.mux }

// Start listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info("admin listening", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type statusResponse struct {
	Status    broker.Status  `json:"status"`
	Session   string         `json:"session,omitempty"`
	VehicleID string         `json:"vehicleId"`
	RouteID   string         `json:"routeId"`
	Scopes    []broker.Scope `json:"scopes"`
	LastError string         `json:"lastError,omitempty"`
	Updates   uint64         `json:"updates"`
}

func (s *Server) status() statusResponse {
	snap := s.board.Snapshot()
	scopes := s.ctrl.Scopes()
	if scopes == nil {
		scopes = []broker.Scope{}
	}
	return statusResponse{
		Status:    s.ctrl.Status(),
		Session:   s.ctrl.Session(),
		VehicleID: s.ctrl.VehicleID(),
		RouteID:   s.ctrl.RouteID(),
		Scopes:    scopes,
		LastError: snap.LastError,
		Updates:   snap.Updates,
	}
}

type lineView struct {
	config.Line
	Color    string           `json:"color"`
	Stations []config.Station `json:"stations"`
	Active   bool             `json:"active"`
}

func (s *Server) lines() []lineView {
	cfg := config.Config{Lines: s.opts.Lines, Stations: s.opts.Stations}
	out := make([]lineView, 0, len(s.opts.Lines))
	for _, l := range s.opts.Lines {
		out = append(out, lineView{
			Line:     l,
			Color:    string(l.Color()),
			Stations: cfg.StationsOn(l.ID),
			Active:   l.ID == s.ctrl.RouteID(),
		})
	}
	return out
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Status   statusResponse
		Snapshot board.Snapshot
		Lines    []lineView
		Stream   bool
	}{
		Status:   s.status(),
		Snapshot: s.board.Snapshot(),
		Lines:    s.lines(),
		Stream:   s.opts.Stream != nil,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tpl.Execute(w, data); err != nil {
		s.log.Error("render index", "err", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Connect()
	s.log.Info("connect requested", "remote", r.RemoteAddr)
	writeJSON(w, http.StatusAccepted, s.status())
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Disconnect()
	s.log.Info("disconnect requested", "remote", r.RemoteAddr)
	writeJSON(w, http.StatusOK, s.status())
}

func scopeFrom(r *http.Request) (broker.Scope, bool) {
	q := r.URL.Query()
	sc := broker.Scope{VehicleID: q.Get("vehicle"), LineID: q.Get("line")}
	return sc, sc.VehicleID != "" || sc.LineID != ""
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	sc, ok := scopeFrom(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "vehicle or line is required")
		return
	}
	s.ctrl.SubscribeTo(sc)
	writeJSON(w, http.StatusOK, s.ctrl.Scopes())
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	sc, ok := scopeFrom(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "vehicle or line is required")
		return
	}
	s.ctrl.UnsubscribeFrom(sc)
	scopes := s.ctrl.Scopes()
	if scopes == nil {
		scopes = []broker.Scope{}
	}
	writeJSON(w, http.StatusOK, scopes)
}

func (s *Server) handleVehicles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.board.Snapshot())
}

func (s *Server) handleVehicle(w http.ResponseWriter, r *http.Request) {
	e, ok := s.board.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "vehicle not found")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if !s.board.Select(id) {
		writeError(w, http.StatusNotFound, "vehicle not found")
		return
	}
	e, _ := s.board.Selected()
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	s.board.ClearSelection()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLines(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.lines())
}

func (s *Server) handleStations(w http.ResponseWriter, r *http.Request) {
	stations := s.opts.Stations
	if stations == nil {
		stations = []config.Station{}
	}
	writeJSON(w, http.StatusOK, stations)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
