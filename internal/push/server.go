package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"teamboard/internal/board"
	"teamboard/internal/engine"
	"teamboard/internal/logging"
	"teamboard/internal/model"
)

type Options struct {
	Engine *engine.Engine
	Logger *slog.Logger
	// AllowedOrigins defaults to "*".
	AllowedOrigins []string
	// Verifier, when set, requires a valid bearer token on every request.
	Verifier Verifier
}

// Server exposes one engine session over HTTP and pushes every cache change to websocket
// clients.
type Server struct {
	engine   *engine.Engine
	hub      *Hub
	log      *slog.Logger
	verifier Verifier
	origins  []string
	upgrader websocket.Upgrader
	handler  http.Handler
}

func New(opts Options) (*Server, error) {
	if opts.Engine == nil {
		return nil, errors.New("push: engine is required")
	}
	s := &Server{
		engine:   opts.Engine,
		log:      logging.Component(opts.Logger, "push"),
		verifier: opts.Verifier,
		origins:  opts.AllowedOrigins,
	}
	if len(s.origins) == 0 {
		s.origins = []string{"*"}
	}
	s.hub = NewHub(s.log, s.handleClientMessage)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.handler = s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.authMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	api.HandleFunc("/board", s.handleBoard).Methods(http.MethodGet)
	api.HandleFunc("/navigate", s.handleNavigate).Methods(http.MethodPost)
	api.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)
	api.HandleFunc("/{kind}", s.handleList).Methods(http.MethodGet)
	api.HandleFunc("/{kind}/{id}", s.handlePatch).Methods(http.MethodPatch)
	api.HandleFunc("/{kind}/{id}/move", s.handleMove).Methods(http.MethodPost)

	cors := handlers.CORS(
		handlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions}),
		handlers.AllowedOrigins(s.origins),
	)
	logged := handlers.CustomLoggingHandler(io.Discard, r, func(_ io.Writer, p handlers.LogFormatterParams) {
		s.log.Debug("http request", "method", p.Request.Method, "path", p.URL.Path, "status", p.StatusCode, "size", p.Size, "duration", time.Since(p.TimeStamp))
	})
	return handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.log}))(cors(logged))
}

type recoveryLogger struct{ log *slog.Logger }

func (l recoveryLogger) Println(v ...interface{}) {
	l.log.Error("handler panic", "panic", fmt.Sprint(v...))
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.origins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// Run starts the hub and forwards every collection change until ctx is done.
func (s *Server) Run(ctx context.Context) {
	var stops []func()
	for _, v := range s.engine.Views() {
		stops = append(stops, v.Watch(func() { s.publishSnapshot(v) }))
	}
	defer func() {
		for _, stop := range stops {
			stop()
		}
	}()
	s.hub.Run(ctx)
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.Run(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info("listening", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) publishSnapshot(v engine.View) {
	m, err := newMessage("snapshot", v.Snapshot())
	if err != nil {
		s.log.Error("encode snapshot", "collection", v.Name(), "err", err)
		return
	}
	s.hub.Publish(m)
}

type stateResponse struct {
	Status   any          `json:"status"`
	Scope    engine.Scope `json:"scope"`
	Location string       `json:"location"`
	User     string       `json:"user,omitempty"`
}

func (s *Server) state(user string) stateResponse {
	return stateResponse{
		Status:   s.engine.Status(),
		Scope:    s.engine.Scope(),
		Location: s.engine.Location(),
		User:     user,
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state(UserFrom(r.Context())))
}

type navigateRequest struct {
	Location string `json:"location"`
}

func (s *Server) navigate(location string) stateResponse {
	s.engine.Navigate(location)
	st := s.state("")
	if m, err := newMessage("state", st); err == nil {
		s.hub.Publish(m)
	}
	return st
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	writeJSON(w, http.StatusOK, s.navigate(req.Location))
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, err := board.ParseMode(q.Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	kind := q.Get("kind")
	if kind == "" {
		kind = "tasks"
	}
	b, _, err := s.engine.Board(kind, mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	v, ok := s.engine.ViewFor(mux.Vars(r)["kind"])
	if !ok {
		writeError(w, http.StatusNotFound, "unknown kind")
		return
	}
	writeJSON(w, http.StatusOK, v.Snapshot())
}

func (s *Server) mutate(kind, id string, patch model.Patch) (int, error) {
	v, ok := s.engine.ViewFor(kind)
	if !ok {
		return http.StatusNotFound, fmt.Errorf("unknown kind: %q", kind)
	}
	if !v.Has(id) {
		return http.StatusNotFound, fmt.Errorf("%s not found: %s", v.Name(), id)
	}
	if len(patch) == 0 {
		return http.StatusBadRequest, errors.New("empty patch")
	}
	for _, k := range patch.Keys() {
		if k == "id" || k == "createdAt" || k == "updatedAt" {
			return http.StatusBadRequest, fmt.Errorf("field %q cannot be patched", k)
		}
	}
	v.Mutate(id, patch)
	return http.StatusAccepted, nil
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var patch model.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	code, err := s.mutate(vars["kind"], vars["id"], patch)
	if err != nil {
		writeError(w, code, err.Error())
		return
	}
	writeJSON(w, code, map[string]any{"accepted": true, "id": vars["id"]})
}

type moveRequest struct {
	Mode string `json:"mode"`
	From string `json:"from"`
	To   string `json:"to"`
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	mode, err := board.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.engine.Move(vars["kind"], mode, vars["id"], req.From, req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if res.Outcome == board.DropMissing {
		writeJSON(w, http.StatusNotFound, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", "err", err)
		return
	}
	initial := make([]Message, 0, 1+len(s.engine.Views()))
	if m, err := newMessage("state", s.state(UserFrom(r.Context()))); err == nil {
		initial = append(initial, m)
	}
	for _, v := range s.engine.Views() {
		if m, err := newMessage("snapshot", v.Snapshot()); err == nil {
			initial = append(initial, m)
		}
	}
	s.hub.attach(conn, UserFrom(r.Context()), initial)
}

type clientMutation struct {
	Kind  string      `json:"kind"`
	ID    string      `json:"id"`
	Patch model.Patch `json:"patch"`
}

// handleClientMessage serves the websocket side of the API: "navigate" and "mutate".
func (s *Server) handleClientMessage(c *Client, m Message) {
	switch m.Type {
	case "navigate":
		var req navigateRequest
		if err := json.Unmarshal(m.Data, &req); err != nil {
			s.replyError(c, "invalid navigate message")
			return
		}
		s.navigate(req.Location)
	case "mutate":
		var req clientMutation
		if err := json.Unmarshal(m.Data, &req); err != nil {
			s.replyError(c, "invalid mutate message")
			return
		}
		if _, err := s.mutate(req.Kind, req.ID, req.Patch); err != nil {
			s.replyError(c, err.Error())
		}
	default:
		s.replyError(c, fmt.Sprintf("unknown message type %q", m.Type))
	}
}

func (s *Server) replyError(c *Client, msg string) {
	if m, err := newMessage("error", map[string]string{"error": msg}); err == nil {
		c.Send(m)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
