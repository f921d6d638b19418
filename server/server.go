// server serves the live visualizer: a single page of svg views kept current over
// websockets, plus read-only endpoints for the finished solution.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	. "taxi/grid_world"
	"taxi/export"
	"taxi/reinforcement"
	"taxi/server/cell_views"
	"taxi/server/fastview"
	"taxi/server/root_view"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Per-client buffer of pending update batches; a client that falls further behind drops batches.
const clientBuffer = 64

// ErrNotSolved is returned by the solution endpoints until the solver has finished.
var ErrNotSolved = errors.New("solution not available yet")

// Solution is the finished run the read-only endpoints serve.
type Solution struct {
	Grid      Grid
	Table     *export.Table
	Values    *reinforcement.ValueTable
	Policy    *reinforcement.Policy
	History   []float64
	Threshold float64
}

// Server serves one page to any number of clients. Every client receives the same ele-updates,
// fanned out from the root view by the hub.
type Server struct {
	addr     string
	grid     Grid
	rootView *root_view.RootView
	hub      *hub
	solution atomic.Pointer[Solution]
	logger   *slog.Logger
}

// NewServer initializes all of the views and returns a server. The views run until @ctx is done.
func NewServer(
	ctx context.Context,
	addr string,
	grid Grid,
	progress <-chan reinforcement.Progress,
	toFrame func(reinforcement.Progress) cell_views.Frame,
	steps <-chan reinforcement.Step,
) (*Server, error) {
	rootView, err := root_view.NewRootView(ctx, grid, progress, toFrame, steps)
	if err != nil {
		return nil, fmt.Errorf("views: %w", err)
	}
	return &Server{
		addr:     addr,
		grid:     grid,
		rootView: rootView,
		hub:      newHub(ctx.Done(), rootView.Updates()),
		logger:   slog.Default().With("component", "server"),
	}, nil
}

// SetSolution publishes the finished run to the read-only endpoints.
func (server *Server) SetSolution(solution *Solution) {
	server.solution.Store(solution)
}

// Router returns the server's routes.
func (server *Server) Router() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/", server.serveIndex).Methods(http.MethodGet)
	router.HandleFunc("/ws", server.serveWebsocket)
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/table", server.serveTable).Methods(http.MethodGet)
	api.HandleFunc("/grid", server.serveGrid).Methods(http.MethodGet)
	api.HandleFunc("/chart", server.serveChart).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler())
	return router
}

// Serve listens until @ctx is done, then shuts down gracefully.
func (server *Server) Serve(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              server.addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		server.logger.Info("serving", "addr", server.addr)
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// serveWebsocket publishes view updates to one client until it disconnects.
func (server *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	updates, unsubscribe := server.hub.subscribe()
	defer unsubscribe()

	cli, err := fastview.NewClient(updates, w, r)
	if err != nil {
		server.logger.Warn("websocket", "error", err)
		return
	}
	if err := cli.Sync(); err != nil {
		server.logger.Debug("client closed", "remote", r.RemoteAddr, "error", err)
	}
}

// Serve the index.html main page.
func (server *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")

	page := cell_views.NewPage(server.initialFrame())
	buf := &bytes.Buffer{}
	if err := renderTemplate(buf, server.rootView, page); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_, _ = buf.WriteTo(w)
}

// initialFrame shows the solved values when available, which the live frames stop updating
// once the solver is done.
func (server *Server) initialFrame() cell_views.Frame {
	solution := server.solution.Load()
	if solution == nil {
		return cell_views.BlankFrame(server.grid)
	}
	return cell_views.Frame{
		Iteration: solution.Table.Iterations,
		MaxDelta:  last(solution.History),
		Status:    statusOf(solution.Table.Converged),
		Grid:      solution.Grid,
		Value:     solution.Values.Value,
		Action:    solution.Policy.Lookup,
	}
}

func (server *Server) serveTable(w http.ResponseWriter, r *http.Request) {
	solution, ok := server.loadSolution(w)
	if !ok {
		return
	}

	var err error
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		err = export.WriteJSON(w, solution.Table)
	case "yaml":
		w.Header().Set("Content-Type", "application/yaml")
		err = export.WriteYAML(w, solution.Table)
	default:
		http.Error(w, fmt.Sprintf("unknown format %q", format), http.StatusBadRequest)
		return
	}
	if err != nil {
		server.logger.Warn("table", "error", err)
	}
}

func (server *Server) serveGrid(w http.ResponseWriter, r *http.Request) {
	solution, ok := server.loadSolution(w)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	export.WriteGrid(w, solution.Grid, solution.Values, solution.Policy)
}

func (server *Server) serveChart(w http.ResponseWriter, r *http.Request) {
	solution, ok := server.loadSolution(w)
	if !ok {
		return
	}
	buf := &bytes.Buffer{}
	if err := export.WriteConvergenceChart(buf, solution.History, solution.Threshold); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	_, _ = buf.WriteTo(w)
}

func (server *Server) loadSolution(w http.ResponseWriter) (*Solution, bool) {
	solution := server.solution.Load()
	if solution == nil {
		http.Error(w, ErrNotSolved.Error(), http.StatusServiceUnavailable)
		return nil, false
	}
	return solution, true
}

func renderTemplate(
	w io.Writer,
	vc fastview.ViewComponent,
	data interface{},
) (err error) {
	t := template.New("index.html")
	var tname string
	if tname, err = vc.Parse(t); err != nil {
		return
	}
	if _, err = t.Parse(`{{ template "` + tname + `" . }}`); err != nil {
		return
	}

	err = t.Execute(w, data)
	return
}

func statusOf(converged bool) string {
	if converged {
		return reinforcement.Converged.String()
	}
	return reinforcement.ExhaustedIterations.String()
}

func last(history []float64) float64 {
	if len(history) == 0 {
		return 0
	}
	return history[len(history)-1]
}

// hub fans the root view's updates out to every subscribed client. A slow client never
// blocks the others; batches it cannot buffer are dropped for it alone.
type hub struct {
	mu      sync.Mutex
	clients map[chan []fastview.EleUpdate]struct{}
}

func newHub(done <-chan struct{}, source <-chan []fastview.EleUpdate) *hub {
	h := &hub{clients: map[chan []fastview.EleUpdate]struct{}{}}
	go h.run(done, source)
	return h
}

func (h *hub) run(done <-chan struct{}, source <-chan []fastview.EleUpdate) {
	defer h.closeAll()
	for {
		select {
		case <-done:
			return
		case updates, ok := <-source:
			if !ok {
				return
			}
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client <- updates:
				default:
				}
			}
			h.mu.Unlock()
		}
	}
}

// subscribe returns a client's update channel and the func releasing it.
func (h *hub) subscribe() (<-chan []fastview.EleUpdate, func()) {
	client := make(chan []fastview.EleUpdate, clientBuffer)
	h.mu.Lock()
	if h.clients == nil {
		// Already shut down.
		close(client)
	} else {
		h.clients[client] = struct{}{}
	}
	h.mu.Unlock()

	return client, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.clients[client]; ok {
			delete(h.clients, client)
			close(client)
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client)
	}
	h.clients = nil
}

// subscribers returns the number of connected clients.
func (h *hub) subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
