package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "taxi/grid_world"
	"taxi/export"
	"taxi/reinforcement"
	"taxi/server/cell_views"
	"taxi/server/fastview"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testFrame stands in for the model-backed frame converter: it reports the iteration only.
func testFrame(progress reinforcement.Progress) cell_views.Frame {
	frame := cell_views.BlankFrame(NewGrid(2))
	frame.Iteration = progress.Iteration
	return frame
}

func newTestServer(t *testing.T) (*Server, chan reinforcement.Progress, chan reinforcement.Step) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	progress := make(chan reinforcement.Progress)
	steps := make(chan reinforcement.Step)
	server, err := NewServer(ctx, ":0", NewGrid(2), progress, testFrame, steps)
	require.NoError(t, err)
	return server, progress, steps
}

func solution(t *testing.T) *Solution {
	t.Helper()
	cfg := reinforcement.DefaultSolverConfig()
	cfg.GridSize = 2
	grid := cfg.Grid()
	states := GenerateStates(grid)
	model, err := cfg.NewModel(nil)
	require.NoError(t, err)
	result, err := reinforcement.Solve(states, Actions(), model, cfg, nil)
	require.NoError(t, err)
	policy, err := reinforcement.ExtractPolicy(states, Actions(), model, result.Values, cfg.Discount)
	require.NoError(t, err)
	table, err := export.NewTable(grid, states, result, policy)
	require.NoError(t, err)

	return &Solution{
		Grid:      grid,
		Table:     table,
		Values:    result.Values,
		Policy:    policy,
		History:   result.History,
		Threshold: cfg.Threshold,
	}
}

func get(t *testing.T, handler http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestIndex(t *testing.T) {
	server, _, _ := newTestServer(t)
	router := server.Router()

	rec := get(t, router, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<!DOCTYPE html>")
	assert.Contains(t, body, "cell-0-0-rect")
	assert.Contains(t, body, "cell-1-1-arrow")
	assert.Contains(t, body, "taxiview-taxi")
	assert.Contains(t, body, "valuefunction-0-0")
	assert.Contains(t, body, "location.host")

	server.SetSolution(solution(t))
	rec = get(t, router, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), ">?<")
}

func TestSolutionEndpointsBeforeSolve(t *testing.T) {
	server, _, _ := newTestServer(t)
	router := server.Router()

	for _, target := range []string{"/api/table", "/api/grid", "/api/chart"} {
		rec := get(t, router, target)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, target)
	}
}

func TestSolutionEndpoints(t *testing.T) {
	server, _, _ := newTestServer(t)
	router := server.Router()
	sol := solution(t)
	server.SetSolution(sol)

	rec := get(t, router, "/api/table")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"runId": "`+sol.Table.RunID+`"`)

	rec = get(t, router, "/api/table?format=yaml")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "runId: "+sol.Table.RunID)

	rec = get(t, router, "/api/table?format=xml")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, router, "/api/grid")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, strings.Split(strings.TrimRight(rec.Body.String(), "\n"), "\n"), 5)

	rec = get(t, router, "/api/chart")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<html")
}

func TestMetrics(t *testing.T) {
	server, _, _ := newTestServer(t)
	rec := get(t, server.Router(), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHubFanOut(t *testing.T) {
	done := make(chan struct{})
	source := make(chan []fastview.EleUpdate)
	h := newHub(done, source)

	first, unsubFirst := h.subscribe()
	second, unsubSecond := h.subscribe()
	defer unsubSecond()
	require.Equal(t, 2, h.subscribers())

	batch := []fastview.EleUpdate{fastview.SetText("a", "1")}
	source <- batch
	assert.Equal(t, batch, <-first)
	assert.Equal(t, batch, <-second)

	unsubFirst()
	unsubFirst()
	assert.Equal(t, 1, h.subscribers())
	_, ok := <-first
	assert.False(t, ok)

	close(done)
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-second:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)

	late, unsubLate := h.subscribe()
	defer unsubLate()
	_, ok = <-late
	assert.False(t, ok)
}

func TestHubDropsForSlowClient(t *testing.T) {
	done := make(chan struct{})
	defer close(done)
	source := make(chan []fastview.EleUpdate)
	h := newHub(done, source)

	slow, unsub := h.subscribe()
	defer unsub()
	for i := 0; i < clientBuffer+10; i++ {
		source <- []fastview.EleUpdate{fastview.SetText("a", "x")}
	}
	assert.Len(t, slow, clientBuffer)
}

func TestWebsocketPublishesFrames(t *testing.T) {
	server, progress, steps := newTestServer(t)
	httpServer := httptest.NewServer(server.Router())
	defer httpServer.Close()

	url := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return server.hub.subscribers() == 1
	}, time.Second, 10*time.Millisecond)

	// readUntil reads batches until one updates element @id, and returns that update.
	readUntil := func(id string) fastview.EleUpdate {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		for {
			var batch []fastview.EleUpdate
			require.NoError(t, conn.ReadJSON(&batch))
			for _, update := range batch {
				if update.EleId == id {
					return update
				}
			}
		}
	}

	progress <- reinforcement.Progress{Iteration: 7}
	status := readUntil("valuesgrid-status")
	assert.Contains(t, status.Ops[0].Value, "sweep 7")

	steps <- reinforcement.Step{
		State:     State{Taxi: Location{X: 0, Y: 0}, Passenger: NoPassenger()},
		Action:    East,
		Reward:    -1,
		Successor: State{Taxi: Location{X: 1, Y: 0}, Passenger: NoPassenger()},
	}
	log := readUntil("taxiview-log")
	assert.Contains(t, log.Ops[0].Value, "step 1")
}
