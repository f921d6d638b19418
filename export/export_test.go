package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	. "taxi/grid_world"
	"taxi/reinforcement"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func solveSmall(t *testing.T) (Grid, []State, *reinforcement.Result, *reinforcement.Policy) {
	t.Helper()
	cfg := reinforcement.DefaultSolverConfig()
	cfg.GridSize = 2
	cfg.ProgressEvery = 0
	grid := cfg.Grid()
	states := GenerateStates(grid)
	model, err := cfg.NewModel(nil)
	require.NoError(t, err)
	result, err := reinforcement.Solve(states, Actions(), model, cfg, nil)
	require.NoError(t, err)
	policy, err := reinforcement.ExtractPolicy(states, Actions(), model, result.Values, cfg.Discount)
	require.NoError(t, err)
	return grid, states, result, policy
}

func TestNewTable(t *testing.T) {
	grid, states, result, policy := solveSmall(t)

	table, err := NewTable(grid, states, result, policy)
	require.NoError(t, err)
	require.Len(t, table.Entries, len(states))
	assert.Equal(t, 2, table.GridSize)
	assert.Equal(t, result.Converged, table.Converged)
	assert.Equal(t, result.RunID.String(), table.RunID)

	first := table.Entries[0]
	assert.Equal(t, Cell{X: 0, Y: 0}, first.Taxi)
	assert.Equal(t, "empty", first.Passenger.Status)
	assert.Nil(t, first.Passenger.Origin)
	assert.Nil(t, first.Passenger.Destination)

	waiting := table.Entries[1]
	assert.Equal(t, "waiting", waiting.Passenger.Status)
	require.NotNil(t, waiting.Passenger.Origin)
	require.NotNil(t, waiting.Passenger.Destination)

	for _, e := range table.Entries {
		assert.NotEqual(t, UnknownAction, e.Action)
	}
}

func TestNewTableWithoutPolicy(t *testing.T) {
	grid, states, result, _ := solveSmall(t)

	table, err := NewTable(grid, states, result, nil)
	require.NoError(t, err)
	for _, e := range table.Entries {
		assert.Equal(t, UnknownAction, e.Action)
	}
}

func TestNewTableUnknownState(t *testing.T) {
	grid, states, result, policy := solveSmall(t)

	stranger := State{Taxi: Location{X: 5, Y: 5}, Passenger: NoPassenger()}
	_, err := NewTable(grid, append(states, stranger), result, policy)
	assert.Error(t, err)
}

func TestWriteJSONAndYAML(t *testing.T) {
	grid, states, result, policy := solveSmall(t)
	table, err := NewTable(grid, states, result, policy)
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	require.NoError(t, WriteJSON(buf, table))
	decoded := &Table{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), decoded))
	assert.Equal(t, table, decoded)

	buf.Reset()
	require.NoError(t, WriteYAML(buf, table))
	assert.Contains(t, buf.String(), "runId: "+table.RunID)
	fromYAML := &Table{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), fromYAML))
	assert.Len(t, fromYAML.Entries, len(table.Entries))
}

func TestWriteGrid(t *testing.T) {
	grid, _, result, policy := solveSmall(t)

	buf := &bytes.Buffer{}
	WriteGrid(buf, grid, result.Values, policy)
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	// two value rows, a blank separator, two policy rows
	require.Len(t, lines, 5)
	assert.Empty(t, lines[2])
	assert.Len(t, lines[3], 2)
	assert.NotContains(t, buf.String(), "?")
}

func TestWriteConvergenceChart(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteConvergenceChart(buf, []float64{10, 5, 1, 0.01, 0.0001}, 1e-3))
	out := buf.String()
	assert.Contains(t, out, "<html")
	assert.Contains(t, out, "max delta")
}
