// export serializes solved value and policy tables for consumers outside the solver:
// JSON and YAML tables, a plain text grid, and an HTML convergence chart.
package export

import (
	"encoding/json"
	"fmt"
	"io"

	. "taxi/grid_world"
	"taxi/reinforcement"

	"gopkg.in/yaml.v3"
)

// UnknownAction is written for states the policy has no entry for.
const UnknownAction = "unknown"

// Cell is a location in export form.
type Cell struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// PassengerEntry is the passenger variant; Origin is set only while waiting and
// Destination only while waiting or in transit.
type PassengerEntry struct {
	Status      string `json:"status" yaml:"status"`
	Origin      *Cell  `json:"origin,omitempty" yaml:"origin,omitempty"`
	Destination *Cell  `json:"destination,omitempty" yaml:"destination,omitempty"`
}

// Entry is one state's row of the value and policy tables.
type Entry struct {
	Taxi      Cell           `json:"taxi" yaml:"taxi"`
	Passenger PassengerEntry `json:"passenger" yaml:"passenger"`
	Value     float64        `json:"value" yaml:"value"`
	Action    string         `json:"action" yaml:"action"`
}

// Table is the exported run.
type Table struct {
	RunID      string  `json:"runId" yaml:"runId"`
	GridSize   int     `json:"gridSize" yaml:"gridSize"`
	Iterations int     `json:"iterations" yaml:"iterations"`
	Converged  bool    `json:"converged" yaml:"converged"`
	Entries    []Entry `json:"entries" yaml:"entries"`
}

func toCell(loc Location) Cell {
	return Cell{X: loc.X, Y: loc.Y}
}

func toPassenger(p Passenger) PassengerEntry {
	entry := PassengerEntry{Status: p.Status.String()}
	switch p.Status {
	case Waiting:
		origin, dest := toCell(p.Origin), toCell(p.Destination)
		entry.Origin, entry.Destination = &origin, &dest
	case InTransit:
		dest := toCell(p.Destination)
		entry.Destination = &dest
	}
	return entry
}

// NewTable builds one entry per state, in the order of @states. @policy may be nil, in
// which case every action is unknown.
func NewTable(
	grid Grid,
	states []State,
	result *reinforcement.Result,
	policy *reinforcement.Policy,
) (*Table, error) {
	table := &Table{
		RunID:      result.RunID.String(),
		GridSize:   grid.Size,
		Iterations: result.Iterations,
		Converged:  result.Converged,
		Entries:    make([]Entry, 0, len(states)),
	}
	for _, s := range states {
		value, ok := result.Values.Value(s)
		if !ok {
			return nil, fmt.Errorf("state %v has no value", s)
		}
		action := UnknownAction
		if policy != nil {
			if a, ok := policy.Lookup(s); ok {
				action = a.String()
			}
		}
		table.Entries = append(table.Entries, Entry{
			Taxi:      toCell(s.Taxi),
			Passenger: toPassenger(s.Passenger),
			Value:     value,
			Action:    action,
		})
	}
	return table, nil
}

func WriteJSON(w io.Writer, table *Table) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(table); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func WriteYAML(w io.Writer, table *Table) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(table); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

// WriteGrid writes the empty-taxi slice as two plain text grids: values, then policy arrows.
func WriteGrid(
	w io.Writer,
	grid Grid,
	values *reinforcement.ValueTable,
	policy *reinforcement.Policy,
) {
	console := NewConsole(w, false)
	console.ShowValues(grid, values.Value)
	fmt.Fprintln(w)
	console.ShowPolicy(grid, policy.Lookup)
}
