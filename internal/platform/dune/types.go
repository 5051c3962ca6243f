package dune

import "fmt"

// State is the execution state reported by the status endpoint.
type State string

const (
	StatePending   State = "PENDING"
	StateExecuting State = "EXECUTING"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
)

// Running reports whether the execution is still in flight and worth
// polling again.
func (s State) Running() bool {
	return s == StatePending || s == StateExecuting
}

// ExecutionError is returned when an execution reaches a terminal state
// other than COMPLETED.
type ExecutionError struct {
	ExecutionID string
	State       State
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("dune: execution %s failed with state %s", e.ExecutionID, e.State)
}

// ResultSet holds the rows of a query result together with the column order
// reported by the API. Rows map column name to decoded JSON value.
type ResultSet struct {
	Columns []string
	Rows    []map[string]any
}

// Empty reports whether the result set has no rows.
func (r *ResultSet) Empty() bool {
	return r == nil || len(r.Rows) == 0
}

// resultsResponse is the envelope of both results endpoints.
type resultsResponse struct {
	ExecutionID string `json:"execution_id"`
	State       State  `json:"state"`
	Result      struct {
		Rows     []map[string]any `json:"rows"`
		Metadata struct {
			ColumnNames []string `json:"column_names"`
		} `json:"metadata"`
	} `json:"result"`
}

// executeResponse is the envelope of the execute endpoint.
type executeResponse struct {
	ExecutionID string `json:"execution_id"`
	State       State  `json:"state"`
}

// statusResponse is the envelope of the status endpoint.
type statusResponse struct {
	ExecutionID string `json:"execution_id"`
	State       State  `json:"state"`
}
