package sqlexec

import (
	"encoding/json"
	"fmt"
	"strings"

	pkgerrors "gorm-multistatement/pkg/errors"
)

// Mode selects how Execute shapes its result.
type Mode string

const (
	// ModeAll returns every row of the last result set.
	ModeAll Mode = "all"
	// ModeGet returns the first row of the last result set.
	ModeGet Mode = "get"
	// ModeRun returns affected rows, the insert id and the last result set.
	ModeRun Mode = "run"
)

// ParseMode converts s into a Mode. An empty string means ModeAll.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAll, nil
	case ModeAll, ModeGet, ModeRun:
		return m, nil
	default:
		return "", pkgerrors.NewValidationError("mode", fmt.Sprintf("unknown mode %q, expected all, get or run", s))
	}
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	return m == ModeAll || m == ModeGet || m == ModeRun
}

// Row is one result row keyed by column name.
type Row map[string]any

// RunResult is the ModeRun result.
type RunResult struct {
	AffectedRows int64 `json:"affected_rows"`
	InsertID     int64 `json:"insert_id"`
	Row          Row   `json:"row,omitempty"`
	Rows         []Row `json:"rows"`
}

// Result is what Execute returns. Exactly one of Rows, Row and Run is
// meaningful, depending on Mode.
type Result struct {
	Mode       Mode       `json:"mode"`
	Statements int        `json:"statements"`
	Rows       []Row      `json:"rows,omitempty"`
	Row        Row        `json:"row,omitempty"`
	Run        *RunResult `json:"run,omitempty"`
}

// MarshalJSON always writes the field that carries the mode's outcome: an
// all result has a rows array even when empty, a get result has a row that
// is null when nothing matched.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	switch r.Mode {
	case ModeAll:
		rows := r.Rows
		if rows == nil {
			rows = []Row{}
		}
		return json.Marshal(struct {
			plain
			Rows []Row `json:"rows"`
		}{plain(r), rows})
	case ModeGet:
		return json.Marshal(struct {
			plain
			Row Row `json:"row"`
		}{plain(r), r.Row})
	default:
		return json.Marshal(plain(r))
	}
}

// ResultSet is the outcome of one statement sent through Raw.
type ResultSet struct {
	Columns      []string `json:"columns"`
	Rows         []Row    `json:"rows"`
	RowsAffected int64    `json:"rows_affected"`
	CommandTag   string   `json:"command_tag"`
}
