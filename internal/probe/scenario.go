package probe

import (
	"fmt"

	"gorm-multistatement/internal/sqlexec"
)

// Pathway is the entry point a scenario submits its SQL through.
type Pathway string

const (
	// PathwayExecute goes through Executor.Execute with a mode.
	PathwayExecute Pathway = "execute"
	// PathwayRaw goes through the Executor.Raw escape hatch.
	PathwayRaw Pathway = "raw"
)

// Scenario is one multi-statement submission and what it must return.
type Scenario struct {
	Name    string
	Pathway Pathway
	Mode    sqlexec.Mode // only for PathwayExecute
	SQL     string
	// WantResultSets is the exact number of result sets a raw submission
	// returns. Zero means any.
	WantResultSets int
}

// Scenarios returns the four multi-statement submissions: one per execute
// mode and one through the raw escape hatch. Each inserts a distinct user
// and then selects the whole table.
func Scenarios() []Scenario {
	return []Scenario{
		{Name: "all", Pathway: PathwayExecute, Mode: sqlexec.ModeAll, SQL: insertThenSelect("All", "all")},
		{Name: "get", Pathway: PathwayExecute, Mode: sqlexec.ModeGet, SQL: insertThenSelect("Get", "get")},
		{Name: "run", Pathway: PathwayExecute, Mode: sqlexec.ModeRun, SQL: insertThenSelect("Run", "run")},
		{Name: "raw", Pathway: PathwayRaw, SQL: insertThenSelect("Raw", "raw"), WantResultSets: 2},
	}
}

func insertThenSelect(name, email string) string {
	return fmt.Sprintf(`
    INSERT INTO "users" ("name", "email") VALUES ('%s', '%s');
    SELECT * from "users";
  `, name, email)
}
