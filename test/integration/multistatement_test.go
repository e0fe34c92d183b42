package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"

	"gorm-multistatement/internal/adapter/gin/handler"
	"gorm-multistatement/internal/adapter/gin/router"
	"gorm-multistatement/internal/config"
	"gorm-multistatement/internal/harness"
	"gorm-multistatement/internal/probe"
	"gorm-multistatement/internal/sqlexec"
	pkgerrors "gorm-multistatement/pkg/errors"
)

const multiStatement = `
    INSERT INTO "users" ("name", "email") VALUES ('%s', '%s');
    SELECT * from "users";
  `

// MultiStatementTestSuite runs the multi-statement scenarios against a live
// PostgreSQL configured through DB_* variables (defaults localhost:5432,
// admin/admin, database testing).
type MultiStatementTestSuite struct {
	suite.Suite
	harness *harness.Harness
	exec    *sqlexec.Executor
	server  *httptest.Server
}

func TestMultiStatementSuite(t *testing.T) {
	if os.Getenv("INTEGRATION_DB") != "postgres" {
		t.Skip("set INTEGRATION_DB=postgres to run against a live database")
	}
	suite.Run(t, new(MultiStatementTestSuite))
}

// SetupSuite connects to PostgreSQL and starts the HTTP API in process
func (s *MultiStatementTestSuite) SetupSuite() {
	cfg, err := config.LoadConfig(".")
	s.Require().NoError(err)
	cfg.DB.Driver = config.DriverPostgres
	s.Require().NoError(cfg.Validate())

	log := zaptest.NewLogger(s.T())
	s.harness, err = harness.Open(context.Background(), cfg, log)
	s.Require().NoError(err)
	s.exec = s.harness.Executor()

	h := handler.NewExecHandler(s.exec, probe.NewRunner(s.harness, log), s.harness, cfg.Logger.ServiceName, log)
	s.server = httptest.NewServer(router.SetupRouter(h, nil, log))
}

// SetupTest gives every test a fresh, empty users table
func (s *MultiStatementTestSuite) SetupTest() {
	s.Require().NoError(s.harness.Prepare(context.Background()))
}

// TearDownSuite releases the connection
func (s *MultiStatementTestSuite) TearDownSuite() {
	if s.server != nil {
		s.server.Close()
	}
	if s.harness != nil {
		s.Require().NoError(s.harness.Close())
	}
}

func (s *MultiStatementTestSuite) sql(name, email string) string {
	return fmt.Sprintf(multiStatement, name, email)
}

func (s *MultiStatementTestSuite) TestAll() {
	rows, err := s.exec.All(context.Background(), s.sql("All", "all"))
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal("All", rows[0]["name"])
	s.Equal("all", rows[0]["email"])
}

func (s *MultiStatementTestSuite) TestGet() {
	row, err := s.exec.Get(context.Background(), s.sql("Get", "get"))
	s.Require().NoError(err)
	s.Require().NotNil(row)
	s.Equal("Get", row["name"])
}

func (s *MultiStatementTestSuite) TestRun() {
	run, err := s.exec.Run(context.Background(), s.sql("Run", "run"))
	s.Require().NoError(err)
	s.Equal(int64(1), run.AffectedRows)
	s.Zero(run.InsertID)
	s.Len(run.Rows, 1)
}

func (s *MultiStatementTestSuite) TestRunReturning() {
	run, err := s.exec.Run(context.Background(),
		`INSERT INTO "users" ("name", "email") VALUES (?, ?) RETURNING "id"`, "Ret", "ret")
	s.Require().NoError(err)
	s.Equal(int64(1), run.AffectedRows)
	s.Positive(run.InsertID)
}

func (s *MultiStatementTestSuite) TestPlaceholderInLiteral() {
	rows, err := s.exec.All(context.Background(), `
		INSERT INTO "users" ("name", "email") VALUES ('who?', ?);
		SELECT "name", E'it\'s ?' AS "note" FROM "users" WHERE "email" = ?;
	`, "who@example.com", "who@example.com")
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal("who?", rows[0]["name"])
	s.Equal("it's ?", rows[0]["note"])
}

func (s *MultiStatementTestSuite) TestRaw() {
	sets, err := s.exec.Raw(context.Background(), s.sql("Raw", "raw"))
	s.Require().NoError(err)
	s.Require().Len(sets, 2)

	s.Equal("INSERT 0 1", sets[0].CommandTag)
	s.Equal("SELECT 1", sets[1].CommandTag)
	s.Require().Len(sets[1].Rows, 1)
	s.Equal("Raw", sets[1].Rows[0]["name"])
}

func (s *MultiStatementTestSuite) TestRawFailureRollsBack() {
	_, err := s.exec.Raw(context.Background(), `
		INSERT INTO "users" ("name", "email") VALUES ('A', 'dup');
		INSERT INTO "users" ("name", "email") VALUES ('B', 'dup');
	`)
	s.Require().Error(err)

	var derr *pkgerrors.DriverError
	s.Require().ErrorAs(err, &derr)
	s.True(derr.UniqueViolation())

	var pgErr *pgconn.PgError
	s.Require().ErrorAs(err, &pgErr)
	s.Equal("23505", pgErr.Code)

	users, err := s.harness.Users(context.Background())
	s.Require().NoError(err)
	s.Empty(users)
}

func (s *MultiStatementTestSuite) TestProbeOverHTTP() {
	resp, err := http.Post(s.server.URL+"/v1/probe", "application/json", bytes.NewReader(nil))
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)

	var report probe.Report
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&report))
	s.Equal(4, report.Passed)
	s.Zero(report.Failed)
}
