package handler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"gorm-multistatement/internal/adapter/gin/response"
	"gorm-multistatement/internal/probe"
	"gorm-multistatement/internal/sqlexec"
	pkgerrors "gorm-multistatement/pkg/errors"
	"gorm-multistatement/pkg/logger"
)

// Executor runs submitted SQL.
type Executor interface {
	Execute(ctx context.Context, sqlText string, params []any, mode sqlexec.Mode) (*sqlexec.Result, error)
	Raw(ctx context.Context, sqlText string) ([]sqlexec.ResultSet, error)
}

// Prober runs the multi-statement scenarios.
type Prober interface {
	Run(ctx context.Context) (*probe.Report, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type healthCheck struct {
	name   string
	pinger Pinger
}

// ExecHandler handles HTTP requests for raw SQL execution
type ExecHandler struct {
	exec     Executor
	prober   Prober
	checks   []healthCheck
	validate *validator.Validate
	log      *zap.Logger
	service  string
}

// NewExecHandler creates a new ExecHandler instance. pinger is the
// database health check.
func NewExecHandler(exec Executor, prober Prober, pinger Pinger, service string, log *zap.Logger) *ExecHandler {
	return &ExecHandler{
		exec:     exec,
		prober:   prober,
		checks:   []healthCheck{{name: "database", pinger: pinger}},
		validate: validator.New(),
		log:      log,
		service:  service,
	}
}

// ExecuteRequest represents the HTTP request body for POST /v1/execute
type ExecuteRequest struct {
	SQL    string `json:"sql" validate:"required"`
	Params []any  `json:"params"`
	Mode   string `json:"mode" validate:"omitempty,oneof=all get run"`
}

// RawRequest represents the HTTP request body for POST /v1/raw
type RawRequest struct {
	SQL string `json:"sql" validate:"required"`
}

// RawResponse represents the HTTP response for a raw submission
type RawResponse struct {
	ResultSets []sqlexec.ResultSet `json:"result_sets"`
}

// formatValidationError converts validator.ValidationErrors into a human-readable error message.
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	var messages []string
	for _, e := range validationErrors {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", field))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of: %s", field, e.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s is invalid", field))
		}
	}
	return pkgerrors.NewValidationError("", strings.Join(messages, ", "))
}

// Execute handles POST /v1/execute
func (h *ExecHandler) Execute(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.WithContext(ctx, h.log)

	var req ExecuteRequest
	if !h.bind(c, log, &req) {
		return
	}

	mode, err := sqlexec.ParseMode(req.Mode)
	if err != nil {
		response.Error(c, log, err)
		return
	}

	log.Info("Gin Execute request", zap.String("mode", string(mode)), zap.Int("params", len(req.Params)))

	res, err := h.exec.Execute(ctx, req.SQL, normalizeParams(req.Params), mode)
	if err != nil {
		response.Error(c, log, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// Raw handles POST /v1/raw
func (h *ExecHandler) Raw(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.WithContext(ctx, h.log)

	var req RawRequest
	if !h.bind(c, log, &req) {
		return
	}

	log.Info("Gin Raw request")

	sets, err := h.exec.Raw(ctx, req.SQL)
	if err != nil {
		response.Error(c, log, err)
		return
	}

	c.JSON(http.StatusOK, RawResponse{ResultSets: sets})
}

// Probe handles POST /v1/probe. A report with failed scenarios is still
// returned, with status 500.
func (h *ExecHandler) Probe(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.WithContext(ctx, h.log)

	log.Info("Gin Probe request")

	report, err := h.prober.Run(ctx)
	if err != nil {
		response.Error(c, log, err)
		return
	}

	status := http.StatusOK
	if !report.OK() {
		status = http.StatusInternalServerError
	}
	c.JSON(status, report)
}

// AddHealthCheck makes GET /health also depend on p.
func (h *ExecHandler) AddHealthCheck(name string, p Pinger) {
	h.checks = append(h.checks, healthCheck{name: name, pinger: p})
}

// Health handles GET /health
func (h *ExecHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()

	code, state := http.StatusOK, "healthy"
	checks := make(map[string]string, len(h.checks))
	for _, hc := range h.checks {
		if err := hc.pinger.Ping(ctx); err != nil {
			h.log.Warn("health check failed", zap.String("check", hc.name), zap.Error(err))
			checks[hc.name] = "unavailable"
			code, state = http.StatusServiceUnavailable, "unhealthy"
			continue
		}
		checks[hc.name] = "ok"
	}

	c.JSON(code, gin.H{
		"status":  state,
		"service": h.service,
		"checks":  checks,
	})
}

func (h *ExecHandler) bind(c *gin.Context, log *zap.Logger, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		log.Warn("Invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, log, formatValidationError(err))
		return false
	}
	return true
}

// normalizeParams turns whole JSON numbers back into integers so they bind
// to integer columns.
func normalizeParams(params []any) []any {
	out := make([]any, len(params))
	for i, p := range params {
		if f, ok := p.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			out[i] = int64(f)
			continue
		}
		out[i] = p
	}
	return out
}
