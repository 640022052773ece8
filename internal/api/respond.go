package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chainpkg/chainpkg/internal/app"
	"github.com/chainpkg/chainpkg/internal/errs"
	"github.com/chainpkg/chainpkg/internal/publish"
)

const verboseKey = "verbose"

// response is the envelope of every API answer.
type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// requestOptions is the "options" member accepted by every command.
type requestOptions struct {
	Network string `json:"network" form:"network"`
	Verbose bool   `json:"verbose" form:"verbose"`
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, response{Success: true, Data: data})
}

// fail renders err through the error boundary. The error is also attached
// to the context so the request log carries it.
func fail(c *gin.Context, h *errs.Handler, err error) {
	report := h.Handle(err)
	_ = c.Error(err)
	c.JSON(report.Status, response{
		Error: report.UserMessage(c.GetBool(verboseKey)),
		Kind:  string(report.Kind),
	})
}

// failWith reports a terminal outcome that is not an error value.
func failWith(c *gin.Context, status int, kind errs.Kind, msg string, data any) {
	c.JSON(status, response{Error: msg, Kind: string(kind), Data: data})
}

// bind decodes the JSON body into req. Decoding and `binding` failures are
// validation errors.
func (s *Server) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		fail(c, s.errs, errs.Wrap(errs.KindValidation, err, "invalid request"))
		return false
	}
	return true
}

// bindQuery is bind for GET query parameters.
func (s *Server) bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		fail(c, s.errs, errs.Wrap(errs.KindValidation, err, "invalid query"))
		return false
	}
	return true
}

// app opens the per-request App for opts.
func (s *Server) app(c *gin.Context, opts requestOptions) (*app.App, bool) {
	c.Set(verboseKey, opts.Verbose)
	a, err := s.open(opts.Network)
	if err != nil {
		fail(c, s.errs, err)
		return nil, false
	}
	return a, true
}

// ctx bounds a request by the configured timeout.
func (s *Server) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	if s.settings.RequestTimeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), s.settings.RequestTimeout)
}

// outcome renders a paid action's terminal state.
func outcome(c *gin.Context, state publish.State, msg string, data any) {
	switch state {
	case publish.Done:
		ok(c, http.StatusOK, data)
	case publish.ConfirmationPending:
		ok(c, http.StatusAccepted, data)
	case publish.Cancelled:
		failWith(c, http.StatusBadRequest, errs.KindValidation, msg+`: set "confirm": true to approve the fee`, data)
	default:
		failWith(c, http.StatusInternalServerError, errs.KindBlockchain, msg, data)
	}
}
