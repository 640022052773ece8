package errs

import (
	"net/http"

	"go.uber.org/zap"
)

// Exit codes returned by Handler.Handle.
const (
	ExitOK          = 0
	ExitOperational = 1
	ExitInternal    = 2
)

// Report is the rendered outcome of a failure at an entry point.
type Report struct {
	Kind     Kind
	Message  string
	ExitCode int
	Status   int
	Fields   map[string]any
}

// Handler is the error boundary injected into each entry point.
type Handler struct {
	log *zap.Logger
}

// NewHandler returns a Handler that logs through log (a nop logger when nil).
func NewHandler(log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{log: log}
}

// Handle logs err with its structured context and returns the report the
// caller should render. A nil err yields a zero-exit report.
func (h *Handler) Handle(err error) Report {
	if err == nil {
		return Report{ExitCode: ExitOK, Status: http.StatusOK}
	}

	kind := KindOf(err)
	fields := FieldsOf(err)
	zfields := make([]zap.Field, 0, len(fields)+2)
	zfields = append(zfields, zap.String("kind", string(kind)), zap.Error(err))
	for k, v := range fields {
		zfields = append(zfields, zap.Any(k, v))
	}

	r := Report{
		Kind:    kind,
		Message: err.Error(),
		Status:  HTTPStatus(err),
		Fields:  fields,
	}

	if kind == KindInternal {
		h.log.Error("unexpected failure", zfields...)
		r.ExitCode = ExitInternal
		return r
	}

	h.log.Warn("operation failed", zfields...)
	r.ExitCode = ExitOperational
	return r
}

// UserMessage renders the report for a terminal, including context fields
// when verbose is set.
func (r Report) UserMessage(verbose bool) string {
	msg := r.Message
	if r.Kind == KindInternal {
		msg = "internal error: " + msg
	}
	if verbose && len(r.Fields) > 0 {
		msg += " (" + describeFields(r.Fields) + ")"
	}
	return msg
}

// HTTPStatus maps an error to the status code used by the HTTP API.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if IsKind(err, KindValidation) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
