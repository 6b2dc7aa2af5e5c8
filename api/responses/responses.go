// Package responses writes the JSON envelopes every handler answers with.
package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/freshmarket/grocery-backend/pkg/errors"
	"github.com/freshmarket/grocery-backend/pkg/logger"
	"github.com/freshmarket/grocery-backend/pkg/types"
)

// requestIDHeader is set on the response by the request id middleware before
// any handler runs.
const requestIDHeader = "X-Request-Id"

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteError maps err onto the public error envelope. Untyped errors become
// internal errors whose message never reaches the client; the full chain is
// logged instead (error level for 5xx, warn otherwise).
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	public := types.APIError{
		Code:      string(typed.Code()),
		Message:   meta.PublicMessage,
		RequestID: w.Header().Get(requestIDHeader),
	}
	if m := typed.Message(); meta.MessageAllowed && m != "" {
		public.Message = m
	}
	if d := typed.Details(); meta.DetailsAllowed && d != nil {
		public.Details = d
	}

	fields := pkgerrors.Dump(err).LogFields()
	fields["http_status"] = meta.HTTPStatus
	logCtx := logg.WithFields(ctx, fields)
	if meta.HTTPStatus >= http.StatusInternalServerError {
		logg.Error(logCtx, "request.error", err)
	} else {
		logg.Warn(logCtx, "request.rejected")
	}

	writeJSON(w, meta.HTTPStatus, types.ErrorEnvelope{Error: public})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":{"code":"INTERNAL_ERROR","message":"internal server error"}}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
