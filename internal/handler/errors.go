package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/faucetdb/rolekeeper/internal/errutil"
	"github.com/faucetdb/rolekeeper/internal/mvcc"
	"github.com/faucetdb/rolekeeper/internal/service"
)

// writeServiceError maps a coded Edit Service error onto the HTTP error
// envelope. Internal errors are reported without detail; the service has
// already logged them.
func writeServiceError(w http.ResponseWriter, err error) {
	switch errutil.Code(err) {
	case service.CodeValidation:
		ctx := map[string]interface{}{}
		if field, ok := errutil.ContextValue(err, service.KeyField); ok {
			ctx["field"] = field
		}
		writeError(w, http.StatusBadRequest, err.Error(), ctx)

	case service.CodeNotFound:
		writeError(w, http.StatusNotFound, "Admin not found")

	case service.CodeForbidden:
		ctx := map[string]interface{}{}
		if reason, ok := errutil.ContextValue(err, service.KeyReason); ok {
			ctx["reason"] = reason
		}
		writeError(w, http.StatusForbidden, err.Error(), ctx)

	case service.CodeVersionConflict:
		ctx := map[string]interface{}{"conflict": "version"}
		var conflict *mvcc.ConflictError
		if errors.As(err, &conflict) {
			ctx["current"] = adminToMap(conflict.Current)
			ctx["client_version"] = conflict.ClientVersion
		}
		writeError(w, http.StatusConflict,
			"The record was modified by someone else. Reload it and reapply your changes.", ctx)

	case service.CodeEmailConflict:
		writeError(w, http.StatusConflict, err.Error(), map[string]interface{}{"conflict": "email"})

	case service.CodeTooManyRequests:
		retry := 1
		if v, ok := errutil.ContextValue(err, service.KeyRetryAfterSeconds); ok {
			if n, ok := v.(int); ok && n > 0 {
				retry = n
			}
		}
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		writeError(w, http.StatusTooManyRequests, "Duplicate request. Please wait before retrying.",
			map[string]interface{}{"retry_after_seconds": retry})

	default:
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
