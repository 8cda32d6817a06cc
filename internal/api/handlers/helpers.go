// Package handlers implements the HTTP handlers of the matching API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/formbricks/riskmatch/internal/api/response"
	"github.com/formbricks/riskmatch/internal/api/validation"
)

// decodeJSON decodes and validates the request body into dst. On failure it writes the response
// (413, 400 or a validation problem) and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.RespondRequestTooLarge(w)

			return false
		}

		response.RespondBadRequest(w, "Invalid request body")

		return false
	}

	if err := validation.ValidateStruct(dst); err != nil {
		validation.RespondValidationError(w, err)

		return false
	}

	return true
}

// uuidParam reads a UUID path parameter, answering 400 when it is malformed.
func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		response.RespondBadRequest(w, "Invalid UUID format for "+name)

		return uuid.Nil, false
	}

	return id, true
}
