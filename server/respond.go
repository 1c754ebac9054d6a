package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	apperrors "github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/rs/zerolog/log"
)

// writeJSON encodes v as the response body. When the request carried a token
// due for rotation and the body is an object, the fresh token is added to it
// as "accessToken".
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		logError(r.Method, r.URL.Path, err.Error())
		writeError(w, http.StatusInternalServerError, "Error interno del servidor")
		return
	}

	if rotated := rotatedTokenFromContext(r.Context()); rotated != "" {
		var fields map[string]json.RawMessage
		if json.Unmarshal(body, &fields) == nil && fields != nil {
			fields["accessToken"], _ = json.Marshal(rotated)
			if withToken, err := json.Marshal(fields); err == nil {
				body = withToken
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Debug().Err(err).Msg("[Server.writeJSON] client went away")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeMessage(w, status, message)
}

// writeMessage sends a bare {"message": ...} body
func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}

// writeValidationError sends each failing field as one entry of a "message" array
func writeValidationError(w http.ResponseWriter, err error) {
	var validationErr *apperrors.ValidationError
	if !apperrors.As(err, &validationErr) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	names := make([]string, 0, len(validationErr.Fields))
	for name := range validationErr.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	messages := make([]string, 0, len(names))
	for _, name := range names {
		messages = append(messages, name+": "+validationErr.Fields[name])
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]any{"message": messages})
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func pathID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	return id, err == nil && id > 0
}

func queryInt(r *http.Request, name string, defaultValue int) int {
	value, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || value < 0 {
		return defaultValue
	}
	return value
}
