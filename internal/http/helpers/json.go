package helpers

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/dropDatabas3/policyreg/internal/http/errors"
)

// maxBody límite de body para escrituras.
const maxBody = 1 << 20

// ReadRawJSON lee el body completo (hasta 1MB) y valida que sea JSON.
// Devuelve false si ya escribió el error HTTP.
func ReadRawJSON(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	defer r.Body.Close()

	b, err := io.ReadAll(r.Body)
	if err != nil {
		var mbe *http.MaxBytesError
		if stderrors.As(err, &mbe) {
			errors.WriteError(w, errors.ErrBodyTooLarge)
			return nil, false
		}
		errors.WriteError(w, errors.ErrBadRequest.WithCause(err))
		return nil, false
	}
	if !json.Valid(b) {
		errors.WriteError(w, errors.ErrInvalidJSON)
		return nil, false
	}
	return json.RawMessage(b), true
}

// ReadJSON decodifica el body en v. Devuelve false si ya escribió el error HTTP.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	raw, ok := ReadRawJSON(w, r)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		errors.WriteError(w, errors.ErrInvalidJSON.WithDetail(err.Error()))
		return false
	}
	return true
}

// WriteJSON escribe una respuesta JSON estándar.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
