package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/dropDatabas3/policyreg/internal/policy"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// FromError convierte cualquier error en un AppError. Los errores del registro
// se mapean a su código; el resto es un 500 que conserva la causa.
// Sin líder conocido no hay a quién redirigir: 503, no 409.
func FromError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	var nl *policy.NotLeaderError
	switch {
	case policy.IsNotFound(err):
		return ErrPolicyNotFound.WithMessage(err.Error()).WithCause(err)
	case stderrors.Is(err, policy.ErrAlreadyExists):
		return ErrPolicyExists.WithMessage(err.Error()).WithCause(err)
	case stderrors.Is(err, policy.ErrInvalidPolicy):
		return ErrInvalidPolicy.WithDetail(err.Error()).WithCause(err)
	case stderrors.Is(err, policy.ErrTimeout):
		return ErrAckTimeout.WithCause(err)
	case stderrors.As(err, &nl) && nl.Leader != "":
		return ErrNotLeader.WithDetail(nl.Error()).WithCause(err)
	case stderrors.Is(err, policy.ErrCoordinatorUnavailable):
		return ErrCoordinatorUnavailable.WithDetail(err.Error()).WithCause(err)
	}
	return ErrInternalServerError.WithCause(err)
}

// WriteError escribe err como JSON {code, message, detail}.
// Para NOT_LEADER agrega X-Leader si el líder es conocido.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	var nl *policy.NotLeaderError
	if stderrors.As(err, &nl) && nl.Leader != "" {
		w.Header().Set("X-Leader", nl.Leader)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Detail:  appErr.Detail,
	})
}
