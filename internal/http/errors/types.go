// Package errors define el error estándar del API HTTP y su serialización.
package errors

import (
	"fmt"
	"net/http"
)

// AppError es la forma estándar de un error del API.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // causa, sólo para logs
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New crea un nuevo AppError
func New(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

// Wrap crea un AppError envolviendo un error existente
func Wrap(err error, status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// WithDetail devuelve una COPIA con detail; no muta las variables base.
func (e *AppError) WithDetail(detail string) *AppError {
	newErr := *e
	newErr.Detail = detail
	return &newErr
}

// WithMessage devuelve una COPIA con otro message.
func (e *AppError) WithMessage(msg string) *AppError {
	newErr := *e
	newErr.Message = msg
	return &newErr
}

// WithCause devuelve una COPIA con la causa.
func (e *AppError) WithCause(err error) *AppError {
	newErr := *e
	newErr.Err = err
	return &newErr
}

// =================================================================================
// ERRORES PREDEFINIDOS
// =================================================================================

var (
	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "La solicitud contiene sintaxis inválida o parámetros faltantes.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidJSON = &AppError{
		Code:       "INVALID_JSON",
		Message:    "El cuerpo de la solicitud no es un JSON válido.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidPolicy = &AppError{
		Code:       "INVALID_POLICY",
		Message:    "La policy es inválida.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrBodyTooLarge = &AppError{
		Code:       "BODY_TOO_LARGE",
		Message:    "El cuerpo de la solicitud excede el tamaño máximo permitido.",
		HTTPStatus: http.StatusRequestEntityTooLarge,
	}
)

var (
	ErrPolicyNotFound = &AppError{
		Code:       "POLICY_NOT_FOUND",
		Message:    "Policy not found.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "El recurso solicitado no existe.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrMethodNotAllowed = &AppError{
		Code:       "METHOD_NOT_ALLOWED",
		Message:    "Método HTTP no permitido para este recurso.",
		HTTPStatus: http.StatusMethodNotAllowed,
	}
)

var (
	ErrPolicyExists = &AppError{
		Code:       "POLICY_EXISTS",
		Message:    "Policy already exists.",
		HTTPStatus: http.StatusConflict,
	}

	ErrNotLeader = &AppError{
		Code:       "NOT_LEADER",
		Message:    "Este nodo no es el líder del cluster.",
		HTTPStatus: http.StatusConflict,
	}
)

var (
	ErrRateLimited = &AppError{
		Code:       "RATE_LIMITED",
		Message:    "Demasiadas escrituras; reintentar más tarde.",
		HTTPStatus: http.StatusTooManyRequests,
	}
)

var (
	ErrInternalServerError = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Ocurrió un error inesperado en el servidor.",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrCoordinatorUnavailable = &AppError{
		Code:       "COORDINATOR_UNAVAILABLE",
		Message:    "El coordinador de estado no está disponible.",
		HTTPStatus: http.StatusServiceUnavailable,
	}

	ErrServiceUnavailable = &AppError{
		Code:       "SERVICE_UNAVAILABLE",
		Message:    "El servicio no está disponible temporalmente.",
		HTTPStatus: http.StatusServiceUnavailable,
	}

	ErrAckTimeout = &AppError{
		Code:       "ACK_TIMEOUT",
		Message:    "La mutación no fue confirmada por el quorum a tiempo; su estado es desconocido.",
		HTTPStatus: http.StatusGatewayTimeout,
	}
)
