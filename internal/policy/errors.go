package policy

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indica que la policy no existe en el snapshot consultado.
	ErrNotFound = errors.New("policy not found")

	// ErrAlreadyExists indica que ya hay una policy registrada con ese nombre.
	ErrAlreadyExists = errors.New("policy already exists")

	// ErrInvalidPolicy indica un nombre o definición inválidos.
	ErrInvalidPolicy = errors.New("invalid policy")

	// ErrTimeout indica que no se alcanzó el quorum de acks a tiempo.
	// El estado de la mutación es desconocido: puede aplicarse más tarde.
	ErrTimeout = errors.New("timed out waiting for cluster acknowledgement")

	// ErrCoordinatorUnavailable indica que no hay líder (transitorio, reintentable).
	ErrCoordinatorUnavailable = errors.New("coordinator unavailable")
)

// NotFoundError lleva el nombre buscado para que el mensaje sea diagnosticable.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Policy [%s] was not found", e.Name)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// AlreadyExistsError se devuelve en un put sobre un nombre ya registrado.
type AlreadyExistsError struct {
	Name string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("Policy [%s] already exists", e.Name)
}

func (e *AlreadyExistsError) Is(target error) bool { return target == ErrAlreadyExists }

// NotLeaderError: este nodo no coordina. Leader puede venir vacío si no hay líder conocido.
type NotLeaderError struct {
	Leader string
}

func (e *NotLeaderError) Error() string {
	if e.Leader == "" {
		return "not cluster leader (no leader elected)"
	}
	return fmt.Sprintf("not cluster leader (leader=%s)", e.Leader)
}

func (e *NotLeaderError) Is(target error) bool { return target == ErrCoordinatorUnavailable }

// NotFound construye el error tipado para name.
func NotFound(name string) error { return &NotFoundError{Name: name} }

// AlreadyExists construye el error tipado para name.
func AlreadyExists(name string) error { return &AlreadyExistsError{Name: name} }

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable reporta si el caller puede reintentar la operación completa.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrCoordinatorUnavailable)
}
