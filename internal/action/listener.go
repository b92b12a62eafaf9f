// Package action implementa el protocolo de completion asincrónico de las acciones:
// cada llamada recibe un Listener y lo completa exactamente una vez, con respuesta o con error.
package action

import (
	"sync/atomic"

	"github.com/dropDatabas3/policyreg/internal/observability/logger"
)

// Listener recibe el resultado de una acción asincrónica.
type Listener[T any] interface {
	OnResponse(T)
	OnFailure(error)
}

// ListenerFunc adapta dos funciones a Listener.
type ListenerFunc[T any] struct {
	Response func(T)
	Failure  func(error)
}

func (f ListenerFunc[T]) OnResponse(v T) {
	if f.Response != nil {
		f.Response(v)
	}
}

func (f ListenerFunc[T]) OnFailure(err error) {
	if f.Failure != nil {
		f.Failure(err)
	}
}

// once garantiza una única señal aunque el productor la emita dos veces.
type once[T any] struct {
	done  atomic.Bool
	inner Listener[T]
}

// Once envuelve l para que sólo la primera señal llegue a destino.
// Las siguientes se descartan y se loguean: indican un bug en el productor.
func Once[T any](l Listener[T]) Listener[T] {
	if o, ok := l.(*once[T]); ok {
		return o
	}
	return &once[T]{inner: l}
}

func (o *once[T]) OnResponse(v T) {
	if !o.done.CompareAndSwap(false, true) {
		logger.Named("action").Warn("duplicate completion dropped", logger.Op("OnResponse"))
		return
	}
	o.inner.OnResponse(v)
}

func (o *once[T]) OnFailure(err error) {
	if !o.done.CompareAndSwap(false, true) {
		logger.Named("action").Warn("duplicate completion dropped", logger.Op("OnFailure"), logger.Err(err))
		return
	}
	o.inner.OnFailure(err)
}

// Complete entrega v o err a l según corresponda.
func Complete[T any](l Listener[T], v T, err error) {
	if err != nil {
		l.OnFailure(err)
		return
	}
	l.OnResponse(v)
}
