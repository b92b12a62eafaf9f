package action

import (
	"context"
	"sync"
)

// Future es un Listener cuyo resultado se puede esperar bloqueando.
// Esperar no cambia la asincronía de la acción: sólo convierte la señal en un wait.
type Future[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	err  error
}

// NewFuture crea un Future sin completar.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) OnResponse(v T) {
	f.once.Do(func() {
		f.val = v
		close(f.done)
	})
}

func (f *Future[T]) OnFailure(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done se cierra cuando llegó la señal.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Get bloquea hasta la señal o hasta que ctx termine. Abandonar la espera
// no cancela la acción subyacente.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
