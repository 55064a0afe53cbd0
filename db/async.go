package db

import "context"

// Future is the result of an operation running in the background.
type Future[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// Go runs fn on its own goroutine and returns a Future for its result. fn
// runs to completion whether or not anyone awaits it.
func Go[V any](fn func() (V, error)) *Future[V] {
	f := &Future[V]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.val, f.err = fn()
	}()
	return f
}

// Await blocks until the result is available or ctx is done. Giving up on a
// future does not stop the underlying operation.
func (f *Future[V]) Await(ctx context.Context) (V, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// AsyncCollection is the non-blocking view of a Collection. Every verb starts
// the matching blocking verb in the background.
type AsyncCollection[T any, P recordPtr[T]] struct {
	c *Collection[T, P]
}

func (a *AsyncCollection[T, P]) Name() string { return a.c.name }

func (a *AsyncCollection[T, P]) All(ctx context.Context) *Future[[]T] {
	return Go(func() ([]T, error) { return a.c.All(ctx) })
}

func (a *AsyncCollection[T, P]) Filter(ctx context.Context, pred Predicate[T]) *Future[[]T] {
	return Go(func() ([]T, error) { return a.c.Filter(ctx, pred) })
}

func (a *AsyncCollection[T, P]) Get(ctx context.Context, id string) *Future[T] {
	return Go(func() (T, error) { return a.c.Get(ctx, id) })
}

func (a *AsyncCollection[T, P]) FindOne(ctx context.Context, pred Predicate[T]) *Future[T] {
	return Go(func() (T, error) { return a.c.FindOne(ctx, pred) })
}

func (a *AsyncCollection[T, P]) Count(ctx context.Context, pred Predicate[T]) *Future[int] {
	return Go(func() (int, error) { return a.c.Count(ctx, pred) })
}

func (a *AsyncCollection[T, P]) Create(ctx context.Context, rec T) *Future[T] {
	return Go(func() (T, error) { return a.c.Create(ctx, rec) })
}

func (a *AsyncCollection[T, P]) CreateFunc(ctx context.Context, build func(existing []T) (T, error)) *Future[T] {
	return Go(func() (T, error) { return a.c.CreateFunc(ctx, build) })
}

func (a *AsyncCollection[T, P]) UpdateFunc(ctx context.Context, id string, fn func(current T) (Patch, error)) *Future[T] {
	return Go(func() (T, error) { return a.c.UpdateFunc(ctx, id, fn) })
}

func (a *AsyncCollection[T, P]) Update(ctx context.Context, id string, patch Patch) *Future[T] {
	return Go(func() (T, error) { return a.c.Update(ctx, id, patch) })
}

func (a *AsyncCollection[T, P]) Remove(ctx context.Context, id string) *Future[bool] {
	return Go(func() (bool, error) { return a.c.Remove(ctx, id) })
}
