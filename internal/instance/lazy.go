package instance

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// lazy holds a value computed at most once. Concurrent callers of get block until
// the first computation finishes and all see its outcome, error included.
type lazy[T any] struct {
	once sync.Once
	done atomic.Bool
	val  T
	err  error
}

func (l *lazy[T]) get(compute func() (T, error)) (T, error) {
	l.once.Do(func() {
		defer l.done.Store(true)
		defer func() {
			if r := recover(); r != nil {
				var zero T
				l.val, l.err = zero, fmt.Errorf("panic during resolution: %v", r)
			}
		}()
		l.val, l.err = compute()
	})
	return l.val, l.err
}

// peek reports the outcome without triggering the computation.
func (l *lazy[T]) peek() (val T, ok bool, err error) {
	if !l.done.Load() {
		return val, false, nil
	}
	return l.val, true, l.err
}
