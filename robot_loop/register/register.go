// Package register holds the latest-value cells that are the only legal way for the control
// tasks to exchange data. A register is not a queue: a reader sees whatever was written last,
// possibly the same value several times, and a writer never learns whether anyone read it.
//
// Each register has exactly one writer. Ownership is structural: the writer handle is
// obtained once with Claim and handed to the owning task; everybody else only gets Read.
package register

import (
	"errors"
	"fmt"

	"go.uber.org/atomic"
)

var ErrWriterClaimed = errors.New("register writer already claimed")

// Reader is the read side handed to consuming tasks.
type Reader[T any] interface {
	Read() T
}

type Register[T any] struct {
	name    string
	value   atomic.Pointer[T]
	claimed atomic.Bool
}

// New returns a register reading as the zero value of T until first written.
func New[T any](name string) *Register[T] {
	return &Register[T]{name: name}
}

func (r *Register[T]) Name() string { return r.name }

// Read returns the most recently written value, or the zero value if never written.
func (r *Register[T]) Read() T {
	if p := r.value.Load(); p != nil {
		return *p
	}
	var zero T
	return zero
}

// Claim hands out the single writer for this register.
func (r *Register[T]) Claim() (*Writer[T], error) {
	if !r.claimed.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%s: %w", r.name, ErrWriterClaimed)
	}
	return &Writer[T]{reg: r}, nil
}

// MustClaim is Claim for wiring code where a second claim is a programming error.
func (r *Register[T]) MustClaim() *Writer[T] {
	w, err := r.Claim()
	if err != nil {
		panic(err)
	}
	return w
}

type Writer[T any] struct {
	reg *Register[T]
}

// Write publishes v as a whole. Readers see either the previous value or v, never a mix.
func (w *Writer[T]) Write(v T) {
	w.reg.value.Store(&v)
}
