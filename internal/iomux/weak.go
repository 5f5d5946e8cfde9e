// File: internal/iomux/weak.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Thin wrapper around the standard weak package, kept in its own file so
// Channel.Tie reads as a one-line call regardless of which weak-pointer
// primitive Go exposes going forward.

package iomux

import "weak"

type weakPtr[T any] struct {
	p weak.Pointer[T]
}

func weakMake[T any](v *T) weakPtr[T] {
	return weakPtr[T]{p: weak.Make(v)}
}

func (w weakPtr[T]) value() *T {
	return w.p.Value()
}
