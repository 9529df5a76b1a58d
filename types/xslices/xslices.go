// Package xslices provides generic slice helpers used throughout exprgraph.
package xslices

import "golang.org/x/exp/constraints"

// Iota returns a slice of incremental int values, starting with start and of the given length.
func Iota[T interface{ constraints.Integer | constraints.Float }](start T, length int) (slice []T) {
	slice = make([]T, length)
	for ii := range slice {
		slice[ii] = start + T(ii)
	}
	return
}

// Map executes the given function sequentially for every element on in, and returns a mapped slice.
func Map[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}

// At returns the element at the given index, where a negative index is taken from the end.
func At[T any](slice []T, index int) T {
	if index < 0 {
		index = len(slice) + index
	}
	return slice[index]
}

// Last returns the last element of the slice.
func Last[T any](slice []T) T {
	return slice[len(slice)-1]
}

// FillSlice sets every element of the slice to value.
func FillSlice[T any](slice []T, value T) {
	for ii := range slice {
		slice[ii] = value
	}
}

// Reverse the order of the elements of the slice, in place.
func Reverse[T any](slice []T) {
	for ii := 0; ii < len(slice)/2; ii++ {
		jj := len(slice) - ii - 1
		slice[ii], slice[jj] = slice[jj], slice[ii]
	}
}
