package utils

// SafeDeref dereferences p, returning the zero value of T if p is nil
func SafeDeref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
