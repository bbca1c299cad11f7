package conditional

// Ternary : a if cond else b
func Ternary[T any](cond bool, a T, b T) T {
	if cond {
		return a
	}
	return b
}
