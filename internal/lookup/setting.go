package lookup

// Setting holds a configuration value together with whether it was set. The
// zero Setting is unset, which is distinct from a set empty value.
type Setting[T any] struct {
	value T
	set   bool
}

// Set returns a Setting holding v.
func Set[T any](v T) Setting[T] {
	return Setting[T]{value: v, set: true}
}

// Get returns the value and whether it was set.
func (s Setting[T]) Get() (T, bool) {
	return s.value, s.set
}

// IsSet reports whether the value was set.
func (s Setting[T]) IsSet() bool {
	return s.set
}

// Or returns the value, or fallback when unset.
func (s Setting[T]) Or(fallback T) T {
	if !s.set {
		return fallback
	}
	return s.value
}
