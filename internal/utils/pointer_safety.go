package utils

func Value[T any](v *T) T {
	if v == nil {
		return *new(T)
	}
	return *v
}

func Ptr[T any](v T) *T {
	return &v
}

// First dereferences the first non-nil pointer, or returns the zero value
func First[T any](values ...*T) T {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return *new(T)
}
