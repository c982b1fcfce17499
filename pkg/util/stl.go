package util

func Size[T any](data []T) int {
	return len(data)
}

func Empty[T any](data []T) bool {
	return Size(data) == 0
}

func FindIf[T any](data []T, pred func(t T) bool) int {
	for i, ele := range data {
		if pred(ele) {
			return i
		}
	}
	return -1
}

// RemoveIf removes the one that pred is true.
func RemoveIf[T any](data []T, pred func(t T) bool) []T {
	if len(data) == 0 {
		return data
	}
	res := 0
	for i := 0; i < len(data); i++ {
		if !pred(data[i]) {
			if res != i {
				data[res] = data[i]
			}
			res++
		}
	}
	return data[:res]
}

func CopyTo[T any](src []T) []T {
	dst := make([]T, len(src))
	copy(dst, src)
	return dst
}
