package util

import (
	"unsafe"
)

func Load[T any](ptr unsafe.Pointer) T {
	return *(*T)(ptr)
}

func Store[T any](val T, ptr unsafe.Pointer) {
	*(*T)(ptr) = val
}

func BytesSliceToPointer(data []byte) unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(data))
}

func PointerAdd(base unsafe.Pointer, offset int) unsafe.Pointer {
	return unsafe.Add(base, offset)
}

func PointerToSlice[T any](base unsafe.Pointer, len int) []T {
	return unsafe.Slice((*T)(base), len)
}
