package util

import (
	"unsafe"
)

const (
	murmurMult  uint64 = 0xc6a4a7935bd1e995
	murmurSeed  uint64 = 0xe17a1465
	murmurShift uint64 = 47
)

// HashBytes runs murmur64a over the buffer. the value images fed into
// the distinct sketch go through here.
func HashBytes(ptr unsafe.Pointer, length uint64) uint64 {
	h := murmurSeed ^ (length * murmurMult)

	blocks := length / 8
	for i := uint64(0); i < blocks; i++ {
		k := Load[uint64](PointerAdd(ptr, int(i*8)))
		k *= murmurMult
		k ^= k >> murmurShift
		k *= murmurMult

		h ^= k
		h *= murmurMult
	}

	tailPtr := PointerAdd(ptr, int(blocks*8))
	tail := length & 7
	for i := tail; i > 0; i-- {
		val := Load[byte](PointerAdd(tailPtr, int(i-1)))
		h ^= uint64(val) << (8 * (i - 1))
	}
	if tail > 0 {
		h *= murmurMult
	}

	h ^= h >> murmurShift
	h *= murmurMult
	h ^= h >> murmurShift
	return h
}

func checksumWord(x uint64) uint64 {
	return x * 0xbf58476d1ce4e5b9
}

// Checksum guards the stats file against torn writes. not a
// cryptographic digest.
func Checksum(buffer unsafe.Pointer, sz uint64) uint64 {
	result := uint64(5381)
	words := sz / 8
	ptr := PointerToSlice[uint64](buffer, int(words))
	i := uint64(0)
	for i = 0; i < words; i++ {
		result ^= checksumWord(ptr[i])
	}
	rest := sz % 8
	if rest > 0 {
		result ^= HashBytes(PointerAdd(buffer, int(i*8)), rest)
	}
	return result
}
