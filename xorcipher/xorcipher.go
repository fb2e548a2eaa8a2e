// Package xorcipher implements a single-byte XOR cipher over process memory.
// It is a toy: encryption and decryption are the same operation.
package xorcipher

import (
	"errors"
)

const (
	DefaultKey byte = 0x5A

	// ChunkSize is the largest amount of data transferred in one step.
	ChunkSize = 512

	// MaxLength is the largest buffer Transform accepts.
	MaxLength = 4096
)

var ErrLength = errors.New("invalid buffer length")

// Memory is the transfer contract to a process address space.
type Memory interface {
	CopyIn(dst []byte, addr uint64) error
	CopyOut(addr uint64, src []byte) error
}

// XOR applies key to every byte of buf.
func XOR(buf []byte, key byte) {
	for i := range buf {
		buf[i] ^= key
	}
}

// Transform applies key in place to the n bytes at addr and returns n.
// Chunks already written back stay transformed if a later chunk faults.
func Transform(mem Memory, addr uint64, n int, key byte) (int, error) {
	if n <= 0 || n > MaxLength {
		return 0, ErrLength
	}

	var buf [ChunkSize]byte
	for processed := 0; processed < n; {
		chunk := buf[:min(n-processed, ChunkSize)]
		at := addr + uint64(processed)

		if err := mem.CopyIn(chunk, at); err != nil {
			return processed, err
		}

		XOR(chunk, key)

		if err := mem.CopyOut(at, chunk); err != nil {
			return processed, err
		}

		processed += len(chunk)
	}

	return n, nil
}
