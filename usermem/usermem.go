// Package usermem models the address space of a single process and the
// byte-exact transfers between it and the service.
package usermem

import (
	"encoding/binary"
	"errors"
)

// ErrFault is returned when a transfer touches an address outside of the space.
var ErrFault = errors.New("bad address")

// Space is a flat, fixed-size address space starting at address 0.
type Space struct {
	mem []byte
}

func NewSpace(size int) *Space {
	return &Space{mem: make([]byte, size)}
}

// Size returns the number of addressable bytes.
func (s *Space) Size() int {
	return len(s.mem)
}

// CopyIn copies len(dst) bytes starting at addr into dst.
// Either all bytes are copied or none are.
func (s *Space) CopyIn(dst []byte, addr uint64) error {
	src, err := s.window(addr, len(dst))
	if err != nil {
		return err
	}
	copy(dst, src)
	return nil
}

// CopyOut copies src into the space starting at addr.
// Either all bytes are copied or none are.
func (s *Space) CopyOut(addr uint64, src []byte) error {
	dst, err := s.window(addr, len(src))
	if err != nil {
		return err
	}
	copy(dst, src)
	return nil
}

func (s *Space) ReadInt32(addr uint64) (int32, error) {
	var b [4]byte
	if err := s.CopyIn(b[:], addr); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b[:])), nil
}

func (s *Space) WriteInt32(addr uint64, v int32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	return s.CopyOut(addr, b[:])
}

func (s *Space) window(addr uint64, n int) ([]byte, error) {
	end := addr + uint64(n)
	if n < 0 || end < addr || end > uint64(len(s.mem)) {
		return nil, ErrFault
	}
	return s.mem[addr:end], nil
}
