package programs

import (
	"bytes"
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lhecker/semd/syscalls"
)

// EncryptTest encrypts and decrypts messages in process memory.
func EncryptTest(ctx context.Context, k *syscalls.Kernel, logger *zap.Logger) error {
	var ids pids
	p := syscalls.NewProc(ctx, ids.next(), memSize)

	for _, msg := range [][]byte{
		[]byte("Hello, World!"),
		bytes.Repeat([]byte("0123456789abcdef"), 100),
	} {
		n := int64(len(msg))
		if err := p.Mem.CopyOut(0, msg); err != nil {
			return err
		}

		if err := expect(k.Syscall(p, syscalls.SysEncrypt, 0, n), n, "encrypt"); err != nil {
			return err
		}

		buf := make([]byte, len(msg))
		if err := p.Mem.CopyIn(buf, 0); err != nil {
			return err
		}
		if bytes.Equal(buf, msg) {
			return fmt.Errorf("encrypting %d bytes left them unchanged", n)
		}

		if err := expect(k.Syscall(p, syscalls.SysDecrypt, 0, n), n, "decrypt"); err != nil {
			return err
		}
		if err := p.Mem.CopyIn(buf, 0); err != nil {
			return err
		}
		if !bytes.Equal(buf, msg) {
			return fmt.Errorf("round trip of %d bytes changed the data", n)
		}

		logger.Info("round trip passed", zap.Int64("bytes", n))
	}

	if err := expect(k.Syscall(p, syscalls.SysEncrypt, 0, 0), -1, "encrypt of 0 bytes"); err != nil {
		return err
	}
	if err := expect(k.Syscall(p, syscalls.SysEncrypt, 0, 5000), -1, "encrypt of 5000 bytes"); err != nil {
		return err
	}

	return nil
}
