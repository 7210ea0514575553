//go:build !windows

package xres

import (
	"context"
	"os"

	"golang.org/x/sys/unix"
)

// OpenFD 返回打开原始文件描述符的获取器，释放即 close(2)。
// 总是附加 O_CLOEXEC，避免描述符泄漏到子进程。
func OpenFD(path string, flags int, perm uint32) Acquirer[int] {
	return func(ctx context.Context) (Resource[int], error) {
		if err := ctx.Err(); err != nil {
			return Resource[int]{Value: -1, Kind: KindFD}, err
		}
		fd, err := unix.Open(path, flags|unix.O_CLOEXEC, perm)
		if err != nil {
			return Resource[int]{Value: -1, Kind: KindFD}, &os.PathError{Op: "open", Path: path, Err: err}
		}
		return Resource[int]{
			Value: fd,
			Kind:  KindFD,
			Release: Once(func() error {
				if err := unix.Close(fd); err != nil {
					return &os.PathError{Op: "close", Path: path, Err: err}
				}
				return nil
			}),
		}, nil
	}
}
