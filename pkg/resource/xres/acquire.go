package xres

import (
	"context"
	"net"
	"os"
	"sync"
)

// OpenFile 返回打开文件的获取器，释放即关闭文件。
func OpenFile(name string, flag int, perm os.FileMode) Acquirer[*os.File] {
	return func(ctx context.Context) (Resource[*os.File], error) {
		if err := ctx.Err(); err != nil {
			return Resource[*os.File]{Kind: KindFile}, err
		}
		f, err := os.OpenFile(name, flag, perm)
		if err != nil {
			return Resource[*os.File]{Kind: KindFile}, err
		}
		return FromCloser(f, KindFile), nil
	}
}

// Dial 返回建立网络连接的获取器，遵循 ctx 的超时与取消。
func Dial(network, address string) Acquirer[net.Conn] {
	return func(ctx context.Context) (Resource[net.Conn], error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, network, address)
		if err != nil {
			return Resource[net.Conn]{Kind: KindConn}, err
		}
		return FromCloser(conn, KindConn), nil
	}
}

// Lock 返回加锁的获取器，释放即解锁。
// l.Lock 可能阻塞，ctx 只在加锁前检查一次。
func Lock(l sync.Locker) Acquirer[sync.Locker] {
	return func(ctx context.Context) (Resource[sync.Locker], error) {
		if err := ctx.Err(); err != nil {
			return Resource[sync.Locker]{Kind: KindLock}, err
		}
		l.Lock()
		return Resource[sync.Locker]{
			Value: l,
			Kind:  KindLock,
			Release: Once(func() error {
				l.Unlock()
				return nil
			}),
		}, nil
	}
}

// BufferPool 提供固定大小的内存块。
// 释放时清零并归还到池中，下次获取可复用。
type BufferPool struct {
	size int
	pool sync.Pool
}

// NewBufferPool 创建内存块大小为 size 的池。size <= 0 返回 [ErrInvalidSize]。
func NewBufferPool(size int) (*BufferPool, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	p := &BufferPool{size: size}
	p.pool.New = func() any {
		buf := make([]byte, size)
		return &buf
	}
	return p, nil
}

// Size 返回内存块大小。
func (p *BufferPool) Size() int { return p.size }

// Acquire 从池中获取一个清零的内存块，签名与 [Acquirer] 一致。
func (p *BufferPool) Acquire(ctx context.Context) (Resource[[]byte], error) {
	if err := ctx.Err(); err != nil {
		return Resource[[]byte]{Kind: KindBuffer}, err
	}
	bp, ok := p.pool.Get().(*[]byte)
	if !ok {
		buf := make([]byte, p.size)
		bp = &buf
	}
	buf := *bp
	return Resource[[]byte]{
		Value: buf,
		Kind:  KindBuffer,
		Release: Once(func() error {
			clear(buf)
			p.pool.Put(bp)
			return nil
		}),
	}, nil
}
