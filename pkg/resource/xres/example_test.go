package xres_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/omeyang/xown/pkg/resource/xres"
)

func ExampleAcquire() {
	// 获取函数在返回错误的同时交回了半成品资源，Acquire 负责回滚。
	_, err := xres.Acquire(context.Background(), func(context.Context) (xres.Resource[string], error) {
		return xres.Resource[string]{
			Value: "session",
			Kind:  xres.KindConn,
			Release: func() error {
				fmt.Println("rolled back")
				return nil
			},
		}, errors.New("handshake failed")
	})
	fmt.Println(err)
	fmt.Println(errors.Is(err, xres.ErrAcquire))
	// Output:
	// rolled back
	// xres: acquire conn: handshake failed
	// true
}

func ExampleOnce() {
	release := xres.Once(func() error {
		fmt.Println("closing")
		return nil
	})
	fmt.Println(release())
	fmt.Println(release())
	// Output:
	// closing
	// <nil>
	// xres: resource already released
}
