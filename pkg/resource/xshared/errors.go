package xshared

import "errors"

// ErrClosed 表示 Ref 已关闭，或弱引用指向的资源已释放。
var ErrClosed = errors.New("xshared: reference closed")
