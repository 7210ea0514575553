package xunique

import "errors"

// ErrUseAfterMove 表示对空 Owner（已转移、已释放或已分离）解引用。
var ErrUseAfterMove = errors.New("xunique: use of empty owner after move or release")
