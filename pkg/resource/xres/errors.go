package xres

import "errors"

var (
	// ErrAcquire 表示资源获取失败。
	// 所有 [*AcquisitionError] 都满足 errors.Is(err, ErrAcquire)。
	ErrAcquire = errors.New("xres: acquisition failed")

	// ErrReleased 表示资源已释放。
	// [Once] 包装的释放函数第二次及后续调用返回此错误。
	ErrReleased = errors.New("xres: resource already released")

	// ErrReleasePanic 表示释放函数发生 panic，已被 [ReleaseFunc.Call] 转换为错误。
	ErrReleasePanic = errors.New("xres: release panicked")

	// ErrNilRelease 表示资源的释放函数为 nil。
	ErrNilRelease = errors.New("xres: nil release func")

	// ErrNilAcquirer 表示获取函数为 nil。
	ErrNilAcquirer = errors.New("xres: nil acquirer")

	// ErrNilContext 表示 context 参数为 nil。
	ErrNilContext = errors.New("xres: nil context")

	// ErrInvalidSize 表示缓冲区大小无效。
	ErrInvalidSize = errors.New("xres: invalid buffer size")

	// ErrCreateInstrument 表示创建 OTel 指标失败。
	ErrCreateInstrument = errors.New("xres: create instrument failed")
)

// AcquisitionError 表示一次失败的资源获取。
// 获取失败时不会构造任何 owner，也不会留下部分持有的资源。
type AcquisitionError struct {
	// Kind 资源类型，获取函数未给出时为空。
	Kind string
	// Err 底层错误。
	Err error
}

func (e *AcquisitionError) Error() string {
	if e.Kind == "" {
		return "xres: acquire: " + errString(e.Err)
	}
	return "xres: acquire " + e.Kind + ": " + errString(e.Err)
}

// Unwrap 返回底层错误。
func (e *AcquisitionError) Unwrap() error { return e.Err }

// Is 使 errors.Is(err, ErrAcquire) 对所有获取错误成立。
func (e *AcquisitionError) Is(target error) bool { return target == ErrAcquire }

// ReleaseError 表示一次失败的资源释放。
// 资源在返回此错误时已被视为释放（不会再次尝试）。
type ReleaseError struct {
	Kind string
	ID   string
	Err  error
}

func (e *ReleaseError) Error() string {
	return "xres: release " + e.Kind + " " + e.ID + ": " + errString(e.Err)
}

// Unwrap 返回底层错误。
func (e *ReleaseError) Unwrap() error { return e.Err }

// IsAcquisitionError 判断 err 是否为获取失败。
func IsAcquisitionError(err error) bool {
	return errors.Is(err, ErrAcquire)
}

func errString(err error) string {
	if err == nil {
		return "<nil>"
	}
	return err.Error()
}

func wrapAcquire(kind string, err error) error {
	var ae *AcquisitionError
	if errors.As(err, &ae) {
		return err
	}
	return &AcquisitionError{Kind: kind, Err: err}
}
