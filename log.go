package strand

import (
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// The package logger and the unhandled-failure handler are process-wide,
// explicitly injectable state. Both default to doing nothing; nothing in the
// library initializes them as a side effect.

var pkgLogger = atomic.NewPointer(zap.NewNop())

// SetLogger installs the logger used by dispatchers and by the default
// unhandled-failure handler. Passing nil restores the no-op logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	pkgLogger.Store(l)
}

func logger() *zap.Logger { return pkgLogger.Load() }

// UnhandledHandler receives failures that no job or caller is left to
// observe: a failure in a detached root job with no joiner, or a panic
// escaping a completion handler.
type UnhandledHandler func(err error)

var unhandledHandler = atomic.NewPointer[UnhandledHandler](nil)

// SetUnhandledHandler installs the process-wide hook for unobserved
// failures. Passing nil restores the default, which logs through the
// package logger (a no-op unless [SetLogger] was called).
func SetUnhandledHandler(fn UnhandledHandler) {
	if fn == nil {
		unhandledHandler.Store(nil)
		return
	}
	unhandledHandler.Store(&fn)
}

func reportUnhandled(err error) {
	if err == nil {
		return
	}
	if fn := unhandledHandler.Load(); fn != nil {
		(*fn)(err)
		return
	}
	logger().Error("unhandled failure", zap.Error(err))
}
