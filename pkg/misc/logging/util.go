package logging

import "unsafe"

// The helpers below log only when the logger is set, so optional Logger
// fields can be used without checks.

func Debug(log DebugLogger, args ...interface{}) {
	if !isNilValue(log) {
		log.Debug(args...)
	}
}

func Debugf(log DebugLogger, template string, args ...interface{}) {
	if !isNilValue(log) {
		log.Debugf(template, args...)
	}
}

func Info(log InfoLogger, args ...interface{}) {
	if !isNilValue(log) {
		log.Info(args...)
	}
}

func Infof(log InfoLogger, template string, args ...interface{}) {
	if !isNilValue(log) {
		log.Infof(template, args...)
	}
}

func Error(log ErrorLogger, args ...interface{}) {
	if !isNilValue(log) {
		log.Error(args...)
	}
}

func Errorf(log ErrorLogger, template string, args ...interface{}) {
	if !isNilValue(log) {
		log.Errorf(template, args...)
	}
}

// isNilValue reports whether i is nil or an interface holding a nil pointer.
func isNilValue(i interface{}) bool {
	return i == nil || (*[2]uintptr)(unsafe.Pointer(&i))[1] == 0
}
