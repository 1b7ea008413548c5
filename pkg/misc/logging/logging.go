package logging

// DebugLogger logs at debug level.
type DebugLogger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
}

// InfoLogger logs at info level.
type InfoLogger interface {
	Info(args ...interface{})
	Infof(template string, args ...interface{})
}

// ErrorLogger logs at error level.
type ErrorLogger interface {
	Error(args ...interface{})
	Errorf(template string, args ...interface{})
}

// Logger is the full leveled logger. A *zap.SugaredLogger satisfies it.
type Logger interface {
	DebugLogger
	InfoLogger
	ErrorLogger
}
