package logger

// NopLogger — заглушка логгера для тестов.
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (NopLogger) Debugf(format string, args ...any)            {}
func (NopLogger) Infof(format string, args ...any)             {}
func (NopLogger) Warnf(format string, args ...any)             {}
func (NopLogger) Errorf(err error, format string, args ...any) {}
