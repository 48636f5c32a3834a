package core

// Logger is the app-wide logging contract.
// Implementations may interpret trailing args as structured context
// (error values, maps, the acting user).
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
