package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultLogger is the default logger and is used when given a context
// with no associated log instance.
//
// DefaultLogger by default discards all logs. You can change its implementation
// by setting this variable to an instantiated logger of your own.
var DefaultLogger Logger = &logger{
	Logger: zap.NewNop(),
}

// NewProductionLogger is a reasonable production logging configuration.
// Logging is enabled at the given level and above.
//
// It uses a console encoder, writes to standard error, and includes callers.
func NewProductionLogger(lvl Level, opts ...Option) Logger {
	opts = append(_defaultOption, opts...)

	var cfg logConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var zapOptions []zap.Option
	if cfg.caller {
		zapOptions = append(zapOptions, zap.AddCaller(), zap.AddCallerSkip(1))
	}

	l := zap.New(newZapCore(lvl, cfg), zapOptions...)

	return &logger{
		Logger: l,
	}
}

// NewLineLogger returns a Logger whose output is a stream of
// newline-terminated lines of the form "<epoch_millis> <message>", written
// to w. Level, caller and field decoration are omitted so that the message
// bytes pass through verbatim.
//
// It is used to accumulate transfer trace lines into a Response record, but
// works with any writer.
func NewLineLogger(w io.Writer) Logger {
	encCfg := zapcore.EncoderConfig{
		TimeKey:          "ts",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.EpochMillisTimeEncoder,
		ConsoleSeparator: " ",
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(w),
		zapcore.DebugLevel,
	)

	return &logger{
		Logger: zap.New(core),
	}
}

// logger provides fast, leveled, structured logging. All methods are safe
// for concurrent use.
type logger struct {
	*zap.Logger
}

var _ Logger = (*logger)(nil)

// With creates a child logger and adds structured context to it. Fields added
// to the child don't affect the parent, and vice versa.
func (l *logger) With(fields ...Field) Logger {
	child := l.Logger.With(fields...)
	return &logger{
		Logger: child,
	}
}

// Named adds a new path segment to the logger's name. Segments are joined by
// periods. By default, Loggers are unnamed.
func (l *logger) Named(s string) Logger {
	child := l.Logger.Named(s)
	return &logger{
		Logger: child,
	}
}

// Level reports the minimum enabled level for this logger.
func (l *logger) Level() Level {
	return zapcore.LevelOf(l.Core())
}

// WriteSyncer is an io.Writer that can also flush any buffered data.
type WriteSyncer interface {
	io.Writer
	Sync() error
}

type logConfig struct {
	levelKey string
	caller   bool
	writer   WriteSyncer
	json     bool
}

// Option configures a Logger.
type Option func(s *logConfig)

// WithLevelKey lets the caller configure which key name to use for the log level.
//
// Default value is "level".
func WithLevelKey(key string) Option {
	return func(s *logConfig) {
		s.levelKey = key
	}
}

// WithCaller lets the caller configure whether to include a "caller" tag in the
// log specifying the package/file:line in which the log occurred.
func WithCaller(t bool) Option {
	return func(s *logConfig) {
		s.caller = t
	}
}

// WithJSONEncoding tells the logger to use JSON as its encoding.
func WithJSONEncoding() Option {
	return func(s *logConfig) {
		s.json = true
	}
}

// WithWriter lets the caller configure which WriteSyncer it wants the logger to
// write the logs to.
//
// Default value is to write to Stderr.
func WithWriter(w WriteSyncer) Option {
	return func(s *logConfig) {
		s.writer = w
	}
}

var (
	// Globally declare the stderr writer as we need to synchronize writes
	// between multiple instances of loggers.
	_stderr = zapcore.Lock(zapcore.AddSync(os.Stderr))

	// Default options used when constructing a logger.
	_defaultOption = []Option{
		WithWriter(_stderr),
		WithLevelKey("level"),
		WithCaller(true),
	}
)

func newZapCore(lvl Level, cfg logConfig) zapcore.Core {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.LevelKey = cfg.levelKey
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if cfg.json {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	return zapcore.NewCore(enc, cfg.writer, lvl)
}
