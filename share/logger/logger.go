package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type LogLevel int

const (
	LogLevelError LogLevel = 0
	LogLevelWarn  LogLevel = 1
	LogLevelInfo  LogLevel = 2
	LogLevelDebug LogLevel = 3
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelWarn:
		return "warn"
	case LogLevelInfo:
		return "info"
	case LogLevelDebug:
		return "debug"
	case LogLevelError:
		return "error"
	default:
		return ""
	}
}

func (l LogLevel) logrusLevel() logrus.Level {
	switch l {
	case LogLevelWarn:
		return logrus.WarnLevel
	case LogLevelInfo:
		return logrus.InfoLevel
	case LogLevelDebug:
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func ParseLogLevel(str string) (LogLevel, error) {
	var m = map[string]LogLevel{
		"error": LogLevelError,
		"warn":  LogLevelWarn,
		"info":  LogLevelInfo,
		"debug": LogLevelDebug,
	}
	if result, ok := m[str]; ok {
		return result, nil
	}
	return LogLevelError, fmt.Errorf("invalid log level: %q", str)
}

type LogOutput struct {
	File     *os.File
	filePath string
}

func NewLogOutput(filePath string) LogOutput {
	return LogOutput{
		filePath: filePath,
	}
}

func (o *LogOutput) Start() error {
	if o.filePath == "" {
		o.File = os.Stderr
		return nil
	}

	var err error
	o.File, err = os.OpenFile(o.filePath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("can't open log file %s: %s", o.filePath, err)
	}
	return nil
}

func (o *LogOutput) Shutdown() {
	if o.File != nil && o.File != os.Stderr && o.File != os.Stdout {
		_ = o.File.Close()
	}
}

func (o LogOutput) writer() io.Writer {
	if o.File == nil {
		return os.Stderr
	}
	return o.File
}

// Logger prefixes every message and hands it to logrus for formatting.
type Logger struct {
	prefix string
	logger *logrus.Logger
	output LogOutput
	Level  LogLevel
}

func NewLogger(prefix string, output LogOutput, level LogLevel) *Logger {
	lr := logrus.New()
	lr.SetOutput(output.writer())
	lr.SetLevel(level.logrusLevel())
	lr.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:    true,
		TimestampFormat:  "2006/01/02 15:04:05",
		DisableQuote:     true,
		PadLevelText:     true,
		QuoteEmptyFields: true,
	})

	l := &Logger{
		prefix: prefix,
		logger: lr,
		output: output,
		Level:  level,
	}
	return l
}

func (l *Logger) Errorf(f string, args ...interface{}) {
	l.Logf(LogLevelError, f, args...)
}

func (l *Logger) Warnf(f string, args ...interface{}) {
	l.Logf(LogLevelWarn, f, args...)
}

func (l *Logger) Infof(f string, args ...interface{}) {
	l.Logf(LogLevelInfo, f, args...)
}

func (l *Logger) Debugf(f string, args ...interface{}) {
	l.Logf(LogLevelDebug, f, args...)
}

func (l *Logger) Logf(severity LogLevel, f string, args ...interface{}) {
	if l.Level < severity {
		return
	}
	l.logger.Logf(severity.logrusLevel(), l.prefix+": "+f, args...)
}

func (l *Logger) Fork(prefix string, args ...interface{}) *Logger {
	// slip the parent prefix at the front
	args = append([]interface{}{l.prefix}, args...)
	ll := NewLogger(fmt.Sprintf("%s: "+prefix, args...), l.output, l.Level)
	return ll
}

func (l *Logger) Prefix() string {
	return l.prefix
}

// Discard returns a logger that drops everything, for tests and library use.
func Discard() *Logger {
	l := NewLogger("", LogOutput{}, LogLevelError)
	l.logger.SetOutput(io.Discard)
	return l
}
