package logging

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

// LogLevel определяет уровни логирования
type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования
func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel разбирает уровень из конфигурации ("debug", "INFO", ...)
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return TRACE, nil
	case "DEBUG":
		return DEBUG, nil
	case "", "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	}
	return INFO, fmt.Errorf("неизвестный уровень логирования %q", s)
}

// Logger пишет сообщения в консоль и, если открыт файл, в файл.
// Логгер компонента (см. LoggerManager) не владеет выводом и пишет
// через текущий логгер по умолчанию со своим префиксом.
type Logger struct {
	component     string
	consoleLogger *log.Logger
	fileLogger    *log.Logger
	file          *os.File

	consoleLevel atomic.Int32
	fileLevel    atomic.Int32

	child bool
}

var defaultLogger atomic.Pointer[Logger]

func init() {
	defaultLogger.Store(NewConsoleLogger("", INFO))
}

// NewConsoleLogger создаёт логгер без файла
func NewConsoleLogger(component string, level LogLevel) *Logger {
	l := &Logger{
		component:     component,
		consoleLogger: log.New(os.Stdout, "", log.LstdFlags),
	}
	l.consoleLevel.Store(int32(level))
	l.fileLevel.Store(int32(level))
	return l
}

// NewLogger создаёт логгер с файлом logs/<component>_<timestamp>.log
func NewLogger(component string) (*Logger, error) {
	return NewFileLogger(component, "logs")
}

// NewFileLogger создаёт логгер с файлом в каталоге dir
func NewFileLogger(component, dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("ошибка создания директории %s: %w", dir, err)
	}

	name := component
	if name == "" {
		name = "server"
	}
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := filepath.Join(dir, fmt.Sprintf("%s_%s.log", name, timestamp))

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания файла логов: %w", err)
	}

	l := NewConsoleLogger(component, INFO)
	l.fileLogger = log.New(file, "", log.LstdFlags)
	l.file = file
	l.fileLevel.Store(int32(TRACE))
	return l, nil
}

// InitDefaultLogger открывает файл логов и делает логгер глобальным
func InitDefaultLogger(component string) error {
	l, err := NewLogger(component)
	if err != nil {
		return err
	}
	old := defaultLogger.Swap(l)
	if old != nil {
		_ = old.Close()
	}
	return nil
}

// SetDefaultLevel меняет минимальный уровень консольного вывода
func SetDefaultLevel(level LogLevel) {
	defaultLogger.Load().consoleLevel.Store(int32(level))
}

// CloseDefaultLogger закрывает файл глобального логгера
func CloseDefaultLogger() {
	old := defaultLogger.Swap(NewConsoleLogger("", INFO))
	if old != nil {
		_ = old.Close()
	}
}

// Close закрывает файл логгера
func (l *Logger) Close() error {
	if l.child || l.file == nil {
		return nil
	}
	return l.file.Close()
}

func (l *Logger) Trace(format string, args ...interface{}) { l.log(TRACE, format, args...) }
func (l *Logger) Debug(format string, args ...interface{}) { l.log(DEBUG, format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.log(INFO, format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.log(WARN, format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.log(ERROR, format, args...) }

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	out := l
	if l.child {
		out = defaultLogger.Load()
	}

	message := fmt.Sprintf(format, args...)
	if l.component != "" {
		message = fmt.Sprintf("[%s] [%s] %s", level.String(), l.component, message)
	} else {
		message = fmt.Sprintf("[%s] %s", level.String(), message)
	}

	fileMin := max(l.fileLevel.Load(), out.fileLevel.Load())
	consoleMin := max(l.consoleLevel.Load(), out.consoleLevel.Load())

	if out.fileLogger != nil && int32(level) >= fileMin {
		out.fileLogger.Println(message)
	}
	if out.consoleLogger != nil && int32(level) >= consoleMin {
		out.consoleLogger.Println(message)
	}
}

// Trace логирует сообщение уровня TRACE глобальным логгером
func Trace(format string, args ...interface{}) { defaultLogger.Load().log(TRACE, format, args...) }

// Debug логирует сообщение уровня DEBUG глобальным логгером
func Debug(format string, args ...interface{}) { defaultLogger.Load().log(DEBUG, format, args...) }

// Info логирует сообщение уровня INFO глобальным логгером
func Info(format string, args ...interface{}) { defaultLogger.Load().log(INFO, format, args...) }

// Warn логирует сообщение уровня WARN глобальным логгером
func Warn(format string, args ...interface{}) { defaultLogger.Load().log(WARN, format, args...) }

// Error логирует сообщение уровня ERROR глобальным логгером
func Error(format string, args ...interface{}) { defaultLogger.Load().log(ERROR, format, args...) }

// HexDump создает hex дамп данных
func HexDump(data []byte) string {
	if len(data) == 0 {
		return "No data"
	}

	// Ограничиваем размер дампа до 256 байт
	size := len(data)
	if size > 256 {
		size = 256
	}

	return hex.Dump(data[:size])
}
