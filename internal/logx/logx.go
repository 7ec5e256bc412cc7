// Package logx is the server's async logging sink: callers never block on
// disk or terminal I/O — a log call formats a line and hands it to a
// bounded queue drained by a single writer goroutine. The bounded queue
// itself is internal/bqueue, the same structure backing the worker pool's
// task queue. Call sites elsewhere in this module prefix milestone lines
// with an emoji; that convention lives at the call site, not in this
// package.
package logx

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/lowlatency/yawn/internal/bqueue"
)

// Level orders log severities; a Logger drops anything below its
// configured level.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// SinkType is a bitmask selecting where formatted lines go.
type SinkType int

const (
	Stdout SinkType = 1 << 0
	File   SinkType = 1 << 1
	Both            = Stdout | File
)

// Config configures Init. Dir/Filename/MaxFileSize are only consulted when
// Sink includes File.
type Config struct {
	Sink        SinkType
	Dir         string
	Filename    string
	MaxFileSize int64
	Level       Level
	QueueSize   int
}

type message struct {
	line string
}

// Logger is the process-wide async sink. Use the package-level functions
// (Init, Debugf, Infof, Warnf, Errorf, Close) for the common case of one
// logger used as a singleton throughout the process.
type Logger struct {
	cfg    Config
	queue  *bqueue.Queue[message]
	wg     sync.WaitGroup
	mu     sync.Mutex // guards file/curSize/curDay/seq, written only by the writer goroutine
	file   *os.File
	curSize int64
	curDay  string
	seq     int
}

var (
	defaultMu     sync.Mutex
	defaultLogger *Logger
)

// Init configures and starts the process-wide default logger. Calling it
// more than once is a no-op after the first call.
func Init(cfg Config) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger != nil {
		return nil
	}
	l, err := New(cfg)
	if err != nil {
		return err
	}
	defaultLogger = l
	return nil
}

// New constructs and starts an independent logger, for tests or callers
// that want more than one sink.
func New(cfg Config) (*Logger, error) {
	if cfg.Sink == 0 {
		cfg.Sink = Stdout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	l := &Logger{cfg: cfg, queue: bqueue.New[message](cfg.QueueSize)}
	if cfg.Sink&File != 0 {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("logx: mkdir %s: %w", cfg.Dir, err)
		}
	}
	l.wg.Add(1)
	go l.writeLoop()
	return l, nil
}

func (l *Logger) writeLoop() {
	defer l.wg.Done()
	for {
		msg, ok := l.queue.Pop()
		if !ok {
			l.closeFile()
			return
		}
		l.emit(msg.line)
	}
}

func (l *Logger) emit(line string) {
	if l.cfg.Sink&Stdout != 0 {
		fmt.Print(line)
	}
	if l.cfg.Sink&File != 0 {
		l.writeFile(line)
	}
}

// writeFile opens (or rotates) the destination file and appends line.
// Rotation triggers on a day change or on crossing MaxFileSize, naming
// the new file <filename>_<YYYYMMDD>_<seq>.log.
func (l *Logger) writeFile(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	today := time.Now().Format("20060102")
	needRotate := l.file == nil || today != l.curDay ||
		(l.cfg.MaxFileSize > 0 && l.curSize+int64(len(line)) > l.cfg.MaxFileSize)
	if needRotate {
		if l.file != nil {
			l.file.Close()
		}
		if today != l.curDay {
			l.curDay = today
			l.seq = 0
		} else {
			l.seq++
		}
		name := fmt.Sprintf("%s_%s_%d.log", l.cfg.Filename, l.curDay, l.seq)
		f, err := os.OpenFile(filepath.Join(l.cfg.Dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logx: open %s: %v\n", name, err)
			l.file = nil
			return
		}
		l.file = f
		l.curSize = 0
	}
	n, err := l.file.WriteString(line)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logx: write: %v\n", err)
		return
	}
	l.curSize += int64(n)
}

func (l *Logger) closeFile() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}

// log formats and enqueues one line. Dropped silently if the queue is
// closed (shutdown in progress) so a caller racing Close never blocks.
func (l *Logger) log(level Level, format string, args ...any) {
	if level < l.cfg.Level {
		return
	}
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		file, line = "???", 0
	} else {
		file = filepath.Base(file)
	}
	now := time.Now()
	text := fmt.Sprintf(format, args...)
	// pid only: goroutines hop OS threads across calls, so there's no
	// stable per-call thread id worth pairing with it here.
	formatted := fmt.Sprintf("[%s] [%s] [pid:%d] [%s:%d] %s\n",
		level, now.Format("2006-01-02 15:04:05.000000"), os.Getpid(), file, line, text)
	l.queue.Push(message{line: formatted})
}

func (l *Logger) Debugf(format string, args ...any) { l.log(Debug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.log(Info, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(Warn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.log(Error, format, args...) }

// Close stops accepting new lines, drains what's queued, and blocks until
// the writer goroutine exits. Idempotent.
func (l *Logger) Close() {
	l.queue.Close()
	l.wg.Wait()
}

func ensureDefault() *Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger, _ = New(Config{Sink: Stdout, Level: Info})
	}
	return defaultLogger
}

func Debugf(format string, args ...any) { ensureDefault().log(Debug, format, args...) }
func Infof(format string, args ...any)  { ensureDefault().log(Info, format, args...) }
func Warnf(format string, args ...any)  { ensureDefault().log(Warn, format, args...) }
func Errorf(format string, args ...any) { ensureDefault().log(Error, format, args...) }

// Close shuts down the process-wide default logger, if one was started.
func Close() {
	defaultMu.Lock()
	l := defaultLogger
	defaultLogger = nil
	defaultMu.Unlock()
	if l != nil {
		l.Close()
	}
}
