// Package config parses the server's key=value configuration file.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds every recognized key, defaulted by Default before Load
// overlays whatever the file actually sets.
type Config struct {
	ListenIP   string
	ListenPort int
	Timeout    int // milliseconds; connection idle timeout
	OpenLinger bool
	TrigMode   int // bitmask: bit0 = listen fd edge-triggered, bit1 = conn fd edge-triggered
	ThreadPoolNum int
	SrcDir     string

	OpenLog        bool
	LogType        int // SinkType bitmask, see internal/logx
	LogLevel       int
	LogDir         string
	LogFilename    string
	LogMaxFileSize int64
	LogQueueSize   int

	EnableDB     bool
	SQLHost      string
	SQLPort      int
	SQLUsername  string
	SQLPasswd    string
	DBName       string
	ConnPoolNum  int
}

// Default returns the configuration used when no file is present or a
// key is missing.
func Default() Config {
	return Config{
		ListenIP:      "0.0.0.0",
		ListenPort:    1316,
		Timeout:       60000,
		OpenLinger:    false,
		TrigMode:      0,
		ThreadPoolNum: 6,
		SrcDir:        "./resources",

		OpenLog:        true,
		LogType:        3, // Both
		LogLevel:       1, // Info
		LogDir:         "./log",
		LogFilename:    "server",
		LogMaxFileSize: 1024 * 1024,
		LogQueueSize:   1024,

		EnableDB:    false,
		SQLHost:     "localhost",
		SQLPort:     3306,
		SQLUsername: "",
		SQLPasswd:   "",
		DBName:      "",
		ConnPoolNum: 4,
	}
}

// Load reads path, overlaying recognized keys onto Default(). A missing
// file is not an error — it just yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, val, ok := parseLine(sc.Text())
		if !ok {
			continue
		}
		apply(&cfg, key, val)
	}
	if err := sc.Err(); err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	return cfg, nil
}

// parseLine strips a trailing "#..." comment, splits at the first "=",
// trims whitespace on both sides, and silently rejects a line with no "=",
// an empty key, or an empty value rather than erroring — a malformed line
// is simply ignored.
func parseLine(raw string) (key, val string, ok bool) {
	line := raw
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", "", false
	}
	eq := strings.IndexByte(line, '=')
	if eq < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:eq])
	val = strings.TrimSpace(line[eq+1:])
	if key == "" || val == "" {
		return "", "", false
	}
	return key, val, true
}

func apply(cfg *Config, key, val string) {
	switch key {
	case "listen_ip":
		cfg.ListenIP = val
	case "listen_port":
		cfg.ListenPort = atoiOr(val, cfg.ListenPort)
	case "timeout":
		cfg.Timeout = atoiOr(val, cfg.Timeout)
	case "open_linger":
		cfg.OpenLinger = boolOr(val, cfg.OpenLinger)
	case "trig_mode":
		cfg.TrigMode = atoiOr(val, cfg.TrigMode)
	case "thread_pool_num":
		cfg.ThreadPoolNum = atoiOr(val, cfg.ThreadPoolNum)
	case "src_dir":
		cfg.SrcDir = val
	case "open_log":
		cfg.OpenLog = boolOr(val, cfg.OpenLog)
	case "log_type":
		cfg.LogType = atoiOr(val, cfg.LogType)
	case "log_level":
		cfg.LogLevel = atoiOr(val, cfg.LogLevel)
	case "log_dir":
		cfg.LogDir = val
	case "log_filename":
		cfg.LogFilename = val
	case "log_max_file_size":
		cfg.LogMaxFileSize = int64(atoiOr(val, int(cfg.LogMaxFileSize)))
	case "log_queue_size":
		cfg.LogQueueSize = atoiOr(val, cfg.LogQueueSize)
	case "enable_db":
		cfg.EnableDB = boolOr(val, cfg.EnableDB)
	case "sql_host":
		cfg.SQLHost = val
	case "sql_port":
		cfg.SQLPort = atoiOr(val, cfg.SQLPort)
	case "sql_username":
		cfg.SQLUsername = val
	case "sql_passwd":
		cfg.SQLPasswd = val
	case "db_name":
		cfg.DBName = val
	case "conn_pool_num":
		cfg.ConnPoolNum = atoiOr(val, cfg.ConnPoolNum)
	}
	// Unrecognized keys are ignored.
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func boolOr(s string, fallback bool) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
