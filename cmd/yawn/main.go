// Command yawn starts the static-file server: load config, bring up
// logging and the optional auth store, then run the reactor loop until a
// signal asks it to stop.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lowlatency/yawn/internal/authstore"
	"github.com/lowlatency/yawn/internal/config"
	"github.com/lowlatency/yawn/internal/httpbuild"
	"github.com/lowlatency/yawn/internal/logx"
	"github.com/lowlatency/yawn/internal/server"
)

func main() {
	cfgPath := "./server.cfg"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "yawn: load config %s: %v\n", cfgPath, err)
		os.Exit(1)
	}

	if cfg.OpenLog {
		if err := logx.Init(logx.Config{
			Sink:        logx.SinkType(cfg.LogType),
			Dir:         cfg.LogDir,
			Filename:    cfg.LogFilename,
			MaxFileSize: cfg.LogMaxFileSize,
			Level:       logx.Level(cfg.LogLevel),
			QueueSize:   cfg.LogQueueSize,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "yawn: init logging: %v\n", err)
			os.Exit(1)
		}
		defer logx.Close()
	}

	if cfg.EnableDB {
		store, err := authstore.New(authstore.Config{
			Host:        cfg.SQLHost,
			Port:        cfg.SQLPort,
			Username:    cfg.SQLUsername,
			Password:    cfg.SQLPasswd,
			DBName:      cfg.DBName,
			ConnPoolNum: cfg.ConnPoolNum,
		})
		if err != nil {
			logx.Errorf("auth store: %v", err)
			os.Exit(1)
		}
		httpbuild.Store = store
	} else {
		httpbuild.Store = authstore.Disabled()
	}

	srv, err := server.New(cfg)
	if err != nil {
		logx.Errorf("server init: %v", err)
		os.Exit(1)
	}

	go awaitSignal(srv)

	if err := srv.Run(); err != nil {
		logx.Errorf("server run: %v", err)
		os.Exit(1)
	}
}

func awaitSignal(srv *server.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logx.Infof("shutdown signal received, closing")
	srv.Close()
}
