package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuzic/webreq-sniffer-sub000/internal/adapter/cdp"
	"github.com/cuzic/webreq-sniffer-sub000/internal/config"
	"github.com/cuzic/webreq-sniffer-sub000/internal/logger"
	"github.com/cuzic/webreq-sniffer-sub000/internal/pipeline"
	"github.com/cuzic/webreq-sniffer-sub000/internal/rules"
	"github.com/cuzic/webreq-sniffer-sub000/internal/server"
	"github.com/cuzic/webreq-sniffer-sub000/internal/state"
	"github.com/cuzic/webreq-sniffer-sub000/internal/storage"
	"github.com/cuzic/webreq-sniffer-sub000/pkg/api"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		os.Stderr.WriteString("加载配置失败: " + err.Error() + "\n")
		os.Exit(1)
	}

	l := logger.New(logger.Options{
		Level:   cfg.Log.Level,
		Writers: cfg.Log.Writer,
		File:    cfg.Log.File,
	})

	store, err := storage.Open(cfg.Sqlite.Dsn, cfg.Sqlite.Prefix, l)
	if err != nil {
		l.Err(err, "初始化存储失败")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	acc := state.New(store, time.Duration(cfg.Cache.TTLMS)*time.Millisecond, time.Now, l)
	if err := acc.EnsureDefaults(ctx); err != nil {
		l.Err(err, "初始化默认状态失败")
		os.Exit(1)
	}

	journal := pipeline.NewJournal(acc, l)
	chain := pipeline.NewChain(acc, rules.New(l), journal, l)
	svc := api.NewService(acc, chain, journal, l)

	source := cdp.NewSource(cfg.DevTools.URL, chain, l)
	if err := source.Start(ctx); err != nil {
		l.Err(err, "启动事件源失败", "devtools", cfg.DevTools.URL)
		os.Exit(1)
	}
	defer source.Stop()

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.New(svc, l).Router(),
	}
	go func() {
		l.Info("控制服务已启动", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Err(err, "控制服务异常退出")
			stop()
		}
	}()

	<-ctx.Done()
	l.Info("收到退出信号，正在关闭")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Err(err, "关闭控制服务失败")
	}
}
