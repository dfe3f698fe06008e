package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Noflowerzzk/NeverHitGround/server"
)

// 入口：启动宿主桥接（WebSocket）与管理接口，宿主通过 /ws 投递事件
func main() {
	var (
		configPath string
		addr       string
		dataDir    string
	)
	flag.StringVar(&configPath, "config", "", "path to config.yaml (or set NHG_CONFIG)")
	flag.StringVar(&addr, "addr", "", "listen address override, e.g. :8080")
	flag.StringVar(&dataDir, "data", "", "data directory override")
	flag.Parse()

	cfg, err := server.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	// zap 日志写入文件（带滚动）
	if err := server.InitLogger(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer server.SyncLogger()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sessions := server.NewSessionManager(cfg.DataDir, cfg.Rules.ToRules(), cfg.Bridge.EventQueue, reg)
	// 预创建默认会话，宿主不带 server 参数即可接入
	_ = sessions.GetOrCreate(server.DefaultServerID)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", server.NewWSHandler(sessions, cfg.Bridge))
	server.NewAdmin(sessions).Register(mux)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		server.Log.Infof("never-hit-the-ground listening on %s (data=%s)", cfg.Server.Addr, cfg.DataDir)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			server.Log.Fatalf("listen: %v", err)
		}
	}()

	// 优雅退出：先停 HTTP，再停会话并把内存中的区块落盘
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	server.Log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		server.Log.Warnf("http shutdown: %v", err)
	}
	sessions.Close()
}
