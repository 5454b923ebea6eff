// Command mysqlping connects to a MySQL server, pings it, and exits
// with the result. Given -http, it instead stays up and serves /stat
// and /metrics so the connection can be watched the way a long-lived
// embedder would watch it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mysqlconn/mysqlconn"
	"github.com/mysqlconn/mysqlconn/internal/config"
	"github.com/mysqlconn/mysqlconn/internal/protocol"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML options file (overrides the flags below)")
	host := flag.String("host", "127.0.0.1", "server host")
	port := flag.Int("port", 3306, "server port")
	socket := flag.String("socket", "", "unix socket path (overrides host/port)")
	user := flag.String("user", "root", "username")
	password := flag.String("password", "", "password")
	database := flag.String("database", "", "initial database")
	httpAddr := flag.String("http", "", "if set, serve /stat and /metrics on this address instead of pinging once and exiting")
	flag.Parse()

	opts := mysqlconn.Options{}
	if *configPath != "" {
		f, err := config.Load(*configPath)
		if err != nil {
			slog.Error("loading config", "error", err)
			os.Exit(1)
		}
		*host, *port, *socket = f.Host, f.Port, f.Socket
		*user, *password, *database = f.User, f.Password, f.Database
		opts.CharsetName = f.CharsetName
		opts.InitCommands = f.InitCommands
		opts.AllowLocalInfile = f.LocalInfile
		opts.MultiStatements = f.MultiStatements
		opts.Compress = f.Compress
		opts.ConnectTimeoutMillis = int(f.ConnectTimeout / time.Millisecond)
		opts.NetBufferSize = f.NetBufferSize
	}

	conn := mysqlconn.New(opts)
	flags := protocol.MandatoryCapabilities | protocol.DefaultExtraCapabilities | protocol.ClientPluginAuth

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err := conn.Connect(ctx, *host, *user, *password, *database, *port, *socket, flags)
	cancel()
	if err != nil {
		slog.Error("connect failed", "error", err)
		os.Exit(1)
	}
	slog.Info("connected", "host_info", conn.HostInfo(), "thread_id", conn.ThreadID(), "server_version", conn.ServerVersion())

	if *httpAddr == "" {
		if err := conn.Ping(); err != nil {
			slog.Error("ping failed", "errno", conn.Errno(), "sqlstate", conn.SQLState(), "error", err)
			conn.Close(mysqlconn.CloseExplicit)
			os.Exit(1)
		}
		fmt.Println("ok")
		conn.Close(mysqlconn.CloseExplicit)
		return
	}

	serve(conn, *httpAddr)
}

func serve(conn *mysqlconn.Connection, addr string) {
	startTime := time.Now()

	r := mux.NewRouter()
	r.HandleFunc("/stat", func(w http.ResponseWriter, req *http.Request) {
		statHandler(conn, startTime, w, req)
	}).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(conn.Metrics(), promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("serving debug http", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
	conn.Close(mysqlconn.CloseExplicit)
}

func statHandler(conn *mysqlconn.Connection, startTime time.Time, w http.ResponseWriter, _ *http.Request) {
	if err := conn.Ping(); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{
			"alive": false,
			"error": err.Error(),
		})
		return
	}

	stat, err := conn.Stat()
	if err != nil {
		stat = ""
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"alive":          true,
		"uptime_seconds": int(time.Since(startTime).Seconds()),
		"thread_id":      conn.ThreadID(),
		"server_version": conn.ServerVersion(),
		"host_info":      conn.HostInfo(),
		"charset":        conn.CharsetName(),
		"server_stat":    stat,
		"state":          conn.State().String(),
	})
}
