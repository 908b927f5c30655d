// Command judger hosts the Grader behind two listeners: a length-
// prefixed TCP socket and a WebSocket endpoint, per spec.md §6's wire
// contract. Each accepted connection carries exactly one grading task
// and its event stream, start to finish.
package main

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/genuine-oj/judger/internal/grader"
	"github.com/genuine-oj/judger/internal/langreg"
	"github.com/genuine-oj/judger/internal/sandbox/executor"
	"github.com/genuine-oj/judger/internal/transport"
	"github.com/genuine-oj/judger/pkg/contextkey"
	"github.com/genuine-oj/judger/pkg/logger"
)

const defaultConfigPath = "configs/judger.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to grader config")
	tcpAddr := flag.String("tcp", "0.0.0.0:8701", "length-prefixed TCP listen address")
	httpAddr := flag.String("http", "0.0.0.0:8702", "WebSocket listen address")
	flag.Parse()

	if err := logger.Init(logger.Config{Level: "info", Format: "json", Service: "judger", Env: "production"}); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	cfg, err := grader.LoadConfig(*configPath)
	if err != nil {
		logger.Error(ctx, "load grader config failed", zap.Error(err))
		os.Exit(1)
	}

	registry, err := langreg.Load(cfg.LanguageRegistryPath)
	if err != nil {
		logger.Error(ctx, "load language registry failed", zap.Error(err))
		os.Exit(1)
	}

	exec := executor.NewProcessExecutor(cfg.SandboxHelperPath)
	g := grader.New(cfg, registry, exec)

	tcpListener, err := net.Listen("tcp", *tcpAddr)
	if err != nil {
		logger.Error(ctx, "init tcp listener failed", zap.Error(err))
		os.Exit(1)
	}

	if cfg.EventBusEnabled() {
		logger.Info(ctx, "event bus fan-out enabled", zap.Strings("brokers", cfg.EventBusBrokers), zap.String("topic", cfg.EventBusTopic))
	}

	mux := http.NewServeMux()
	upgrader := websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096}
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		handleWS(ctx, g, cfg, upgrader, w, r)
	})
	httpServer := &http.Server{
		Addr:         *httpAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // a grading task can run longer than a fixed write budget
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info(ctx, "tcp grader listener started", zap.String("addr", *tcpAddr))
		errCh <- serveTCP(ctx, g, cfg, tcpListener)
	}()
	go func() {
		logger.Info(ctx, "websocket grader listener started", zap.String("addr", *httpAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
			logger.Error(ctx, "listener stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(ctx, "shutdown signal received")
	}

	_ = tcpListener.Close()
	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdown); err != nil {
		logger.Error(ctx, "http server shutdown failed", zap.Error(err))
	}
}

func serveTCP(ctx context.Context, g *grader.Grader, cfg grader.Config, listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return err
		}
		go func() {
			if err := handleTCPConn(ctx, g, cfg, conn); err != nil {
				logger.Warn(ctx, "tcp connection handling failed", zap.Error(err))
			}
		}()
	}
}

// attachEventBus wraps sink with the Kafka fan-out when the operator
// configured a broker list and topic, so a final report reaches
// downstream consumers (a dashboard, a ranking job) that never attach
// to the TCP/WebSocket stream directly.
func attachEventBus(cfg grader.Config, taskID string, sink grader.EventSink) grader.EventSink {
	if !cfg.EventBusEnabled() {
		return sink
	}
	return transport.NewEventBusSink(transport.EventBusConfig{
		Brokers:      cfg.EventBusBrokers,
		Topic:        cfg.EventBusTopic,
		ClientID:     cfg.EventBusClientID,
		BatchTimeout: cfg.EventBusBatchTimeout(),
	}, taskID, sink)
}

func handleTCPConn(parent context.Context, g *grader.Grader, cfg grader.Config, conn net.Conn) error {
	ctx := context.WithValue(parent, contextkey.TraceID, uuid.NewString())

	var lenPrefix [4]byte
	if _, err := io.ReadFull(conn, lenPrefix[:]); err != nil {
		_ = conn.Close()
		return err
	}
	size := binary.LittleEndian.Uint32(lenPrefix[:])

	body := make([]byte, size)
	if _, err := io.ReadFull(conn, body); err != nil {
		_ = conn.Close()
		return err
	}

	var task grader.Task
	if err := json.Unmarshal(body, &task); err != nil {
		_ = conn.Close()
		return fmt.Errorf("decode task: %w", err)
	}
	if task.TaskID == "" {
		task.TaskID = uuid.NewString()
	}

	sink := attachEventBus(cfg, task.TaskID, transport.NewTCPSink(conn))
	return g.Grade(ctx, task, sink)
}

func handleWS(parent context.Context, g *grader.Grader, cfg grader.Config, upgrader websocket.Upgrader, w http.ResponseWriter, r *http.Request) {
	ctx := context.WithValue(parent, contextkey.TraceID, uuid.NewString())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn(ctx, "websocket upgrade failed", zap.Error(err))
		return
	}

	_, body, err := conn.ReadMessage()
	if err != nil {
		logger.Warn(ctx, "websocket read task failed", zap.Error(err))
		_ = conn.Close()
		return
	}

	var task grader.Task
	if err := json.Unmarshal(body, &task); err != nil {
		logger.Warn(ctx, "websocket decode task failed", zap.Error(err))
		_ = conn.Close()
		return
	}
	if task.TaskID == "" {
		task.TaskID = uuid.NewString()
	}

	sink := attachEventBus(cfg, task.TaskID, transport.NewWSSink(conn))
	if err := g.Grade(ctx, task, sink); err != nil {
		logger.Warn(ctx, "grade task over websocket failed", zap.Error(err))
	}
}
