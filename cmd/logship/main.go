// Command logship reads newline-delimited JSON log lines from stdin and
// ships them to the configured object-storage bucket. Lines that are not
// JSON objects are shipped as plain messages.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/logship/logship"
	"github.com/logship/logship/config"
	"github.com/logship/logship/internal/logging"
	"github.com/logship/logship/internal/metrics"
)

const shutdownGrace = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to YAML config file (default: environment)")
	flag.Parse()

	var cfg config.Config
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg = config.FromEnv()
		if err := cfg.Validate(); err != nil {
			slog.Error("invalid configuration", "error", err)
			os.Exit(1)
		}
	}

	logging.Setup(logging.Config{Format: cfg.Logging.Format, Level: cfg.Logging.Level})
	log := logging.Component("main")

	metrics.Init("logship")
	if cfg.Metrics.Enabled {
		go func() {
			log.Info("metrics server listening", "address", cfg.Metrics.Address)
			if err := metrics.StartServer(cfg.Metrics.Address); err != nil {
				log.Error("metrics server failed", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		sig := <-ch
		log.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	pipe, err := logship.Open(ctx, cfg)
	if err != nil {
		log.Error("failed to start pipeline", "error", err)
		os.Exit(1)
	}

	log.Info("shipping stdin",
		"backend", cfg.Storage.Backend,
		"bucket", cfg.Storage.Bucket,
		"prefix", cfg.Prefix,
		"flush_interval_ms", cfg.FlushIntervalMs,
	)

	readLines(ctx, pipe, os.Stdin)

	graceCtx, graceCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer graceCancel()
	if err := pipe.Close(graceCtx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	serializeDrops, uploadDrops := pipe.Dropped()
	log.Info("pipeline stopped", "dropped_serialize", serializeDrops, "dropped_upload", uploadDrops)
}

// readLines feeds the input into the pipeline until EOF or cancellation.
// Scanning happens on its own goroutine so a signal interrupts shutdown even
// while Scan is blocked on an idle stream; the reader goroutine is abandoned
// in that case and exits with the process.
func readLines(ctx context.Context, pipe *logship.Pipeline, r io.Reader) {
	lines := make(chan []byte, 64)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			slog.Warn("stdin read error", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			pipe.Emit(parseLine(line))
		}
	}
}

// parseLine maps a JSON log line onto a Record. Well-known keys become the
// record's level/message/target; everything else lands in fields, sorted
// for deterministic output. Non-JSON lines ship as the message verbatim.
func parseLine(line []byte) logship.Record {
	var obj map[string]any
	if err := json.Unmarshal(line, &obj); err != nil {
		return logship.NewRecord(logship.LevelInfo, "stdin", string(line))
	}

	level := logship.LevelInfo
	if v, ok := obj["level"].(string); ok {
		level = parseLevel(v)
		delete(obj, "level")
	}

	message := ""
	for _, key := range []string{"message", "msg"} {
		if v, ok := obj[key].(string); ok {
			message = v
			delete(obj, key)
			break
		}
	}

	target := "stdin"
	if v, ok := obj["target"].(string); ok {
		target = v
		delete(obj, "target")
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]logship.Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, logship.F(k, obj[k]))
	}

	return logship.NewRecord(level, target, message, fields...)
}

func parseLevel(s string) logship.Level {
	switch s {
	case "TRACE", "trace":
		return logship.LevelTrace
	case "DEBUG", "debug":
		return logship.LevelDebug
	case "WARN", "warn", "warning", "WARNING":
		return logship.LevelWarn
	case "ERROR", "error":
		return logship.LevelError
	default:
		return logship.LevelInfo
	}
}
