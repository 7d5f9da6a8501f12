// Command ipfs-sandbox runs a local emulator of the node HTTP API backed by
// the in-memory mock node. It exists so SDK consumers can develop against
// the /api/v0 surface without a running daemon, optionally injecting
// latency and failures.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/KovaSystems/ipfs_sdk_go/internal/dlogger"
	"github.com/KovaSystems/ipfs_sdk_go/pkg/ipfs/mock"
)

type failConfig struct {
	rate float64
	code int
}

func main() {
	addr := flag.String("addr", ":5001", "listen address")
	seedPath := flag.String("seed", "", "path to JSON seed file for the mock node")
	latency := flag.Duration("latency", 0, "artificial latency to inject per request")
	fail := flag.String("fail", "", "failure injection (rate=<float>,code=<httpStatus>)")
	logLevel := flag.String("log-level", dlogger.LogLevelInfo, "log level (debug, info, none)")
	flag.Parse()

	logger := dlogger.MustGetLogger(*logLevel)
	defer logger.Sync()

	failCfg, err := parseFailConfig(*fail)
	if err != nil {
		logger.Fatal("parse -fail", zap.Error(err))
	}

	node := mock.New()
	if *seedPath != "" {
		entries, err := loadSeed(*seedPath)
		if err != nil {
			logger.Fatal("load seed", zap.Error(err))
		}
		cids, err := node.Seed(entries)
		if err != nil {
			logger.Fatal("apply seed", zap.Error(err))
		}
		logger.Info("seeded mock node", zap.Int("objects", len(cids)), zap.Strings("cids", cids))
	}

	handler := withInjection(*latency, failCfg, newHandler(node, logger))
	logger.Info("sandbox listening", zap.String("addr", *addr))
	if err := http.ListenAndServe(*addr, handler); err != nil {
		logger.Fatal("serve", zap.Error(err))
	}
}

func parseFailConfig(raw string) (*failConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	cfg := &failConfig{code: http.StatusInternalServerError}
	for _, part := range strings.Split(raw, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("bad segment %q", part)
		}
		switch kv[0] {
		case "rate":
			rate, err := strconv.ParseFloat(kv[1], 64)
			if err != nil || rate < 0 || rate > 1 {
				return nil, fmt.Errorf("bad rate %q", kv[1])
			}
			cfg.rate = rate
		case "code":
			code, err := strconv.Atoi(kv[1])
			if err != nil || code < 400 || code > 599 {
				return nil, fmt.Errorf("bad code %q", kv[1])
			}
			cfg.code = code
		default:
			return nil, fmt.Errorf("unknown key %q", kv[0])
		}
	}
	return cfg, nil
}

func loadSeed(path string) ([]mock.SeedEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []mock.SeedEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return entries, nil
}

func withInjection(latency time.Duration, fail *failConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if latency > 0 {
			time.Sleep(latency)
		}
		if fail != nil && rand.Float64() < fail.rate {
			writeNodeError(w, fail.code, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func newHandler(node *mock.Node, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v0/add", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeNodeError(w, http.StatusBadRequest, err.Error())
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			writeNodeError(w, http.StatusBadRequest, "file argument required")
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			writeNodeError(w, http.StatusBadRequest, err.Error())
			return
		}
		pin := r.URL.Query().Get("pin") != "false"
		cid, err := node.Add(r.Context(), data, pin)
		if err != nil {
			writeNodeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		logger.Debug("add", zap.String("cid", cid), zap.Int("bytes", len(data)), zap.Bool("pin", pin))
		writeJSON(w, map[string]string{
			"Name": cid,
			"Hash": cid,
			"Size": strconv.Itoa(len(data)),
		})
	})

	mux.HandleFunc("/api/v0/cat", func(w http.ResponseWriter, r *http.Request) {
		data, err := node.Cat(r.Context(), r.URL.Query().Get("arg"))
		if err != nil {
			writeNodeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write(data)
	})

	mux.HandleFunc("/api/v0/pin/add", func(w http.ResponseWriter, r *http.Request) {
		cid := r.URL.Query().Get("arg")
		if err := node.PinAdd(r.Context(), cid); err != nil {
			writeNodeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, map[string][]string{"Pins": {cid}})
	})

	mux.HandleFunc("/api/v0/pin/rm", func(w http.ResponseWriter, r *http.Request) {
		cid := r.URL.Query().Get("arg")
		if err := node.PinRm(r.Context(), cid); err != nil {
			writeNodeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, map[string][]string{"Pins": {cid}})
	})

	mux.HandleFunc("/api/v0/pin/ls", func(w http.ResponseWriter, r *http.Request) {
		cids, err := node.PinLs(r.Context())
		if err != nil {
			writeNodeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		keys := make(map[string]map[string]string, len(cids))
		for _, cid := range cids {
			keys[cid] = map[string]string{"Type": "recursive"}
		}
		writeJSON(w, map[string]any{"Keys": keys})
	})

	mux.HandleFunc("/api/v0/stats/bw", func(w http.ResponseWriter, r *http.Request) {
		stats, err := node.StatsBW(r.Context())
		if err != nil {
			writeNodeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, stats)
	})

	mux.HandleFunc("/api/v0/id", func(w http.ResponseWriter, r *http.Request) {
		identity, err := node.ID(r.Context())
		if err != nil {
			writeNodeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, identity)
	})

	mux.HandleFunc("/api/v0/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"Version": "0.1.0-sandbox"})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeNodeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"Message": message,
		"Code":    0,
		"Type":    "error",
	})
}
