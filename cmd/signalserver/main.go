// Command signalserver runs the matchmaking signaling server: a
// WebSocket rendezvous point that places connecting peers into rooms and
// relays their session-description and ICE signaling frames.
package main

import (
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Woolfer0097/signalmatch/internal/protocol"
	"github.com/Woolfer0097/signalmatch/internal/signaling"
	"github.com/Woolfer0097/signalmatch/internal/transport"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	rdb := redis.NewClient(&redis.Options{
		Addr:     getenv("REDIS_ADDR", "localhost:6379"),
		Password: getenv("REDIS_PASSWORD", ""),
		DB:       0,
	})
	defer rdb.Close()

	registry := signaling.NewRegistry(logger)
	dir := signaling.NewRoomDirectory(rdb, logger)
	server := transport.NewServer(logger, registry, dir)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/webrtc", server.HandleSignaling)
	r.Get("/webrtc/*", server.HandleSignaling)

	r.Get("/api/rooms/{id}", func(w http.ResponseWriter, r *http.Request) {
		handleDescribeRoom(w, r, dir)
	})

	bindAddr := flag.String("addr", getenv("BIND_ADDR", "0.0.0.0:2053"), "bind address (default from BIND_ADDR)")
	flag.Parse()
	addr := *bindAddr
	logger.Info("matchmaking signaling server starting", zap.String("addr", addr))
	logger.Info("routes: GET /health, GET /webrtc[/{room}], GET /api/rooms/{id}")

	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func handleDescribeRoom(w http.ResponseWriter, r *http.Request, dir *signaling.RoomDirectory) {
	id := chi.URLParam(r, "id")
	snapshot, err := dir.Describe(r.Context(), protocol.RoomId(id))
	if err != nil {
		http.Error(w, "failed to read room", http.StatusInternalServerError)
		return
	}
	respondJSON(w, snapshot)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func respondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if strings.TrimSpace(val) == "" {
		return def
	}
	return val
}
