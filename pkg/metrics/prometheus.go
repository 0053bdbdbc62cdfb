// Package metrics exposes an optional Prometheus registry for the Master
// process, adapted from the teacher's per-service metrics registries but
// narrowed to the counters/gauges a turn-coordination game actually needs.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// GameMetrics holds every metric Master emits over the life of one game.
type GameMetrics struct {
	MovesTotal          *prometheus.CounterVec
	ActivePlayers       prometheus.Gauge
	BlockedPlayersTotal prometheus.Gauge
	ViewHandshakesTotal prometheus.Counter
	GameDurationSeconds prometheus.Gauge
	GamesStartedTotal   prometheus.Counter
	GamesFinishedTotal  *prometheus.CounterVec
}

// NewGameMetrics constructs and registers the metrics under namespace
// "chompchamps".
func NewGameMetrics() *GameMetrics {
	const ns = "chompchamps"
	return &GameMetrics{
		MovesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "moves_total",
			Help:      "Moves processed by Master, labeled by player and result.",
		}, []string{"player", "result"}), // result: valid, invalid, eof
		ActivePlayers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "active_players",
			Help:      "Number of non-blocked players right now.",
		}),
		BlockedPlayersTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "blocked_players",
			Help:      "Number of blocked players right now.",
		}),
		ViewHandshakesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "view_handshakes_total",
			Help:      "Completed master_to_view/view_to_master handshakes.",
		}),
		GameDurationSeconds: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "game_duration_seconds",
			Help:      "Wall-clock seconds the current/last game has run.",
		}),
		GamesStartedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "games_started_total",
			Help:      "Number of games this Master process has started.",
		}),
		GamesFinishedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "games_finished_total",
			Help:      "Games finished, labeled by termination reason.",
		}, []string{"reason"}), // reason: no_legal_move, timeout, all_blocked
	}
}

// Server serves /metrics and /healthz for an optional out-of-band monitor.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer builds a metrics HTTP server bound to addr (e.g. ":9090").
func NewServer(addr string, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	return &Server{
		httpServer: &http.Server{Addr: addr, Handler: mux},
		logger:     logger,
	}
}

// Start runs the server until it errors or is shut down. Intended to be
// called from a goroutine.
func (s *Server) Start() error {
	s.logger.Info("starting metrics server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
