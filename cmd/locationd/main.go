// locationd is the live driver-location feed service. It consumes location
// updates from Kafka, mirrors the latest one per driver into Redis, and
// serves the feed snapshot over HTTP in the shape the resolver expects:
// {"alfreds": [...]}.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	goccy_json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"github.com/example/pickup-dispatch/internal/feed"
	"github.com/example/pickup-dispatch/internal/logging"
	"github.com/example/pickup-dispatch/internal/models"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "locationd_messages_consumed_total",
		Help: "Total driver location messages consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "locationd_messages_invalid_total",
		Help: "Total invalid messages received",
	})
	snapshotUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "locationd_snapshot_updates_total",
		Help: "Total successful snapshot updates",
	})
	snapshotErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "locationd_snapshot_errors_total",
		Help: "Total snapshot write errors",
	})
	feedRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "locationd_feed_requests_total",
		Help: "Total feed snapshot requests served",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, snapshotUpdates, snapshotErrors, feedRequests)
}

func main() {
	var metricsAddr, feedAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", ":2112", "address to serve prometheus metrics on")
	flag.StringVar(&feedAddr, "feed-addr", ":9091", "address to serve the location feed on")
	flag.Parse()

	logger := logging.New(os.Getenv("LOG_LEVEL"), "locationd")

	brokers := []string{"localhost:9092"}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = brokers[:0]
		for _, b := range strings.Split(v, ",") {
			if s := strings.TrimSpace(b); s != "" {
				brokers = append(brokers, s)
			}
		}
	}
	topic := envOr("KAFKA_TOPIC", "driver-locations")
	group := envOr("KAFKA_GROUP", "locationd")
	redisAddr := envOr("REDIS_ADDR", "localhost:6379")

	store := feed.NewSnapshotStore(redisAddr, os.Getenv("REDIS_PASSWORD"))

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := store.Ping(r.Context()); err != nil {
				http.Error(w, "redis not ready", 503)
				return
			}
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		logger.Info("metrics listening", "addr", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/drivers/locations", feedHandler(store, logger))
		logger.Info("feed listening", "addr", feedAddr)
		if err := http.ListenAndServe(feedAddr, mux); err != nil {
			logger.Error("feed server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, GroupID: group, MinBytes: 10e3, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
		_ = store.Close()
	}()

	logger.Info("consuming", "topic", topic, "brokers", brokers, "group", group)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down")
				return
			}
			logger.Error("kafka read", "error", err, "backoff", backoff.String())
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		msgsConsumed.Inc()

		var loc models.DriverLocation
		if err := goccy_json.Unmarshal(m.Value, &loc); err != nil {
			msgsInvalid.Inc()
			logger.Warn("invalid message", "error", err)
			continue
		}

		if err := updateSnapshotWithRetry(ctx, store, loc, 3, 200*time.Millisecond); err != nil {
			snapshotErrors.Inc()
			logger.Error("snapshot update failed", "driver_id", loc.ID, "error", err)
			continue
		}
		snapshotUpdates.Inc()
	}
}

// SnapshotUpserter is the subset of the snapshot store the consumer loop
// needs; tests substitute a fake.
type SnapshotUpserter interface {
	Upsert(ctx context.Context, loc models.DriverLocation) error
}

type snapshotReader interface {
	Snapshot(ctx context.Context) ([]models.DriverLocation, error)
}

// updateSnapshotWithRetry writes one location with retry/backoff. Updates are
// idempotent, so a retried write is safe.
func updateSnapshotWithRetry(ctx context.Context, store SnapshotUpserter, loc models.DriverLocation, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = store.Upsert(ctx, loc); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		time.Sleep(delay)
		delay *= 2
	}
	return err
}

func feedHandler(store snapshotReader, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		feedRequests.Inc()
		locations, err := store.Snapshot(r.Context())
		if err != nil {
			logger.Error("snapshot read", "error", err)
			http.Error(w, "snapshot unavailable", http.StatusServiceUnavailable)
			return
		}
		if locations == nil {
			locations = []models.DriverLocation{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := goccy_json.NewEncoder(w).Encode(map[string]any{"alfreds": locations}); err != nil {
			logger.Error("encode snapshot", "error", err)
		}
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
