package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/webmrelay/webmrelay/internal/certs"
	"github.com/webmrelay/webmrelay/internal/relay"
	"github.com/webmrelay/webmrelay/metrics"
	"github.com/webmrelay/webmrelay/transport"
)

var version = "dev"

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	tcpAddr := envOr("TCP_ADDR", ":9000")
	httpAddr := envOr("HTTP_ADDR", ":8080")

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	a := &app{
		set:       &relay.Set{},
		metrics:   m,
		lastBytes: make(map[string]uint64),
		lastStats: make(map[string]relay.Stats),
	}
	a.set.OnStreamClose = a.handleStreamClose
	a.set.OnStreamTrackInfo = a.handleTrackInfo

	slog.Info("webmrelayd starting", "version", version, "tcp", tcpAddr, "http", httpAddr)

	g, ctx := errgroup.WithContext(ctx)

	ingest := &transport.TCPIngest{
		Addr:         tcpAddr,
		Set:          a.set,
		OnConnect:    a.handleProducerConnect,
		OnDisconnect: a.handleProducerDisconnect,
	}
	g.Go(func() error { return ingest.ListenAndServe(ctx) })

	mux := http.NewServeMux()
	mux.Handle("GET /live/{key}", &transport.LiveHandler{
		Set:            a.set,
		KeyFromRequest: keyFromPath,
		OnBytesOut:     func(n int) { m.BytesOutTotal.Add(float64(n)) },
	})
	mux.Handle("GET /ws/{key}", &transport.WSHandler{
		Set:            a.set,
		KeyFromRequest: keyFromPath,
		OnBytesOut:     func(n int) { m.BytesOutTotal.Add(float64(n)) },
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /streams", a.handleStreams)

	httpSrv := &http.Server{Addr: httpAddr, Handler: mux}

	if os.Getenv("TLS_SELFSIGNED") != "" {
		cert, err := certs.Generate(90 * 24 * time.Hour)
		if err != nil {
			slog.Error("failed to generate self-signed certificate", "error", err)
			os.Exit(1)
		}
		slog.Info("using self-signed certificate", "fingerprint", cert.FingerprintBase64(), "expires", cert.NotAfter.Format(time.RFC3339))
		httpSrv.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert.TLSCert}}
	}

	g.Go(func() error {
		slog.Info("HTTP server listening", "addr", httpAddr, "tls", httpSrv.TLSConfig != nil)
		var err error
		if httpSrv.TLSConfig != nil {
			err = httpSrv.ListenAndServeTLS("", "")
		} else {
			err = httpSrv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	g.Go(func() error { return a.runReaper(ctx) })
	g.Go(func() error { return a.runTicker(ctx) })

	if err := g.Wait(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

type app struct {
	set     *relay.Set
	metrics *metrics.Metrics

	mu        sync.Mutex
	lastBytes map[string]uint64
	lastStats map[string]relay.Stats
}

func (a *app) handleProducerConnect(key, remoteAddr string) {
	slog.Info("producer connected", "key", key, "remote", remoteAddr)
}

func (a *app) handleProducerDisconnect(key string, err error) {
	if err != nil {
		slog.Warn("producer disconnected", "key", key, "error", err)
		a.metrics.FatalErrorsTotal.WithLabelValues(errorLabel(err)).Inc()
		return
	}
	slog.Info("producer disconnected", "key", key)
}

func (a *app) handleStreamClose(key string) {
	slog.Info("stream closed", "key", key)
	a.mu.Lock()
	delete(a.lastBytes, key)
	delete(a.lastStats, key)
	a.mu.Unlock()
}

func (a *app) handleTrackInfo(key string, info relay.TrackInfo) {
	slog.Info("track info changed", "key", key,
		"hasVideo", info.HasVideo, "width", info.Width, "height", info.Height,
		"hasAudio", info.HasAudio)
}

func (a *app) runReaper(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.set.Reap()
		}
	}
}

func (a *app) runTicker(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.collectStats()
		}
	}
}

func (a *app) collectStats() {
	var subs int
	for _, key := range a.set.Keys() {
		b, ok := a.set.Readable(key)
		if !ok {
			continue
		}
		stats := b.Tick()
		subs += stats.Subscribers
		a.addBytesInDelta(key, stats.BytesIn)
		a.set.NoteTrackInfo(key, b.TrackInfo())

		a.mu.Lock()
		a.lastStats[key] = stats
		a.mu.Unlock()
	}
	a.metrics.Subscribers.Set(float64(subs))
}

// streamStats returns the most recent Tick snapshot for key, computed on
// the once-a-second ticker rather than on demand, since Broadcast.Tick
// mutates the ingest-rate EWMA and must only ever be called on a steady
// cadence.
func (a *app) streamStats(key string) relay.Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastStats[key]
}

func (a *app) addBytesInDelta(key string, total uint64) {
	a.mu.Lock()
	prev := a.lastBytes[key]
	a.lastBytes[key] = total
	a.mu.Unlock()

	if total > prev {
		a.metrics.BytesInTotal.Add(float64(total - prev))
	}
}

type streamSummary struct {
	Key         string `json:"key"`
	Subscribers int    `json:"subscribers"`
	HasAudio    bool   `json:"hasAudio"`
	HasVideo    bool   `json:"hasVideo"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
}

func (a *app) handleStreams(w http.ResponseWriter, r *http.Request) {
	out := []streamSummary{}
	for _, key := range a.set.Keys() {
		b, ok := a.set.Readable(key)
		if !ok {
			continue
		}
		info := b.TrackInfo()
		stats := a.streamStats(key)
		out = append(out, streamSummary{
			Key:         key,
			Subscribers: stats.Subscribers,
			HasAudio:    info.HasAudio,
			HasVideo:    info.HasVideo,
			Width:       info.Width,
			Height:      info.Height,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func keyFromPath(r *http.Request) string {
	return r.PathValue("key")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func errorLabel(err error) string {
	switch {
	case errors.Is(err, relay.ErrTrackOverflow):
		return "track_overflow"
	case errors.Is(err, relay.ErrTagTooLarge):
		return "tag_too_large"
	case errors.Is(err, relay.ErrUnknownTag):
		return "unknown_tag"
	case errors.Is(err, relay.ErrMalformedEBML):
		return "malformed_ebml"
	case errors.Is(err, relay.ErrBadTimecodeScale):
		return "bad_timecode_scale"
	case errors.Is(err, relay.ErrDurationTooLarge):
		return "duration_too_large"
	default:
		return "other"
	}
}
