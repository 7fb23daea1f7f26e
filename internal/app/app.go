package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lending-regime-advisor/internal/alerts"
	"lending-regime-advisor/internal/attest"
	"lending-regime-advisor/internal/config"
	"lending-regime-advisor/internal/metrics"
	"lending-regime-advisor/internal/model"
	"lending-regime-advisor/internal/report"
	"lending-regime-advisor/internal/server"
	"lending-regime-advisor/internal/source"
	"lending-regime-advisor/internal/state"
	"lending-regime-advisor/internal/state/sqlite"
	"lending-regime-advisor/internal/timescale"

	"go.uber.org/zap"
)

// Fetcher retrieves one snapshot. *source.Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (model.Snapshot, error)
}

// Publisher receives every report the daemon produces.
type Publisher interface {
	Publish(r report.Report)
}

type reportStore interface {
	state.Store
	state.History
}

// Recommend fetches a snapshot from url and evaluates it with params. It is
// the whole one-shot pipeline; the CLI calls it directly.
func Recommend(ctx context.Context, fetcher Fetcher, url string, params model.Params, now time.Time) (report.Report, error) {
	if fetcher == nil {
		return report.Report{}, errors.New("fetcher is required")
	}
	snap, err := fetcher.Fetch(ctx, url)
	if err != nil {
		return report.Report{}, err
	}
	res, err := model.Evaluate(snap, params)
	if err != nil {
		return report.Report{}, err
	}
	return report.Build(res, snap, url, now), nil
}

type App struct {
	cfg       *config.Config
	log       *zap.Logger
	fetcher   Fetcher
	store     reportStore
	timescale *timescale.Writer
	metrics   *metrics.Metrics
	alerts    alerts.Notifier
	server    *server.Server
	publisher Publisher
	signer    *attest.Signer
	now       func() time.Time
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	if strings.TrimSpace(cfg.Source.URL) == "" {
		return nil, errors.New("source.url is required (or set METRICS_API)")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.State.SQLitePath), 0o755); err != nil {
		return nil, err
	}
	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		return nil, err
	}
	fetcher := source.New(cfg.Source.Timeout, log,
		source.WithStablecoins(cfg.Source.Stablecoins),
		source.WithRateLimit(cfg.Source.RatePerMinute),
		source.WithBreaker(cfg.Source.BreakerFailures, cfg.Source.BreakerCooldown),
	)
	var signer *attest.Signer
	if strings.TrimSpace(cfg.Attest.PrivateKey) != "" {
		signer, err = attest.NewSigner(cfg.Attest.PrivateKey)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("attest signer: %w", err)
		}
		log.Info("attestation signing enabled", zap.String("signer", signer.Address().Hex()))
	}
	writer, err := timescale.New(cfg.Timescale, log)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("timescale: %w", err)
	}

	m := metrics.NewNoop()
	opts := server.Options{
		MinConfidence: cfg.Attest.MinConfidence,
		MaxAge:        cfg.Attest.MaxAge,
	}
	if cfg.Metrics.EnabledValue() {
		prom := metrics.NewPrometheus()
		m = prom.Metrics
		opts.MetricsPath = cfg.Metrics.Path
		opts.MetricsHandler = prom.Handler()
	}
	srv := server.New(store, log, opts)
	return &App{
		cfg:       cfg,
		log:       log,
		fetcher:   fetcher,
		store:     store,
		timescale: writer,
		metrics:   m,
		alerts:    alerts.NewTelegram(cfg.Telegram, log),
		server:    srv,
		publisher: srv,
		signer:    signer,
		now:       time.Now,
	}, nil
}

// Handler exposes the daemon's HTTP surface.
func (a *App) Handler() http.Handler {
	if a.server == nil {
		return http.NotFoundHandler()
	}
	return a.server.Handler()
}

func (a *App) Run(ctx context.Context) error {
	defer a.close()
	a.timescale.Start(ctx)

	serverErr := make(chan error, 1)
	if a.server != nil && a.cfg.Server.Address != "" {
		go func() {
			serverErr <- a.server.Run(ctx, a.cfg.Server.Address)
		}()
	}

	a.log.Info("advisor started",
		zap.String("source", a.cfg.Source.URL),
		zap.Duration("poll_interval", a.cfg.Source.PollInterval),
	)
	a.pollAndLog(ctx)

	ticker := time.NewTicker(a.cfg.Source.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-serverErr:
			if err != nil {
				return fmt.Errorf("http server: %w", err)
			}
		case <-ticker.C:
			a.pollAndLog(ctx)
		}
	}
}

func (a *App) pollAndLog(ctx context.Context) {
	if _, err := a.Poll(ctx); err != nil && ctx.Err() == nil {
		a.log.Warn("poll failed", zap.Error(err))
	}
}

// Poll runs one evaluation and fans the report out to storage, subscribers
// and alerts. Fetch and schema failures are counted and returned; the
// previous report stays current.
func (a *App) Poll(ctx context.Context) (report.Report, error) {
	r, err := Recommend(ctx, a.fetcher, a.cfg.Source.URL, a.cfg.Model, a.now())
	if err != nil {
		switch {
		case errors.Is(err, model.ErrSchema):
			a.metrics.SchemaRejected.Inc()
		case errors.Is(err, source.ErrFetch):
			a.metrics.FetchFailed.Inc()
		}
		return report.Report{}, err
	}
	if err := a.attestReport(&r); err != nil {
		return report.Report{}, fmt.Errorf("attest: %w", err)
	}
	a.metrics.ObserveRecommendation(r.Recommendation)

	if a.store != nil {
		if err := a.store.SaveReport(ctx, r); err != nil {
			a.log.Warn("report save failed", zap.Error(err))
		}
	}
	if a.timescale != nil {
		row, err := timescale.RowFromReport(r)
		if err != nil {
			a.log.Warn("timescale row build failed", zap.Error(err))
		} else {
			a.timescale.Enqueue(row)
		}
	}
	if a.publisher != nil {
		a.publisher.Publish(r)
	}
	a.log.Info("recommendation",
		zap.String("suggestion", string(r.Suggestion)),
		zap.Float64("confidence", r.Confidence),
		zap.Float64("conservative", r.Scores.Conservative),
		zap.Float64("activity", r.Scores.Activity),
		zap.String("attestation", r.Attestation),
	)
	a.announce(ctx, r)
	return r, nil
}

func (a *App) attestReport(r *report.Report) error {
	digest, err := attest.Digest(*r)
	if err != nil {
		return err
	}
	r.Attestation = digest.Hex()
	if a.signer == nil {
		return nil
	}
	sig, err := a.signer.Sign(digest)
	if err != nil {
		return err
	}
	r.Signature = sig
	return nil
}

// announce alerts when the suggestion differs from the last one announced,
// then persists it so restarts do not repeat the alert.
func (a *App) announce(ctx context.Context, r report.Report) {
	if a.store == nil {
		return
	}
	last, ok, err := state.LoadLastSuggestion(ctx, a.store)
	if err != nil {
		a.log.Warn("last suggestion load failed", zap.Error(err))
	}
	if ok && last.Suggestion == string(r.Suggestion) {
		return
	}
	prev := ""
	if ok {
		prev = last.Suggestion
	}
	if a.alerts != nil {
		msg := alerts.SuggestionChanged(prev, r, attest.ShouldFollow(r, a.cfg.Attest.MinConfidence))
		if err := a.alerts.Send(ctx, msg); err != nil {
			a.metrics.AlertsFailed.Inc()
			a.log.Warn("alert send failed", zap.Error(err))
		}
	}
	computedAt, _ := r.ComputedAt()
	if err := state.SaveLastSuggestion(ctx, a.store, state.LastSuggestion{
		Suggestion:  string(r.Suggestion),
		Confidence:  r.Confidence,
		Attestation: r.Attestation,
		UpdatedAtMS: computedAt.UnixMilli(),
	}); err != nil {
		a.log.Warn("last suggestion save failed", zap.Error(err))
	}
}

func (a *App) close() {
	if a.timescale != nil {
		if err := a.timescale.Close(); err != nil {
			a.log.Warn("timescale close failed", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("store close failed", zap.Error(err))
		}
	}
}
