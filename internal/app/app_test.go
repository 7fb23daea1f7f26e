package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"lending-regime-advisor/internal/attest"
	"lending-regime-advisor/internal/config"
	"lending-regime-advisor/internal/metrics"
	"lending-regime-advisor/internal/model"
	"lending-regime-advisor/internal/report"
	"lending-regime-advisor/internal/source"
	"lending-regime-advisor/internal/state"
	"lending-regime-advisor/internal/state/sqlite"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

type fakeFetcher struct {
	snaps []model.Snapshot
	errs  []error
	calls int
	urls  []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (model.Snapshot, error) {
	i := f.calls
	f.calls++
	f.urls = append(f.urls, url)
	if i < len(f.errs) && f.errs[i] != nil {
		return model.Snapshot{}, f.errs[i]
	}
	if i >= len(f.snaps) {
		i = len(f.snaps) - 1
	}
	return f.snaps[i], nil
}

type recordingNotifier struct {
	messages []string
	err      error
}

func (n *recordingNotifier) Send(_ context.Context, message string) error {
	n.messages = append(n.messages, message)
	return n.err
}

type recordingPublisher struct {
	reports []report.Report
}

func (p *recordingPublisher) Publish(r report.Report) {
	p.reports = append(p.reports, r)
}

func snapshot(btcDom, tvl, cex, dex float64, usdt, usdc string) model.Snapshot {
	return model.Snapshot{
		BTCDominancePct: btcDom,
		DefiTVLUSD:      tvl,
		CEXVolume24hBTC: cex,
		DEXVolume24hBTC: dex,
		Stablecoins: []model.PegQuote{
			{Symbol: "usdt", Deviation: usdt},
			{Symbol: "usdc", Deviation: usdc},
		},
		Timestamp: "2025-09-01T12:00:00.000Z",
	}
}

var (
	riskOff  = snapshot(58, 90e9, 90000, 2000, "0.1%", "0.05%")
	activity = snapshot(42, 230e9, 30000, 15000, "0.02%", "0.01%")
)

func newTestApp(t *testing.T, fetcher Fetcher) (*App, *sqlite.Store, *metrics.Prometheus, *recordingNotifier, *recordingPublisher) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	cfg := config.Default()
	cfg.Source.URL = "https://example.test/api/all-metrics"
	prom := metrics.NewPrometheus()
	notifier := &recordingNotifier{}
	publisher := &recordingPublisher{}
	clock := time.Date(2025, 9, 1, 12, 5, 0, 0, time.UTC)
	app := &App{
		cfg:       cfg,
		log:       zap.NewNop(),
		fetcher:   fetcher,
		store:     store,
		metrics:   prom.Metrics,
		alerts:    notifier,
		publisher: publisher,
		now: func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		},
	}
	return app, store, prom, notifier, publisher
}

func TestRecommend(t *testing.T) {
	fetcher := &fakeFetcher{snaps: []model.Snapshot{riskOff}}
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	r, err := Recommend(context.Background(), fetcher, "https://example.test", model.DefaultParams(), now)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if r.Suggestion != model.SuggestionConservative || r.Confidence != 1 {
		t.Fatalf("expected CONSERVATIVE with confidence 1, got %s %v", r.Suggestion, r.Confidence)
	}
	if r.Timestamp != "2025-09-01T12:00:00Z" || r.SourceAPI != "https://example.test" || r.InputTimestamp != riskOff.Timestamp {
		t.Fatalf("unexpected report metadata %+v", r)
	}
	if fetcher.urls[0] != "https://example.test" {
		t.Fatalf("expected fetch of given url, got %v", fetcher.urls)
	}
}

func TestRecommendPropagatesErrorKinds(t *testing.T) {
	fetchErr := fmt.Errorf("%w: http 500: boom", source.ErrFetch)
	_, err := Recommend(context.Background(), &fakeFetcher{errs: []error{fetchErr}}, "u", model.DefaultParams(), time.Now())
	if !errors.Is(err, source.ErrFetch) {
		t.Fatalf("expected fetch error, got %v", err)
	}

	bad := riskOff
	bad.Stablecoins = []model.PegQuote{{Symbol: "usdt", Deviation: "abc"}}
	_, err = Recommend(context.Background(), &fakeFetcher{snaps: []model.Snapshot{bad}}, "u", model.DefaultParams(), time.Now())
	if !errors.Is(err, model.ErrSchema) {
		t.Fatalf("expected schema error, got %v", err)
	}
}

func TestPollStoresPublishesAndAlertsOnChange(t *testing.T) {
	fetcher := &fakeFetcher{snaps: []model.Snapshot{riskOff, riskOff, activity}}
	app, store, prom, notifier, publisher := newTestApp(t, fetcher)
	ctx := context.Background()

	first, err := app.Poll(ctx)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if !strings.HasPrefix(first.Attestation, "0x") || len(first.Attestation) != 66 {
		t.Fatalf("expected keccak hex attestation, got %q", first.Attestation)
	}
	if _, err := app.Poll(ctx); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(notifier.messages) != 1 {
		t.Fatalf("expected one alert for an unchanged suggestion, got %d", len(notifier.messages))
	}
	if _, err := app.Poll(ctx); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(notifier.messages) != 2 || !strings.Contains(notifier.messages[1], "CONSERVATIVE -> ACTIVITY") {
		t.Fatalf("expected change alert, got %v", notifier.messages)
	}

	reports, err := store.RecentReports(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(reports) != 3 || reports[0].Suggestion != model.SuggestionActivity {
		t.Fatalf("expected 3 reports newest first, got %d", len(reports))
	}
	if len(publisher.reports) != 3 {
		t.Fatalf("expected 3 published reports, got %d", len(publisher.reports))
	}
	last, ok, err := state.LoadLastSuggestion(ctx, store)
	if err != nil || !ok || last.Suggestion != "ACTIVITY" {
		t.Fatalf("expected last suggestion ACTIVITY, got %+v ok=%v err=%v", last, ok, err)
	}
	if got := testutil.ToFloat64(counterOf(prom.Metrics.Evaluations)); got != 3 {
		t.Fatalf("expected 3 evaluations, got %v", got)
	}
}

func TestPollSignsAttestation(t *testing.T) {
	app, _, _, _, _ := newTestApp(t, &fakeFetcher{snaps: []model.Snapshot{riskOff}})
	signer, err := attest.NewSigner("0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	app.signer = signer
	r, err := app.Poll(context.Background())
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	addr, err := attest.Recover(common.HexToHash(r.Attestation), r.Signature)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if addr != signer.Address() {
		t.Fatalf("expected signer %s, got %s", signer.Address().Hex(), addr.Hex())
	}
}

func TestPollCountsFailures(t *testing.T) {
	bad := riskOff
	bad.DefiTVLUSD = -1
	fetcher := &fakeFetcher{
		snaps: []model.Snapshot{riskOff, bad},
		errs:  []error{fmt.Errorf("%w: timeout", source.ErrFetch)},
	}
	app, store, prom, notifier, publisher := newTestApp(t, fetcher)
	ctx := context.Background()

	if _, err := app.Poll(ctx); !errors.Is(err, source.ErrFetch) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if _, err := app.Poll(ctx); !errors.Is(err, model.ErrSchema) {
		t.Fatalf("expected schema error, got %v", err)
	}
	if got := testutil.ToFloat64(counterOf(prom.Metrics.FetchFailed)); got != 1 {
		t.Fatalf("expected 1 fetch failure, got %v", got)
	}
	if got := testutil.ToFloat64(counterOf(prom.Metrics.SchemaRejected)); got != 1 {
		t.Fatalf("expected 1 schema rejection, got %v", got)
	}
	if _, ok, _ := store.LatestReport(ctx); ok {
		t.Fatalf("expected no stored report after failures")
	}
	if len(notifier.messages) != 0 || len(publisher.reports) != 0 {
		t.Fatalf("expected no alerts or publications after failures")
	}
}

func TestPollAlertFailureIsCounted(t *testing.T) {
	app, _, prom, notifier, _ := newTestApp(t, &fakeFetcher{snaps: []model.Snapshot{activity}})
	notifier.err = errors.New("telegram down")
	if _, err := app.Poll(context.Background()); err != nil {
		t.Fatalf("poll should not fail on alert errors: %v", err)
	}
	if got := testutil.ToFloat64(counterOf(prom.Metrics.AlertsFailed)); got != 1 {
		t.Fatalf("expected 1 alert failure, got %v", got)
	}
}

func TestNewRequiresSourceURL(t *testing.T) {
	cfg := config.Default()
	cfg.Source.URL = ""
	if _, err := New(cfg, zap.NewNop()); err == nil {
		t.Fatalf("expected error without source url")
	}
}

func counterOf(c metrics.Counter) prometheus.Collector {
	return c.(prometheus.Counter)
}
