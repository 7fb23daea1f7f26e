package timescale

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"lending-regime-advisor/internal/config"
	"lending-regime-advisor/internal/report"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

// Row is one report flattened for the recommendations hypertable.
type Row struct {
	Time              time.Time
	Suggestion        string
	Confidence        float64
	ConservativeScore float64
	ActivityScore     float64
	RiskOff           float64
	OnchainActivity   float64
	PegStability      float64
	BTCDominancePct   float64
	DefiTVLUSD        float64
	DEXShare          float64
	PegWorstDevBps    float64
	Source            string
	InputTimestamp    string
	Attestation       string
}

func RowFromReport(r report.Report) (Row, error) {
	at, err := r.ComputedAt()
	if err != nil {
		return Row{}, err
	}
	return Row{
		Time:              at,
		Suggestion:        string(r.Suggestion),
		Confidence:        r.Confidence,
		ConservativeScore: r.Scores.Conservative,
		ActivityScore:     r.Scores.Activity,
		RiskOff:           r.Regime.RiskOff,
		OnchainActivity:   r.Regime.OnchainActivity,
		PegStability:      r.Regime.PegStability,
		BTCDominancePct:   r.BTCDominancePct,
		DefiTVLUSD:        r.DefiTVLUSD,
		DEXShare:          r.DEXShare,
		PegWorstDevBps:    r.PegWorstDevBps,
		Source:            r.SourceAPI,
		InputTimestamp:    r.InputTimestamp,
		Attestation:       r.Attestation,
	}, nil
}

type Writer struct {
	db      *sql.DB
	log     *zap.Logger
	schema  string
	rows    chan Row
	started atomic.Bool
	dropped atomic.Uint64
}

// New opens the database when enabled. A disabled config yields a nil
// *Writer, whose methods are all no-ops.
func New(cfg config.TimescaleConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("timescale dsn is required")
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	writer := &Writer{
		db:     db,
		log:    log,
		schema: schema,
		rows:   make(chan Row, queueSize),
	}
	if err := writer.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return writer, nil
}

func (w *Writer) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

// Enqueue never blocks; rows are dropped when the queue is full.
func (w *Writer) Enqueue(row Row) {
	if w == nil {
		return
	}
	select {
	case w.rows <- row:
	default:
		if w.dropped.Add(1) == 1 && w.log != nil {
			w.log.Warn("timescale queue full, dropping rows")
		}
	}
}

func (w *Writer) Dropped() uint64 {
	if w == nil {
		return 0
	}
	return w.dropped.Load()
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case row := <-w.rows:
			w.write(ctx, row)
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.db == nil {
		return errors.New("timescale db not initialized")
	}
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		suggestion TEXT NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		conservative_score DOUBLE PRECISION NOT NULL,
		activity_score DOUBLE PRECISION NOT NULL,
		risk_off DOUBLE PRECISION NOT NULL,
		onchain_activity DOUBLE PRECISION NOT NULL,
		peg_stability DOUBLE PRECISION NOT NULL,
		btc_dominance_pct DOUBLE PRECISION NOT NULL,
		defi_tvl_usd DOUBLE PRECISION NOT NULL,
		dex_share DOUBLE PRECISION NOT NULL,
		peg_worst_dev_bps DOUBLE PRECISION NOT NULL,
		source TEXT NOT NULL,
		input_ts TEXT NOT NULL DEFAULT '',
		attestation TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (ts, source)
	)`, w.table("recommendations"))); err != nil {
		return err
	}
	if err := w.exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb"); err != nil {
		if w.log != nil {
			w.log.Warn("timescale extension ensure failed", zap.Error(err))
		}
		return nil
	}
	if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("recommendations"))); err != nil && w.log != nil {
		w.log.Warn("timescale recommendations hypertable create failed", zap.Error(err))
	}
	return nil
}

func (w *Writer) write(ctx context.Context, row Row) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if _, err := w.db.ExecContext(ctx, insertQuery(w.table("recommendations")), rowArgs(row)...); err != nil && w.log != nil {
		w.log.Warn("timescale recommendation upsert failed", zap.Error(err))
	}
}

func insertQuery(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (
		ts, suggestion, confidence, conservative_score, activity_score, risk_off, onchain_activity,
		peg_stability, btc_dominance_pct, defi_tvl_usd, dex_share, peg_worst_dev_bps, source, input_ts, attestation
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
	)
	ON CONFLICT (ts, source) DO UPDATE SET
		suggestion = EXCLUDED.suggestion,
		confidence = EXCLUDED.confidence,
		conservative_score = EXCLUDED.conservative_score,
		activity_score = EXCLUDED.activity_score,
		attestation = EXCLUDED.attestation`, table)
}

func rowArgs(row Row) []any {
	return []any{
		row.Time,
		row.Suggestion,
		row.Confidence,
		row.ConservativeScore,
		row.ActivityScore,
		row.RiskOff,
		row.OnchainActivity,
		row.PegStability,
		row.BTCDominancePct,
		row.DefiTVLUSD,
		row.DEXShare,
		row.PegWorstDevBps,
		row.Source,
		row.InputTimestamp,
		row.Attestation,
	}
}

func (w *Writer) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *Writer) table(name string) string {
	return w.schema + "." + name
}
