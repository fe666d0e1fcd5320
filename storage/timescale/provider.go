// Package timescale implements the query engine's raw-sample provider on
// top of a TimescaleDB (or plain PostgreSQL) hypertable. One row per
// sample: tag id, timestamp, numeric and text payloads, quality.
package timescale

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"github.com/c360/tagkit/errors"
	"github.com/c360/tagkit/query"
	"github.com/c360/tagkit/tag"
)

// DefaultTable is the sample table used unless WithTable overrides it.
const DefaultTable = "tag_samples"

// DefaultReadConcurrency bounds how many per-tag queries a single ReadRaw
// runs in parallel.
const DefaultReadConcurrency = 4

// Provider reads raw samples from PostgreSQL. It is safe for concurrent
// use; the underlying *sql.DB pools connections.
type Provider struct {
	db          *sql.DB
	table       string
	concurrency int
}

// Option configures a Provider.
type Option func(*Provider)

// WithTable overrides the sample table name. An empty name keeps the
// default.
func WithTable(name string) Option {
	return func(p *Provider) {
		if name != "" {
			p.table = name
		}
	}
}

// WithReadConcurrency bounds parallel per-tag queries within one ReadRaw.
// Values below one keep the default.
func WithReadConcurrency(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// New wraps an existing database handle. The caller keeps ownership of
// the handle.
func New(db *sql.DB, opts ...Option) *Provider {
	p := &Provider{db: db, table: DefaultTable, concurrency: DefaultReadConcurrency}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Open connects to PostgreSQL with the given connection string and
// verifies connectivity. Close releases the connection pool.
func Open(ctx context.Context, connStr string, opts ...Option) (*Provider, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, errors.Wrap(err, "Provider", "Open", "opening database")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.WrapUnavailable(err, "Provider", "Open", "verifying connectivity")
	}
	p := New(db, opts...)
	return p, nil
}

// Close releases the connection pool. Only call it when the Provider
// owns the handle, that is when it came from Open.
func (p *Provider) Close() error {
	return p.db.Close()
}

// ReadRaw implements query.RawProvider. Tags are fetched in parallel up
// to the configured concurrency; samples come back per tag in increasing
// timestamp order. Under the Outside boundary policy the nearest sample
// on each side of the range is included when one exists.
func (p *Provider) ReadRaw(ctx context.Context, req query.RawRequest) (map[string][]tag.Value, error) {
	if err := errors.FromContext(ctx, "Provider", "ReadRaw"); err != nil {
		return nil, err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	var mu sync.Mutex
	out := make(map[string][]tag.Value, len(req.TagIDs))
	for _, id := range req.TagIDs {
		g.Go(func() error {
			samples, err := p.readTag(ctx, id, req)
			if err != nil {
				return err
			}
			if len(samples) > 0 {
				mu.Lock()
				out[id] = samples
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// readTag fetches one tag's samples. The Outside policy adds one
// UNION ALL arm per side selecting the single nearest row beyond the
// boundary.
func (p *Provider) readTag(ctx context.Context, tagID string, req query.RawRequest) ([]tag.Value, error) {
	table := pq.QuoteIdentifier(p.table)

	inside := fmt.Sprintf(`
        SELECT ts, numeric_value, text_value, quality
        FROM %s
        WHERE tag_id = $1 AND ts >= $2 AND ts <= $3
        ORDER BY ts`, table)
	if req.MaxSamplesPerTag > 0 {
		inside += fmt.Sprintf(" LIMIT %d", req.MaxSamplesPerTag)
	}

	q := inside
	if req.Boundary == query.Outside {
		q = fmt.Sprintf(`
        SELECT * FROM (
            (SELECT ts, numeric_value, text_value, quality
             FROM %s
             WHERE tag_id = $1 AND ts < $2
             ORDER BY ts DESC LIMIT 1)
            UNION ALL
            (%s)
            UNION ALL
            (SELECT ts, numeric_value, text_value, quality
             FROM %s
             WHERE tag_id = $1 AND ts > $3
             ORDER BY ts ASC LIMIT 1)
        ) samples ORDER BY ts`, table, inside, table)
	}

	rows, err := p.db.QueryContext(ctx, q, tagID, req.Start, req.End)
	if err != nil {
		return nil, errors.Wrap(err, "Provider", "ReadRaw", "querying samples for "+tagID)
	}
	defer rows.Close()

	var samples []tag.Value
	for rows.Next() {
		var (
			ts      time.Time
			numeric sql.NullFloat64
			text    sql.NullString
			quality int16
		)
		if err := rows.Scan(&ts, &numeric, &text, &quality); err != nil {
			return nil, errors.Wrap(err, "Provider", "ReadRaw", "scanning sample for "+tagID)
		}
		v := tag.Value{
			TagID:        tagID,
			Timestamp:    ts.UTC(),
			NumericValue: numeric.Float64,
			Quality:      tag.Quality(quality),
		}
		if text.Valid {
			v.TextValue = text.String
		}
		samples = append(samples, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "Provider", "ReadRaw", "iterating samples for "+tagID)
	}
	return samples, nil
}

// WriteSamples bulk-inserts samples in one transaction. Adapters that
// mirror live values into history use this alongside the hub.
func (p *Provider) WriteSamples(ctx context.Context, samples []tag.Value) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "Provider", "WriteSamples", "beginning transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (tag_id, ts, numeric_value, text_value, quality) VALUES ($1, $2, $3, $4, $5)",
		pq.QuoteIdentifier(p.table)))
	if err != nil {
		return errors.Wrap(err, "Provider", "WriteSamples", "preparing insert")
	}
	defer stmt.Close()

	for _, s := range samples {
		var text sql.NullString
		if s.TextValue != "" {
			text = sql.NullString{String: s.TextValue, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, s.TagID, s.Timestamp.UTC(), s.NumericValue, text, int16(s.Quality)); err != nil {
			return errors.Wrap(err, "Provider", "WriteSamples", "inserting sample for "+s.TagID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "Provider", "WriteSamples", "committing transaction")
	}
	return nil
}
