package storage

import (
	"context"
	"database/sql"
	"time"
)

// CachedRender is a last-known-good serialized entry sequence for one
// source URL.
type CachedRender struct {
	SourceURL  string
	Payload    string
	RenderedAt time.Time
}

// SaveRender stores the serialized sequence for a source URL,
// replacing any previous render for that URL, and refreshes the
// last-render date marker.
func (d *DB) SaveRender(ctx context.Context, sourceURL, payload string) error {
	if d.unavailable() {
		return ErrUnavailable
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := d.sql.ExecContext(ctx,
		"INSERT INTO renders(source_url, payload, rendered_at) VALUES(?,?,?) ON CONFLICT(source_url) DO UPDATE SET payload = excluded.payload, rendered_at = excluded.rendered_at",
		sourceURL, payload, now)
	if err != nil {
		return err
	}
	return d.setSetting(ctx, settingLastRenderAt, now)
}

// LoadRender returns the cached render for a source URL, or nil when
// none exists.
func (d *DB) LoadRender(ctx context.Context, sourceURL string) (*CachedRender, error) {
	if d.unavailable() {
		return nil, nil
	}
	var c CachedRender
	var renderedAt string
	err := d.sql.QueryRowContext(ctx,
		"SELECT source_url, payload, rendered_at FROM renders WHERE source_url = ?", sourceURL).
		Scan(&c.SourceURL, &c.Payload, &renderedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// Rows written by SaveRender use RFC3339; the column default is
	// SQLite's CURRENT_TIMESTAMP format.
	if t, perr := time.Parse(time.RFC3339, renderedAt); perr == nil {
		c.RenderedAt = t
	} else if t2, perr2 := time.Parse("2006-01-02 15:04:05", renderedAt); perr2 == nil {
		c.RenderedAt = t2
	}
	return &c, nil
}

// ClearRenders drops all cached renders.
func (d *DB) ClearRenders(ctx context.Context) error {
	if d.unavailable() {
		return ErrUnavailable
	}
	_, err := d.sql.ExecContext(ctx, "DELETE FROM renders")
	return err
}

// LastRenderAt returns the most recent successful render time across
// all sources, zero when never rendered.
func (d *DB) LastRenderAt(ctx context.Context) (time.Time, error) {
	if d.unavailable() {
		return time.Time{}, nil
	}
	v, err := d.getSetting(ctx, settingLastRenderAt)
	if err != nil || v == "" {
		return time.Time{}, err
	}
	t, perr := time.Parse(time.RFC3339, v)
	if perr != nil {
		return time.Time{}, nil
	}
	return t, nil
}
