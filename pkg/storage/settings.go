package storage

import (
	"context"
	"database/sql"
)

func (d *DB) getSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := d.sql.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (d *DB) setSetting(ctx context.Context, key, value string) error {
	_, err := d.sql.ExecContext(ctx,
		"INSERT INTO settings(key, value) VALUES(?,?) ON CONFLICT(key) DO UPDATE SET value = excluded.value", key, value)
	return err
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func getSettingTx(ctx context.Context, q execQuerier, key string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func setSettingTx(ctx context.Context, q execQuerier, key, value string) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO settings(key, value) VALUES(?,?) ON CONFLICT(key) DO UPDATE SET value = excluded.value", key, value)
	return err
}

// LegacySheetURL returns the single-URL value stored by builds that
// predate profiles. Empty when absent.
func (d *DB) LegacySheetURL(ctx context.Context) (string, error) {
	if d.unavailable() {
		return "", nil
	}
	return d.getSetting(ctx, settingLegacySheetURL)
}

// SetLegacySheetURL stores the pre-profile single URL. Kept for the
// migration path and its tests.
func (d *DB) SetLegacySheetURL(ctx context.Context, url string) error {
	if d.unavailable() {
		return ErrUnavailable
	}
	return d.setSetting(ctx, settingLegacySheetURL, url)
}

// ClearLegacySheetURL removes the pre-profile single URL so a failed
// migration is not retried on every load.
func (d *DB) ClearLegacySheetURL(ctx context.Context) error {
	if d.unavailable() {
		return ErrUnavailable
	}
	_, err := d.sql.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", settingLegacySheetURL)
	return err
}
