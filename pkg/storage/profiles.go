package storage

import (
	"context"
	"database/sql"
	"time"
)

// ListProfiles returns all profiles. Order is stable for display but
// carries no meaning; callers wanting recency sort by LastUsed.
func (d *DB) ListProfiles(ctx context.Context) ([]Profile, error) {
	if d.unavailable() {
		return nil, nil
	}
	rows, err := d.sql.QueryContext(ctx, "SELECT id, url, unit_name, stake_name, last_used FROM profiles ORDER BY rowid")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProfile returns the profile with the given id, or nil.
func (d *DB) GetProfile(ctx context.Context, id string) (*Profile, error) {
	if d.unavailable() {
		return nil, nil
	}
	row := d.sql.QueryRowContext(ctx, "SELECT id, url, unit_name, stake_name, last_used FROM profiles WHERE id = ?", id)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertProfile finds a profile by exact URL and updates its name
// fields and LastUsed, or creates a new one. Empty name arguments
// keep whatever was stored before. The profile always becomes the
// selected one.
func (d *DB) UpsertProfile(ctx context.Context, url, unitName, stakeName string) (*Profile, error) {
	if d.unavailable() {
		return nil, ErrUnavailable
	}
	now := time.Now()

	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx, "SELECT id, url, unit_name, stake_name, last_used FROM profiles WHERE url = ?", url)
	existing, err := scanProfile(row)

	var p Profile
	switch err {
	case nil:
		p = existing
		if unitName != "" {
			p.UnitName = unitName
		}
		if stakeName != "" {
			p.StakeName = stakeName
		}
		p.LastUsed = now
		if _, err = tx.ExecContext(ctx, "UPDATE profiles SET unit_name = ?, stake_name = ?, last_used = ? WHERE id = ?",
			p.UnitName, p.StakeName, p.LastUsed.UnixMilli(), p.ID); err != nil {
			return nil, err
		}
	case sql.ErrNoRows:
		err = nil
		p = Profile{ID: newProfileID(), URL: url, UnitName: unitName, StakeName: stakeName, LastUsed: now}
		if p.UnitName == "" {
			p.UnitName = DefaultUnitName
		}
		if p.StakeName == "" {
			p.StakeName = DefaultStakeName
		}
		if _, err = tx.ExecContext(ctx, "INSERT INTO profiles(id, url, unit_name, stake_name, last_used) VALUES(?,?,?,?,?)",
			p.ID, p.URL, p.UnitName, p.StakeName, p.LastUsed.UnixMilli()); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if err = setSettingTx(ctx, tx, settingSelectedProfile, p.ID); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return &p, nil
}

// RemoveProfile deletes a profile by id. If it was selected, the
// remaining profile with the greatest LastUsed becomes selected, or
// the selection is cleared when none remain.
func (d *DB) RemoveProfile(ctx context.Context, id string) error {
	if d.unavailable() {
		return ErrUnavailable
	}
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM profiles WHERE id = ?", id); err != nil {
		return err
	}

	selected, err := getSettingTx(ctx, tx, settingSelectedProfile)
	if err != nil {
		return err
	}
	if selected == id {
		var nextID string
		row := tx.QueryRowContext(ctx, "SELECT id FROM profiles ORDER BY last_used DESC LIMIT 1")
		switch err = row.Scan(&nextID); err {
		case nil:
			if err = setSettingTx(ctx, tx, settingSelectedProfile, nextID); err != nil {
				return err
			}
		case sql.ErrNoRows:
			err = nil
			if _, err = tx.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", settingSelectedProfile); err != nil {
				return err
			}
		default:
			return err
		}
	}

	return tx.Commit()
}

// SelectProfile sets the selection pointer. When the id resolves to
// an existing profile its LastUsed is refreshed.
func (d *DB) SelectProfile(ctx context.Context, id string) error {
	if d.unavailable() {
		return ErrUnavailable
	}
	if err := d.setSetting(ctx, settingSelectedProfile, id); err != nil {
		return err
	}
	_, err := d.sql.ExecContext(ctx, "UPDATE profiles SET last_used = ? WHERE id = ?", time.Now().UnixMilli(), id)
	return err
}

// GetSelected returns the active profile, or nil when none is
// selected or the pointer is dangling.
func (d *DB) GetSelected(ctx context.Context) (*Profile, error) {
	if d.unavailable() {
		return nil, nil
	}
	id, err := d.getSetting(ctx, settingSelectedProfile)
	if err != nil || id == "" {
		return nil, err
	}
	return d.GetProfile(ctx, id)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(r rowScanner) (Profile, error) {
	var p Profile
	var lastUsed int64
	if err := r.Scan(&p.ID, &p.URL, &p.UnitName, &p.StakeName, &lastUsed); err != nil {
		return Profile{}, err
	}
	p.LastUsed = time.UnixMilli(lastUsed)
	return p, nil
}
