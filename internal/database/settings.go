package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/models"
)

// Settings are stored as one JSON document per key.

func (db *DB) getSetting(ctx context.Context, key string, dst any) (bool, error) {
	var raw string
	err := db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&raw)
	if err != nil {
		err = classify(fmt.Sprintf("get setting %s", key), err)
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("decode setting %s: %w", key, err)
	}
	return true, nil
}

func (db *DB) putSetting(ctx context.Context, key string, value any, overwrite bool) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode setting %s: %w", key, err)
	}
	query := `INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
              ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if !overwrite {
		query = `INSERT OR IGNORE INTO settings (key, value, updated_at) VALUES (?, ?, ?)`
	}
	if _, err := db.ExecContext(ctx, query, key, string(raw), unix(time.Now())); err != nil {
		return classify(fmt.Sprintf("put setting %s", key), err)
	}
	return nil
}

// GetBusinessHours returns the weekly rule. A missing document means no
// opening hours at all.
func (db *DB) GetBusinessHours(ctx context.Context) (models.BusinessHours, error) {
	var hours models.BusinessHours
	if _, err := db.getSetting(ctx, models.SettingBusinessHours, &hours); err != nil {
		return models.BusinessHours{}, err
	}
	return hours, nil
}

func (db *DB) SaveBusinessHours(ctx context.Context, hours models.BusinessHours) error {
	if _, err := hours.Location(); err != nil {
		return domain.Invalid("unknown time zone %q", hours.TimeZone)
	}
	for day, ranges := range hours.Days {
		for _, r := range ranges {
			if !r.Valid() {
				return domain.Invalid("invalid range %s-%s on %s", r.Open, r.Close, day)
			}
		}
	}
	return db.putSetting(ctx, models.SettingBusinessHours, hours, true)
}

func (db *DB) GetDayClosures(ctx context.Context) ([]models.DayClosure, error) {
	var closures []models.DayClosure
	if _, err := db.getSetting(ctx, models.SettingDayClosures, &closures); err != nil {
		return nil, err
	}
	return closures, nil
}

func (db *DB) SaveDayClosures(ctx context.Context, closures []models.DayClosure) error {
	for _, c := range closures {
		if err := models.ValidateDate(c.Date); err != nil {
			return domain.Invalid("closure: %v", err)
		}
		if c.EndDate != "" {
			if err := models.ValidateDate(c.EndDate); err != nil {
				return domain.Invalid("closure end: %v", err)
			}
		}
	}
	models.SortClosures(closures)
	return db.putSetting(ctx, models.SettingDayClosures, closures, true)
}

func (db *DB) GetSpecialHours(ctx context.Context) ([]models.SpecialHours, error) {
	var special []models.SpecialHours
	if _, err := db.getSetting(ctx, models.SettingSpecialHours, &special); err != nil {
		return nil, err
	}
	return special, nil
}

func (db *DB) SaveSpecialHours(ctx context.Context, special []models.SpecialHours) error {
	for _, s := range special {
		if err := models.ValidateDate(s.Date); err != nil {
			return domain.Invalid("special hours: %v", err)
		}
	}
	return db.putSetting(ctx, models.SettingSpecialHours, special, true)
}

// SeedSettings writes the configured schedule only where no document exists.
func (db *DB) SeedSettings(ctx context.Context, hours models.BusinessHours, closures []models.DayClosure, special []models.SpecialHours) error {
	if err := db.putSetting(ctx, models.SettingBusinessHours, hours, false); err != nil {
		return err
	}
	if closures == nil {
		closures = []models.DayClosure{}
	}
	if err := db.putSetting(ctx, models.SettingDayClosures, closures, false); err != nil {
		return err
	}
	if special == nil {
		special = []models.SpecialHours{}
	}
	return db.putSetting(ctx, models.SettingSpecialHours, special, false)
}
