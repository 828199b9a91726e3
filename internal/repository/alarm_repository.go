package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kdavid109/UpWake/internal/models"
)

var ErrAlarmNotFound = errors.New("alarm not found")

type AlarmRepository struct {
	pool *pgxpool.Pool
}

func NewAlarmRepository(pool *pgxpool.Pool) *AlarmRepository {
	return &AlarmRepository{pool: pool}
}

func (r *AlarmRepository) Create(ctx context.Context, alarm models.Alarm) error {
	const query = `
		INSERT INTO alarms (
			id, user_id, minutes, label, days, enabled, image_path, image_url, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		alarm.ID,
		alarm.UserID,
		alarm.Minutes,
		alarm.Label,
		daysToInts(alarm.Days),
		alarm.Enabled,
		alarm.ImagePath,
		alarm.ImageURL,
	)
	return err
}

// Update rewrites every user-editable field except enabled, which has its own
// single-field path in SetEnabled.
func (r *AlarmRepository) Update(ctx context.Context, alarm models.Alarm) error {
	const query = `
		UPDATE alarms
		SET minutes = $3, label = $4, days = $5, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`
	cmd, err := r.pool.Exec(ctx, query,
		alarm.ID,
		alarm.UserID,
		alarm.Minutes,
		alarm.Label,
		daysToInts(alarm.Days),
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAlarmNotFound
	}
	return nil
}

// SetEnabled toggles exactly one column. Time, label and days are not
// touched.
func (r *AlarmRepository) SetEnabled(ctx context.Context, userID, id string, enabled bool) error {
	const query = `
		UPDATE alarms SET enabled = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`
	cmd, err := r.pool.Exec(ctx, query, id, userID, enabled)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAlarmNotFound
	}
	return nil
}

func (r *AlarmRepository) GetByID(ctx context.Context, userID, id string) (models.Alarm, error) {
	const query = `
		SELECT id, user_id, minutes, label, days, enabled, image_path, image_url, created_at, updated_at
		FROM alarms WHERE id = $1 AND user_id = $2
	`
	return scanAlarm(r.pool.QueryRow(ctx, query, id, userID))
}

func (r *AlarmRepository) ListByUser(ctx context.Context, userID string) ([]models.Alarm, error) {
	const query = `
		SELECT id, user_id, minutes, label, days, enabled, image_path, image_url, created_at, updated_at
		FROM alarms
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alarms []models.Alarm
	for rows.Next() {
		alarm, err := scanAlarm(rows)
		if err != nil {
			return nil, err
		}
		alarms = append(alarms, alarm)
	}
	return alarms, rows.Err()
}

func (r *AlarmRepository) Delete(ctx context.Context, userID, id string) error {
	const query = `DELETE FROM alarms WHERE id = $1 AND user_id = $2`
	cmd, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAlarmNotFound
	}
	return nil
}

func scanAlarm(row pgx.Row) (models.Alarm, error) {
	var (
		alarm models.Alarm
		days  []int32
	)
	if err := row.Scan(
		&alarm.ID,
		&alarm.UserID,
		&alarm.Minutes,
		&alarm.Label,
		&days,
		&alarm.Enabled,
		&alarm.ImagePath,
		&alarm.ImageURL,
		&alarm.CreatedAt,
		&alarm.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Alarm{}, ErrAlarmNotFound
		}
		return models.Alarm{}, err
	}
	alarm.Days = intsToDays(days)
	return alarm, nil
}

func daysToInts(days []models.Weekday) []int32 {
	out := make([]int32, len(days))
	for i, d := range days {
		out[i] = int32(d)
	}
	return out
}

func intsToDays(ints []int32) []models.Weekday {
	out := make([]models.Weekday, len(ints))
	for i, v := range ints {
		out[i] = models.Weekday(v)
	}
	return out
}
