package notifications

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) GetSettings(ctx context.Context) (Settings, error) {
	settings := DefaultSettings()
	var frequency, unit string
	err := s.DB.QueryRow(ctx, `
    SELECT enabled, frequency, custom_value, custom_unit, updated_at
    FROM notification_settings
    WHERE id = 1
  `).Scan(&settings.Enabled, &frequency, &settings.CustomValue, &unit, &settings.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return settings, nil
	}
	if err != nil {
		return Settings{}, err
	}
	settings.Frequency = Frequency(frequency)
	settings.CustomUnit = Unit(unit)

	rows, err := s.DB.Query(ctx, "SELECT name, email FROM notification_contacts ORDER BY position")
	if err != nil {
		return Settings{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.Name, &c.Email); err != nil {
			return Settings{}, err
		}
		settings.Contacts = append(settings.Contacts, c)
	}
	return settings, rows.Err()
}

func (s *Store) SaveSettings(ctx context.Context, settings Settings) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
    INSERT INTO notification_settings (id, enabled, frequency, custom_value, custom_unit, updated_at)
    VALUES (1,$1,$2,$3,$4,$5)
    ON CONFLICT (id) DO UPDATE
      SET enabled = EXCLUDED.enabled,
          frequency = EXCLUDED.frequency,
          custom_value = EXCLUDED.custom_value,
          custom_unit = EXCLUDED.custom_unit,
          updated_at = EXCLUDED.updated_at
  `, settings.Enabled, string(settings.Frequency), settings.CustomValue, string(settings.CustomUnit), settings.UpdatedAt); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, "DELETE FROM notification_contacts"); err != nil {
		return err
	}
	for i, c := range settings.Contacts {
		if _, err := tx.Exec(ctx, `
      INSERT INTO notification_contacts (position, name, email) VALUES ($1,$2,$3)
    `, i, c.Name, c.Email); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
