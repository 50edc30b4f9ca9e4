package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"villasole/internal/models"
)

// GetPricingConfig loads the latest authoritative pricing configuration.
// Returns ErrPricingConfigMissing when none is stored; callers must fail
// rather than substitute guessed values.
func (db *DB) GetPricingConfig(ctx context.Context) (*models.PricingConfig, error) {
	query := `SELECT id, base_price_per_adult, additional_guest_price, cleaning_fee,
	                 parking_fee_per_night, tourist_tax_per_person, minimum_nights,
	                 deposit_percentage, updated_at
	          FROM pricing_config ORDER BY id DESC LIMIT 1`

	cfg := &models.PricingConfig{}
	err := db.QueryRowContext(ctx, query).Scan(
		&cfg.ID, &cfg.BasePricePerAdult, &cfg.AdditionalGuestPrice, &cfg.CleaningFee,
		&cfg.ParkingFeePerNight, &cfg.TouristTaxPerPerson, &cfg.MinimumNights,
		&cfg.DepositPercentage, &cfg.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPricingConfigMissing
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pricing config: %w", err)
	}
	return cfg, nil
}

// SavePricingConfig appends a new configuration row. Old rows are kept so
// the pricing of past quotes remains explainable.
func (db *DB) SavePricingConfig(ctx context.Context, cfg *models.PricingConfig) error {
	query := `INSERT INTO pricing_config (
	              base_price_per_adult, additional_guest_price, cleaning_fee,
	              parking_fee_per_night, tourist_tax_per_person, minimum_nights,
	              deposit_percentage, updated_at
	          ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		cfg.BasePricePerAdult, cfg.AdditionalGuestPrice, cfg.CleaningFee,
		cfg.ParkingFeePerNight, cfg.TouristTaxPerPerson, cfg.MinimumNights,
		cfg.DepositPercentage, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save pricing config: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	cfg.ID = id
	cfg.UpdatedAt = now
	return nil
}
