package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"villasole/internal/models"
)

const bookingColumns = `id, reference, guest_name, guest_email, guest_phone,
       check_in, check_out, adults, children_ages, parking_option, nights,
       base_price, parking_cost, cleaning_fee, tourist_tax, total_amount,
       deposit_amount, payment_method, payment_type, payment_amount,
       status, comment, created_at, updated_at, version`

// CreateBookingWithLock inserts a booking after re-checking the range inside
// a write transaction. SQLite serializes writers, so the re-check and the
// insert cannot interleave with another booking request.
func (db *DB) CreateBookingWithLock(ctx context.Context, booking *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	checkIn := booking.CheckIn.Format(models.DateFormat)
	checkOut := booking.CheckOut.Format(models.DateFormat)

	// Half-open overlap: check_in < :out AND :in < check_out.
	var bookingCount int
	queryBookings := `SELECT COUNT(*) FROM bookings
	                  WHERE status IN (?, ?) AND check_in < ? AND ? < check_out`
	err = tx.QueryRowContext(ctx, queryBookings,
		models.StatusPending, models.StatusConfirmed, checkOut, checkIn).Scan(&bookingCount)
	if err != nil {
		return fmt.Errorf("failed to check bookings in tx: %w", err)
	}

	var blockedCount int
	queryBlocked := `SELECT COUNT(*) FROM blocked_dates
	                 WHERE start_date < ? AND ? < end_date`
	err = tx.QueryRowContext(ctx, queryBlocked, checkOut, checkIn).Scan(&blockedCount)
	if err != nil {
		return fmt.Errorf("failed to check blocked ranges in tx: %w", err)
	}

	if bookingCount > 0 || blockedCount > 0 {
		return ErrRangeUnavailable
	}

	ages, err := json.Marshal(booking.ChildrenAges)
	if err != nil {
		return fmt.Errorf("failed to encode children ages: %w", err)
	}

	queryInsert := `INSERT INTO bookings (
	            reference, guest_name, guest_email, guest_phone,
	            check_in, check_out, adults, children_ages, parking_option, nights,
	            base_price, parking_cost, cleaning_fee, tourist_tax, total_amount,
	            deposit_amount, payment_method, payment_type, payment_amount,
	            status, comment, created_at, updated_at, version
	        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := tx.ExecContext(ctx, queryInsert,
		booking.Reference,
		booking.GuestName,
		booking.GuestEmail,
		booking.GuestPhone,
		checkIn,
		checkOut,
		booking.Adults,
		string(ages),
		booking.ParkingOption,
		booking.Nights,
		booking.BasePrice,
		booking.ParkingCost,
		booking.CleaningFee,
		booking.TouristTax,
		booking.TotalAmount,
		booking.DepositAmount,
		booking.PaymentMethod,
		booking.PaymentType,
		booking.PaymentAmount,
		booking.Status,
		booking.Comment,
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking in tx: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id in tx: %w", err)
	}
	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1

	return tx.Commit()
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	return db.scanBookingRow(db.QueryRowContext(ctx, query, id))
}

func (db *DB) GetBookingByReference(ctx context.Context, reference string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE reference = ?`
	return db.scanBookingRow(db.QueryRowContext(ctx, query, reference))
}

// GetBlockingBookings returns confirmed and pending bookings overlapping the
// half-open range.
func (db *DB) GetBlockingBookings(ctx context.Context, r models.DateRange) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
	          WHERE status IN (?, ?) AND check_in < ? AND ? < check_out
	          ORDER BY check_in ASC`
	rows, err := db.QueryContext(ctx, query,
		models.StatusPending, models.StatusConfirmed,
		r.End.Format(models.DateFormat), r.Start.Format(models.DateFormat))
	if err != nil {
		return nil, fmt.Errorf("failed to get blocking bookings: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

func (db *DB) GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
	          WHERE check_in <= ? AND check_out >= ? ORDER BY check_in ASC`
	rows, err := db.QueryContext(ctx, query,
		end.Format(models.DateFormat), start.Format(models.DateFormat))
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings by date range: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) error {
	query := `UPDATE bookings SET status = ?, version = version + 1, updated_at = ?
	          WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// ConfirmBookingPayment moves a pending booking to confirmed and records the
// payment, guarded by the optimistic version.
func (db *DB) ConfirmBookingPayment(ctx context.Context, id, fromVersion int64, method string, amount float64) error {
	query := `UPDATE bookings
	          SET status = ?, payment_method = ?, payment_amount = ?,
	              version = version + 1, updated_at = ?
	          WHERE id = ? AND version = ? AND status = ?`
	result, err := db.ExecContext(ctx, query,
		models.StatusConfirmed, method, amount, time.Now(), id, fromVersion, models.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to confirm booking payment: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (db *DB) scanBookingRow(row *sql.Row) (*models.Booking, error) {
	b := &models.Booking{}
	var checkIn, checkOut, ages string
	var phone, method, ptype, comment sql.NullString
	err := row.Scan(
		&b.ID, &b.Reference, &b.GuestName, &b.GuestEmail, &phone,
		&checkIn, &checkOut, &b.Adults, &ages, &b.ParkingOption, &b.Nights,
		&b.BasePrice, &b.ParkingCost, &b.CleaningFee, &b.TouristTax, &b.TotalAmount,
		&b.DepositAmount, &method, &ptype, &b.PaymentAmount,
		&b.Status, &comment, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if err := fillBookingFields(b, checkIn, checkOut, ages, phone, method, ptype, comment); err != nil {
		return nil, err
	}
	return b, nil
}

func scanBookings(rows *sql.Rows) ([]*models.Booking, error) {
	var bookings []*models.Booking
	for rows.Next() {
		b := &models.Booking{}
		var checkIn, checkOut, ages string
		var phone, method, ptype, comment sql.NullString
		err := rows.Scan(
			&b.ID, &b.Reference, &b.GuestName, &b.GuestEmail, &phone,
			&checkIn, &checkOut, &b.Adults, &ages, &b.ParkingOption, &b.Nights,
			&b.BasePrice, &b.ParkingCost, &b.CleaningFee, &b.TouristTax, &b.TotalAmount,
			&b.DepositAmount, &method, &ptype, &b.PaymentAmount,
			&b.Status, &comment, &b.CreatedAt, &b.UpdatedAt, &b.Version,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		if err := fillBookingFields(b, checkIn, checkOut, ages, phone, method, ptype, comment); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}

func fillBookingFields(b *models.Booking, checkIn, checkOut, ages string, phone, method, ptype, comment sql.NullString) error {
	var err error
	b.CheckIn, err = time.Parse(models.DateFormat, checkIn)
	if err != nil {
		return fmt.Errorf("failed to parse check_in %s: %w", checkIn, err)
	}
	b.CheckOut, err = time.Parse(models.DateFormat, checkOut)
	if err != nil {
		return fmt.Errorf("failed to parse check_out %s: %w", checkOut, err)
	}
	if err := json.Unmarshal([]byte(ages), &b.ChildrenAges); err != nil {
		return fmt.Errorf("failed to decode children ages: %w", err)
	}
	b.GuestPhone = phone.String
	b.PaymentMethod = method.String
	b.PaymentType = ptype.String
	b.Comment = comment.String
	return nil
}
