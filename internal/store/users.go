package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/safar/marketplace-orders/internal/database"
	"github.com/safar/marketplace-orders/internal/models"
)

func CreateUser(ctx context.Context, q database.Querier, email, name string) (*models.User, error) {
	query := `
		INSERT INTO users (id, email, name, created_at, updated_at, version)
		VALUES ($1, $2, $3, NOW(), NOW(), 1)
		RETURNING ` + userColumns

	user, err := scanUser(q.QueryRowContext(ctx, query, uuid.New(), email, name))
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func GetUser(ctx context.Context, q database.Querier, id uuid.UUID) (*models.User, error) {
	user, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func UserExists(ctx context.Context, q database.Querier, id uuid.UUID) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

// SetVendorStatus turns a user into a vendor or changes their review state.
func SetVendorStatus(ctx context.Context, q database.Querier, id uuid.UUID, status models.VendorStatus, storeName string) error {
	result, err := q.ExecContext(ctx,
		`UPDATE users
		 SET vendor_status = $2, store_name = $3, updated_at = NOW(), version = version + 1
		 WHERE id = $1`,
		id, status, storeName)
	if err != nil {
		return fmt.Errorf("set vendor status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrUserNotFound
	}
	return nil
}

const userColumns = `id, email, name, vendor_status, store_name, store_description, created_at, updated_at, version`

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user             models.User
		vendorStatus     sql.NullString
		storeName        sql.NullString
		storeDescription sql.NullString
	)

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&vendorStatus,
		&storeName,
		&storeDescription,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Version,
	)
	if err != nil {
		return nil, err
	}

	if vendorStatus.Valid {
		status := models.VendorStatus(vendorStatus.String)
		user.VendorStatus = &status
	}
	user.StoreName = storeName.String
	user.StoreDescription = storeDescription.String

	return &user, nil
}
