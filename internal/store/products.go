package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/safar/marketplace-orders/internal/database"
	"github.com/safar/marketplace-orders/internal/models"
	"github.com/shopspring/decimal"
)

type NewProduct struct {
	VendorID     uuid.UUID
	Name         string
	Slug         string
	Category     string
	Image        string
	Price        decimal.Decimal
	CountInStock int
}

// CreateProduct is used by seeding and tests; the catalog itself is owned
// elsewhere.
func CreateProduct(ctx context.Context, q database.Querier, p NewProduct) (*models.Product, error) {
	product := &models.Product{}

	query := `
		INSERT INTO products (id, vendor_id, name, slug, category, image, price, count_in_stock, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW(), 1)
		RETURNING id, vendor_id, name, slug, category, image, price, count_in_stock, created_at, updated_at, version`

	err := q.QueryRowContext(ctx, query,
		uuid.New(), p.VendorID, p.Name, p.Slug, p.Category, p.Image, p.Price, p.CountInStock,
	).Scan(
		&product.ID,
		&product.VendorID,
		&product.Name,
		&product.Slug,
		&product.Category,
		&product.Image,
		&product.Price,
		&product.CountInStock,
		&product.CreatedAt,
		&product.UpdatedAt,
		&product.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func GetProduct(ctx context.Context, q database.Querier, id uuid.UUID) (*models.Product, error) {
	product := &models.Product{}

	query := `
		SELECT id, vendor_id, name, slug, category, image, price, count_in_stock, created_at, updated_at, version
		FROM products
		WHERE id = $1`

	err := q.QueryRowContext(ctx, query, id).Scan(
		&product.ID,
		&product.VendorID,
		&product.Name,
		&product.Slug,
		&product.Category,
		&product.Image,
		&product.Price,
		&product.CountInStock,
		&product.CreatedAt,
		&product.UpdatedAt,
		&product.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

// ProductIDsByVendor resolves every product a vendor owns, in id order.
func ProductIDsByVendor(ctx context.Context, q database.Querier, vendorID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id FROM products WHERE vendor_id = $1 ORDER BY id`, vendorID)
	if err != nil {
		return nil, fmt.Errorf("list vendor products: %w", err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan product id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return ids, nil
}

// DecrementStock takes quantity units off a product. The UPDATE holds the row
// lock until the transaction ends, so concurrent decrements of the same
// product serialize and the stock >= quantity guard cannot be raced.
func DecrementStock(ctx context.Context, tx *sql.Tx, productID uuid.UUID, quantity int) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE products
		 SET count_in_stock = count_in_stock - $1,
		     updated_at = NOW(),
		     version = version + 1
		 WHERE id = $2
		   AND count_in_stock >= $1`,
		quantity, productID)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 1 {
		return nil
	}

	var exists bool
	err = tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)", productID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check product exists: %w", err)
	}
	if !exists {
		return database.ErrProductNotFound
	}
	return database.ErrInsufficientStock
}
