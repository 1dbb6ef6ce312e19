package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/safar/marketplace-orders/internal/database"
	"github.com/safar/marketplace-orders/internal/models"
)

const orderSelect = `
	SELECT o.id, o.schema_version, o.buyer_kind, o.buyer_user_id, o.guest_name, o.guest_email,
	       u.name, u.email,
	       o.shipping_full_name, o.shipping_street, o.shipping_city, o.shipping_postal_code,
	       o.shipping_country, o.shipping_phone,
	       o.payment_method, o.payment_result,
	       o.items_price, o.shipping_price, o.tax_price, o.total_price, o.expected_delivery_date,
	       o.is_paid, o.paid_at, o.is_delivered, o.delivered_at, o.created_at, o.updated_at
	FROM orders o
	LEFT JOIN users u ON u.id = o.buyer_user_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		order         models.Order
		buyerUserID   uuid.NullUUID
		guestName     sql.NullString
		guestEmail    sql.NullString
		userName      sql.NullString
		userEmail     sql.NullString
		paymentResult []byte
		paidAt        sql.NullTime
		deliveredAt   sql.NullTime
	)

	err := row.Scan(
		&order.ID,
		&order.SchemaVersion,
		&order.Buyer.Kind,
		&buyerUserID,
		&guestName,
		&guestEmail,
		&userName,
		&userEmail,
		&order.ShippingAddress.FullName,
		&order.ShippingAddress.Street,
		&order.ShippingAddress.City,
		&order.ShippingAddress.PostalCode,
		&order.ShippingAddress.Country,
		&order.ShippingAddress.Phone,
		&order.PaymentMethod,
		&paymentResult,
		&order.ItemsPrice,
		&order.ShippingPrice,
		&order.TaxPrice,
		&order.TotalPrice,
		&order.ExpectedDeliveryDate,
		&order.IsPaid,
		&paidAt,
		&order.IsDelivered,
		&deliveredAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	switch order.Buyer.Kind {
	case models.BuyerRegistered:
		order.Buyer.UserID = buyerUserID.UUID
		order.Buyer.UserName = userName.String
		order.Buyer.UserEmail = userEmail.String
	case models.BuyerGuest:
		order.Buyer.Guest = &models.Guest{Name: guestName.String, Email: guestEmail.String}
	}

	if paymentResult != nil {
		var result models.PaymentResult
		if err := result.Scan(paymentResult); err != nil {
			return nil, err
		}
		order.PaymentResult = &result
	}
	if paidAt.Valid {
		order.PaidAt = &paidAt.Time
	}
	if deliveredAt.Valid {
		order.DeliveredAt = &deliveredAt.Time
	}

	return &order, nil
}

// InsertOrder writes the order row and its line items. It must run inside a
// transaction so a failed item insert leaves no partial order behind.
func InsertOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	if err := order.Buyer.Validate(); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	var (
		buyerUserID uuid.NullUUID
		guestName   sql.NullString
		guestEmail  sql.NullString
	)
	if order.Buyer.IsGuest() {
		guestName = sql.NullString{String: order.Buyer.Guest.Name, Valid: true}
		guestEmail = sql.NullString{String: order.Buyer.Guest.Email, Valid: true}
	} else {
		buyerUserID = uuid.NullUUID{UUID: order.Buyer.UserID, Valid: true}
	}

	err := tx.QueryRowContext(ctx,
		`INSERT INTO orders (
			id, schema_version, buyer_kind, buyer_user_id, guest_name, guest_email,
			shipping_full_name, shipping_street, shipping_city, shipping_postal_code,
			shipping_country, shipping_phone, payment_method,
			items_price, shipping_price, tax_price, total_price, expected_delivery_date,
			created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, NOW(), NOW())
		 RETURNING created_at, updated_at`,
		order.ID,
		order.SchemaVersion,
		order.Buyer.Kind,
		buyerUserID,
		guestName,
		guestEmail,
		order.ShippingAddress.FullName,
		order.ShippingAddress.Street,
		order.ShippingAddress.City,
		order.ShippingAddress.PostalCode,
		order.ShippingAddress.Country,
		order.ShippingAddress.Phone,
		order.PaymentMethod,
		order.ItemsPrice,
		order.ShippingPrice,
		order.TaxPrice,
		order.TotalPrice,
		order.ExpectedDeliveryDate,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	for position, item := range order.Items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, position, product_id, name, slug, image, category, price, quantity, size, color)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			order.ID, position, item.ProductID, item.Name, item.Slug, item.Image, item.Category,
			item.Price, item.Quantity, item.Size, item.Color)
		if err != nil {
			return fmt.Errorf("create order item: %w", err)
		}
	}

	return nil
}

func GetOrder(ctx context.Context, q database.Querier, id uuid.UUID) (*models.Order, error) {
	order, err := scanOrder(q.QueryRowContext(ctx, orderSelect+` WHERE o.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if err := attachItems(ctx, q, []*models.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

// LockOrder re-reads the order under a row lock, so concurrent state
// transitions on the same order queue behind each other.
func LockOrder(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*models.Order, error) {
	order, err := scanOrder(tx.QueryRowContext(ctx, orderSelect+` WHERE o.id = $1 FOR UPDATE OF o`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}

	if err := attachItems(ctx, tx, []*models.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

// SetOrderPaid flips is_paid one way. Zero rows means another writer got there
// first, which the caller reports as already paid.
func SetOrderPaid(ctx context.Context, tx *sql.Tx, id uuid.UUID, result models.PaymentResult, at time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE orders
		 SET is_paid = TRUE, paid_at = $2, payment_result = $3, updated_at = NOW()
		 WHERE id = $1 AND is_paid = FALSE`,
		id, at, result)
	if err != nil {
		return false, fmt.Errorf("mark order paid: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

func SetOrderDelivered(ctx context.Context, tx *sql.Tx, id uuid.UUID, at time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE orders
		 SET is_delivered = TRUE, delivered_at = $2, updated_at = NOW()
		 WHERE id = $1 AND is_paid = TRUE AND is_delivered = FALSE`,
		id, at)
	if err != nil {
		return false, fmt.Errorf("mark order delivered: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

// ListOrdersCursor pages a registered buyer's orders newest first.
func ListOrdersCursor(ctx context.Context, q database.Querier, userID uuid.UUID, cursor string, limit int) (*CursorPage[*models.Order], error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := orderSelect + `
		WHERE o.buyer_user_id = $1
		  AND (o.created_at, o.id) < ($2, $3)
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $4`

	orders, err := queryOrders(ctx, q, query, userID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	if err := attachItems(ctx, q, orders); err != nil {
		return nil, err
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage[*models.Order]{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// CountOrdersWithProducts counts orders holding at least one of productIDs.
func CountOrdersWithProducts(ctx context.Context, q database.Querier, productIDs []uuid.UUID) (int64, error) {
	var total int64
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*)
		 FROM orders o
		 WHERE EXISTS (
			SELECT 1 FROM order_items oi
			WHERE oi.order_id = o.id AND oi.product_id = ANY($1::uuid[]))`,
		uuidArray(productIDs)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count orders with products: %w", err)
	}
	return total, nil
}

// ListOrdersWithProducts returns full orders (all items) holding at least one
// of productIDs, newest first.
func ListOrdersWithProducts(ctx context.Context, q database.Querier, productIDs []uuid.UUID, limit, offset int) ([]*models.Order, error) {
	query := orderSelect + `
		WHERE EXISTS (
			SELECT 1 FROM order_items oi
			WHERE oi.order_id = o.id AND oi.product_id = ANY($1::uuid[]))
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $2 OFFSET $3`

	orders, err := queryOrders(ctx, q, query, uuidArray(productIDs), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list orders with products: %w", err)
	}

	if err := attachItems(ctx, q, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// ListPaidOrdersBetween returns paid orders created in [from, to). A nil
// productIDs slice means every order; otherwise only orders touching them.
func ListPaidOrdersBetween(ctx context.Context, q database.Querier, productIDs []uuid.UUID, from, to time.Time) ([]*models.Order, error) {
	query := orderSelect + `
		WHERE o.is_paid
		  AND o.created_at >= $1 AND o.created_at < $2
		  AND ($3::uuid[] IS NULL OR EXISTS (
			SELECT 1 FROM order_items oi
			WHERE oi.order_id = o.id AND oi.product_id = ANY($3::uuid[])))
		ORDER BY o.created_at, o.id`

	var ids any
	if productIDs != nil {
		ids = uuidArray(productIDs)
	}

	orders, err := queryOrders(ctx, q, query, from, to, ids)
	if err != nil {
		return nil, fmt.Errorf("list paid orders: %w", err)
	}

	if err := attachItems(ctx, q, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func queryOrders(ctx context.Context, q database.Querier, query string, args ...any) ([]*models.Order, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return orders, nil
}

// attachItems loads line items for all orders in one query.
func attachItems(ctx context.Context, q database.Querier, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*models.Order, len(orders))
	ids := make([]uuid.UUID, 0, len(orders))
	for _, order := range orders {
		order.Items = []models.OrderLineItem{}
		byID[order.ID] = order
		ids = append(ids, order.ID)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT order_id, product_id, name, slug, image, category, price, quantity, size, color
		 FROM order_items
		 WHERE order_id = ANY($1::uuid[])
		 ORDER BY order_id, position`,
		uuidArray(ids))
	if err != nil {
		return fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID uuid.UUID
			item    models.OrderLineItem
		)
		err := rows.Scan(
			&orderID,
			&item.ProductID,
			&item.Name,
			&item.Slug,
			&item.Image,
			&item.Category,
			&item.Price,
			&item.Quantity,
			&item.Size,
			&item.Color,
		)
		if err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		if order, ok := byID[orderID]; ok {
			order.Items = append(order.Items, item)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}
	return nil
}

func uuidArray(ids []uuid.UUID) any {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return pq.Array(out)
}
