package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantran/selene/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// Compile-time check that OrderStore implements domain.OrderStore.
var _ domain.OrderStore = (*OrderStore)(nil)

// NewOrderStore creates a new PostgreSQL-backed order store.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderColumns = `id, order_number, status, payment_method, is_paid,
	transaction_id, inventory_decremented, refund_required, user_id, email,
	total_cents, shipping_name, shipping_phone, shipping_address,
	COALESCE(created_at, now()), COALESCE(updated_at, now())`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var status, method string
	err := row.Scan(
		&o.ID, &o.OrderNumber, &status, &method, &o.IsPaid,
		&o.TransactionID, &o.InventoryDecremented, &o.RefundRequired, &o.UserID, &o.Email,
		&o.TotalCents, &o.ShippingName, &o.ShippingPhone, &o.ShippingAddress,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	o.PaymentMethod = domain.PaymentMethod(method)
	return &o, nil
}

// GetOrder returns a single order by id.
func (s *OrderStore) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)

	order, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, "order.get", "failed to load order")
	}
	return order, nil
}

// GetOrderItems returns the line items of an order.
func (s *OrderStore) GetOrderItems(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, order_id, product_id, product_name, quantity, unit_price_cents
		 FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, domain.Internal(err, "order.items", "failed to load order items")
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPriceCents); err != nil {
			return nil, domain.Internal(err, "order.items", "failed to scan order item")
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "order.items", "failed to read order items")
	}
	return items, nil
}

// ListOrders returns orders matching the filter, newest first.
func (s *OrderStore) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	var conds []string
	var args []any

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.IsPaid != nil {
		args = append(args, *filter.IsPaid)
		conds = append(conds, fmt.Sprintf("is_paid = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC NULLS LAST"

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	return s.queryOrders(ctx, "order.list", query, args...)
}

// ListOrdersForUser returns orders owned by the user, by reference or by
// case-insensitive e-mail match, newest first.
func (s *OrderStore) ListOrdersForUser(ctx context.Context, userID uuid.UUID, email string) ([]domain.Order, error) {
	return s.queryOrders(ctx, "order.list_for_user",
		`SELECT `+orderColumns+` FROM orders
		 WHERE user_id = $1 OR (email <> '' AND lower(email) = lower($2))
		 ORDER BY created_at DESC NULLS LAST`,
		userID, email)
}

func (s *OrderStore) queryOrders(ctx context.Context, op, query string, args ...any) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list orders")
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to scan order")
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to read orders")
	}
	return orders, nil
}

// UpdateOrder applies a field-level update and returns the updated row.
func (s *OrderStore) UpdateOrder(ctx context.Context, id uuid.UUID, update domain.OrderUpdate) (*domain.Order, error) {
	sets := []string{"updated_at = now()"}
	var args []any

	if update.Status != nil {
		args = append(args, string(*update.Status))
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}
	if update.IsPaid != nil {
		args = append(args, *update.IsPaid)
		sets = append(sets, fmt.Sprintf("is_paid = $%d", len(args)))
	}
	if update.RefundRequired != nil {
		args = append(args, *update.RefundRequired)
		sets = append(sets, fmt.Sprintf("refund_required = $%d", len(args)))
	}
	if update.TransactionID != nil {
		args = append(args, *update.TransactionID)
		sets = append(sets, fmt.Sprintf("transaction_id = $%d", len(args)))
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE orders SET %s WHERE id = $%d RETURNING `+orderColumns,
		strings.Join(sets, ", "), len(args))

	order, err := scanOrder(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, "order.update", "failed to update order")
	}
	return order, nil
}

// LinkOrderUser attaches a user to an order that has none. A no-op if the
// order is already linked.
func (s *OrderStore) LinkOrderUser(ctx context.Context, id, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE orders SET user_id = $2, updated_at = now()
		 WHERE id = $1 AND user_id IS NULL`, id, userID)
	if err != nil {
		return domain.Internal(err, "order.link_user", "failed to link order to user")
	}
	return nil
}

// SetInventoryDecremented sets the idempotency flag.
func (s *OrderStore) SetInventoryDecremented(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE orders SET inventory_decremented = TRUE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return domain.Internal(err, "order.set_inventory_flag", "failed to set inventory flag")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// DeleteOrder removes an order; items cascade.
func (s *OrderStore) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return domain.Internal(err, "order.delete", "failed to delete order")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// DeleteOrdersBefore bulk-deletes orders in the given statuses last
// updated before cutoff.
func (s *OrderStore) DeleteOrdersBefore(ctx context.Context, statuses []domain.OrderStatus, cutoff time.Time) (int64, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM orders WHERE status = ANY($1) AND COALESCE(updated_at, created_at, now()) < $2`,
		names, cutoff)
	if err != nil {
		return 0, domain.Internal(err, "order.cleanup", "failed to bulk-delete orders")
	}
	return tag.RowsAffected(), nil
}

// RepairTimestamps backfills legacy rows with null created_at or
// updated_at dates.
func (s *OrderStore) RepairTimestamps(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE orders
		 SET created_at = COALESCE(created_at, updated_at, now()),
		     updated_at = COALESCE(updated_at, created_at, now())
		 WHERE created_at IS NULL OR updated_at IS NULL`)
	if err != nil {
		return 0, domain.Internal(err, "order.repair_timestamps", "failed to repair order timestamps")
	}
	return tag.RowsAffected(), nil
}

// CreateOrder inserts an order with its items. Used by checkout, fixtures
// and tests; the lifecycle core itself never creates orders.
func (s *OrderStore) CreateOrder(ctx context.Context, order *domain.Order, items []domain.OrderItem) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Internal(err, "order.create", "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.OrderNumber == "" {
		suffix, err := randomSuffix(4)
		if err != nil {
			return domain.Internal(err, "order.create", "failed to generate order number")
		}
		order.OrderNumber = domain.FormatOrderNumber(time.Now(), suffix)
	}
	if order.Status == "" {
		order.Status = domain.OrderStatusPending
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO orders (id, order_number, status, payment_method, is_paid,
			transaction_id, user_id, email, total_cents,
			shipping_name, shipping_phone, shipping_address)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		order.ID, order.OrderNumber, string(order.Status), string(order.PaymentMethod), order.IsPaid,
		order.TransactionID, order.UserID, order.Email, order.TotalCents,
		order.ShippingName, order.ShippingPhone, order.ShippingAddress)
	if err != nil {
		return domain.Internal(err, "order.create", "failed to insert order")
	}

	for i := range items {
		it := &items[i]
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		it.OrderID = order.ID
		_, err = tx.Exec(ctx,
			`INSERT INTO order_items (id, order_id, product_id, product_name, quantity, unit_price_cents)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			it.ID, it.OrderID, it.ProductID, it.ProductName, it.Quantity, it.UnitPriceCents)
		if err != nil {
			return domain.Internal(err, "order.create", "failed to insert order item")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Internal(err, "order.create", "failed to commit order")
	}
	return nil
}
