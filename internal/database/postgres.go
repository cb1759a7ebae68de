package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"storefront/internal/metrics"
	"storefront/internal/model"
)

// postgresStorage - реализация Storage поверх PostgreSQL.
type postgresStorage struct {
	db     *sqlx.DB
	tracer trace.Tracer
	logger *zap.Logger
}

// New создает подключение к БД, применяет миграции и возвращает Storage.
func New(dbURL, migrationsPath string, logger *zap.Logger) (Storage, error) {
	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к БД: %w", err)
	}

	if err := runMigrations(dbURL, migrationsPath, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ошибка применения миграций: %w", err)
	}

	return &postgresStorage{
		db:     db,
		tracer: otel.Tracer("postgres-storage"),
		logger: logger,
	}, nil
}

// runMigrations выполняет миграции БД до последней версии.
func runMigrations(dbURL, migrationsPath string, logger *zap.Logger) error {
	logger.Info("Поиск и применение миграций...", zap.String("path", migrationsPath))

	m, err := migrate.New(fmt.Sprintf("file://%s", migrationsPath), dbURL)
	if err != nil {
		return fmt.Errorf("не удалось создать экземпляр миграции: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("не удалось выполнить миграции: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("не удалось получить версию миграции: %w", err)
	}
	if dirty {
		logger.Warn("БД в 'грязном' состоянии (dirty), рекомендуется проверка", zap.Uint("version", version))
	}

	logger.Info("Миграции успешно применены", zap.Uint("version", version))
	return nil
}

// rollback откатывает транзакцию при ошибке или панике. Вызывается в defer
// с указателем на именованную ошибку.
func (s *postgresStorage) rollback(tx *sqlx.Tx, err *error) {
	if p := recover(); p != nil {
		_ = tx.Rollback()
		panic(p)
	}
	if *err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error("Ошибка отката транзакции", zap.NamedError("cause", *err), zap.Error(rbErr))
		}
	}
}

const (
	insertOrderQuery = `INSERT INTO orders (id, gateway_order_id, gateway_payment_id, customer_name, customer_email, customer_phone,
        shipping_address, currency, subtotal, tax_amount, tax, total, status, payment_status, fulfillment_notes, fraud_flag_id,
        client_ip, session_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	insertItemQuery = `INSERT INTO order_items (order_id, product_id, product_name, shade, price, quantity, currency)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`

	selectOrderColumns = `SELECT id, gateway_order_id, gateway_payment_id, customer_name, customer_email, customer_phone,
        shipping_address, currency, subtotal, tax_amount, tax, total, status, payment_status, fulfillment_notes, fraud_flag_id,
        client_ip, session_id, created_at, updated_at FROM orders`

	selectItemColumns = `SELECT order_id, product_id, product_name, shade, price, quantity, currency FROM order_items`
)

// FinalizeOrder проводит заказ в одной транзакции:
// блокировка по ключу идемпотентности, проверка дубля, проверка и списание остатков, запись заказа.
func (s *postgresStorage) FinalizeOrder(ctx context.Context, order *model.Order) (err error) {
	ctx, span := s.tracer.Start(ctx, "DB.FinalizeOrder")
	defer span.End()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		metrics.DBErrors.WithLabelValues("finalize_order").Inc()
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer s.rollback(tx, &err)

	// Параллельные доставки одного вебхука сериализуются на этой блокировке.
	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, order.GatewayOrderID); err != nil {
		return fmt.Errorf("ошибка блокировки заказа: %w", err)
	}

	var exists bool
	if err = tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM orders WHERE gateway_order_id = $1)`, order.GatewayOrderID); err != nil {
		return fmt.Errorf("ошибка проверки дубликата: %w", err)
	}
	if exists {
		err = ErrDuplicateOrder
		return err
	}

	// Строки товаров блокируются в порядке id, чтобы параллельные заказы не взаимоблокировались.
	demand, ids := stockDemand(order.Items)
	for _, id := range ids {
		var stock int
		err = tx.GetContext(ctx, &stock, `SELECT stock FROM products WHERE id = $1 FOR UPDATE`, id)
		if errors.Is(err, sql.ErrNoRows) {
			err = &StockShortage{ProductID: id, Requested: demand[id]}
			return err
		}
		if err != nil {
			return fmt.Errorf("ошибка чтения остатка %s: %w", id, err)
		}
		if stock < demand[id] {
			err = &StockShortage{ProductID: id, Requested: demand[id], Available: stock}
			return err
		}
	}
	for _, id := range ids {
		if _, err = tx.ExecContext(ctx, `UPDATE products SET stock = stock - $2, updated_at = now() WHERE id = $1`, id, demand[id]); err != nil {
			return fmt.Errorf("ошибка списания остатка %s: %w", id, err)
		}
	}

	address, taxJSON, err := encodeOrderJSON(order)
	if err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, insertOrderQuery,
		order.ID, order.GatewayOrderID, order.GatewayPaymentID, order.CustomerName, order.CustomerEmail, order.CustomerPhone,
		address, order.Currency, order.Subtotal, order.TaxAmount, taxJSON, order.Total, order.Status, order.PaymentStatus,
		order.FulfillmentNotes, order.FraudFlagID, order.ClientIP, order.SessionID, order.CreatedAt, order.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			err = ErrDuplicateOrder
			return err
		}
		return fmt.Errorf("ошибка сохранения заказа: %w", err)
	}

	for _, item := range order.Items {
		if _, err = tx.ExecContext(ctx, insertItemQuery,
			order.ID, item.ProductID, item.ProductName, item.Shade, item.Price, item.Quantity, item.Currency,
		); err != nil {
			return fmt.Errorf("ошибка сохранения позиции: %w", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		metrics.DBErrors.WithLabelValues("finalize_order").Inc()
	}
	return err
}

func encodeOrderJSON(order *model.Order) (address []byte, tax []byte, err error) {
	address, err = json.Marshal(order.ShippingAddress)
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка сериализации адреса: %w", err)
	}
	if order.Tax != nil {
		tax, err = json.Marshal(order.Tax)
		if err != nil {
			return nil, nil, fmt.Errorf("ошибка сериализации налога: %w", err)
		}
	}
	return address, tax, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// orderRow - строка таблицы orders.
type orderRow struct {
	ID               string          `db:"id"`
	GatewayOrderID   string          `db:"gateway_order_id"`
	GatewayPaymentID string          `db:"gateway_payment_id"`
	CustomerName     string          `db:"customer_name"`
	CustomerEmail    string          `db:"customer_email"`
	CustomerPhone    string          `db:"customer_phone"`
	ShippingAddress  []byte          `db:"shipping_address"`
	Currency         string          `db:"currency"`
	Subtotal         decimal.Decimal `db:"subtotal"`
	TaxAmount        decimal.Decimal `db:"tax_amount"`
	Tax              []byte          `db:"tax"`
	Total            decimal.Decimal `db:"total"`
	Status           string          `db:"status"`
	PaymentStatus    string          `db:"payment_status"`
	FulfillmentNotes string          `db:"fulfillment_notes"`
	FraudFlagID      string          `db:"fraud_flag_id"`
	ClientIP         string          `db:"client_ip"`
	SessionID        string          `db:"session_id"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

type orderItemRow struct {
	OrderID     string          `db:"order_id"`
	ProductID   string          `db:"product_id"`
	ProductName string          `db:"product_name"`
	Shade       string          `db:"shade"`
	Price       decimal.Decimal `db:"price"`
	Quantity    int             `db:"quantity"`
	Currency    string          `db:"currency"`
}

func (r orderRow) toModel() (*model.Order, error) {
	o := &model.Order{
		ID:               r.ID,
		GatewayOrderID:   r.GatewayOrderID,
		GatewayPaymentID: r.GatewayPaymentID,
		CustomerName:     r.CustomerName,
		CustomerEmail:    r.CustomerEmail,
		CustomerPhone:    r.CustomerPhone,
		Currency:         r.Currency,
		Subtotal:         r.Subtotal,
		TaxAmount:        r.TaxAmount,
		Total:            r.Total,
		Status:           model.OrderStatus(r.Status),
		PaymentStatus:    model.PaymentStatus(r.PaymentStatus),
		FulfillmentNotes: r.FulfillmentNotes,
		FraudFlagID:      r.FraudFlagID,
		ClientIP:         r.ClientIP,
		SessionID:        r.SessionID,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		Items:            []model.OrderItem{},
	}
	if err := json.Unmarshal(r.ShippingAddress, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("поврежден адрес заказа %s: %w", r.ID, err)
	}
	if len(r.Tax) > 0 {
		o.Tax = &model.TaxCalculation{}
		if err := json.Unmarshal(r.Tax, o.Tax); err != nil {
			return nil, fmt.Errorf("поврежден налог заказа %s: %w", r.ID, err)
		}
	}
	return o, nil
}

func (r orderItemRow) toModel() model.OrderItem {
	return model.OrderItem{
		ProductID:   r.ProductID,
		ProductName: r.ProductName,
		Shade:       r.Shade,
		Price:       r.Price,
		Quantity:    r.Quantity,
		Currency:    r.Currency,
	}
}

// GetOrder извлекает заказ с позициями по id.
func (s *postgresStorage) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	ctx, span := s.tracer.Start(ctx, "DB.GetOrder")
	defer span.End()
	return s.getOrderWhere(ctx, "get_order", ` WHERE id = $1`, id)
}

// GetOrderByGatewayID извлекает заказ по ключу идемпотентности шлюза.
func (s *postgresStorage) GetOrderByGatewayID(ctx context.Context, gatewayOrderID string) (*model.Order, error) {
	ctx, span := s.tracer.Start(ctx, "DB.GetOrderByGatewayID")
	defer span.End()
	return s.getOrderWhere(ctx, "get_order_by_gateway_id", ` WHERE gateway_order_id = $1`, gatewayOrderID)
}

func (s *postgresStorage) getOrderWhere(ctx context.Context, op, where string, arg string) (*model.Order, error) {
	var row orderRow
	if err := s.db.GetContext(ctx, &row, selectOrderColumns+where, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		metrics.DBErrors.WithLabelValues(op).Inc()
		return nil, fmt.Errorf("не удалось получить заказ: %w", err)
	}
	order, err := row.toModel()
	if err != nil {
		return nil, err
	}

	var items []orderItemRow
	if err := s.db.SelectContext(ctx, &items, selectItemColumns+` WHERE order_id = $1 ORDER BY id`, order.ID); err != nil {
		metrics.DBErrors.WithLabelValues("get_items").Inc()
		return nil, fmt.Errorf("не удалось получить позиции заказа: %w", err)
	}
	for _, ir := range items {
		order.Items = append(order.Items, ir.toModel())
	}
	return order, nil
}

// ListOrders возвращает последние заказы, новые первыми.
func (s *postgresStorage) ListOrders(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	ctx, span := s.tracer.Start(ctx, "DB.ListOrders")
	defer span.End()

	var rows []orderRow
	var err error
	if filter.Status != "" {
		err = s.db.SelectContext(ctx, &rows, selectOrderColumns+` WHERE status = $1 ORDER BY created_at DESC LIMIT $2`,
			filter.Status, defaultLimit(filter.Limit))
	} else {
		err = s.db.SelectContext(ctx, &rows, selectOrderColumns+` ORDER BY created_at DESC LIMIT $1`, defaultLimit(filter.Limit))
	}
	if err != nil {
		metrics.DBErrors.WithLabelValues("list_orders").Inc()
		return nil, fmt.Errorf("ошибка получения заказов: %w", err)
	}
	if len(rows) == 0 {
		return []model.Order{}, nil
	}

	orders := make([]model.Order, 0, len(rows))
	index := make(map[string]int, len(rows))
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		o, err := r.toModel()
		if err != nil {
			return nil, err
		}
		index[o.ID] = len(orders)
		ids = append(ids, o.ID)
		orders = append(orders, *o)
	}

	// Группируем позиции по заказам.
	var items []orderItemRow
	if err := s.db.SelectContext(ctx, &items, selectItemColumns+` WHERE order_id = ANY($1) ORDER BY id`, pq.Array(ids)); err != nil {
		metrics.DBErrors.WithLabelValues("get_items").Inc()
		return nil, fmt.Errorf("ошибка получения позиций: %w", err)
	}
	for _, ir := range items {
		i := index[ir.OrderID]
		orders[i].Items = append(orders[i].Items, ir.toModel())
	}
	return orders, nil
}

// UpdateOrder - compare-and-set по текущему статусу.
func (s *postgresStorage) UpdateOrder(ctx context.Context, id string, from, to model.OrderStatus, notes *string) (*model.Order, error) {
	ctx, span := s.tracer.Start(ctx, "DB.UpdateOrder")
	defer span.End()

	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = $3, fulfillment_notes = COALESCE($4, fulfillment_notes), updated_at = now()
        WHERE id = $1 AND status = $2`,
		id, from, to, notes)
	if err != nil {
		metrics.DBErrors.WithLabelValues("update_order").Inc()
		return nil, fmt.Errorf("ошибка обновления заказа: %w", err)
	}
	if err := s.checkAffected(ctx, res, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, id); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, id)
}

// SetOrderFraudStatus выставляет статус, заданный фрод-правилом, в обход машины состояний.
func (s *postgresStorage) SetOrderFraudStatus(ctx context.Context, orderID string, status model.OrderStatus, flagID string) error {
	ctx, span := s.tracer.Start(ctx, "DB.SetOrderFraudStatus")
	defer span.End()

	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = $2, fraud_flag_id = $3, updated_at = now() WHERE id = $1`, orderID, status, flagID)
	if err != nil {
		metrics.DBErrors.WithLabelValues("set_order_fraud_status").Inc()
		return fmt.Errorf("ошибка обновления статуса заказа: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// checkAffected отличает отсутствие записи от конфликта статуса, если UPDATE ничего не изменил.
func (s *postgresStorage) checkAffected(ctx context.Context, res sql.Result, existsQuery, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения числа строк: %w", err)
	}
	if n > 0 {
		return nil
	}
	var exists bool
	if err := s.db.GetContext(ctx, &exists, existsQuery, id); err != nil {
		return fmt.Errorf("ошибка проверки записи: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStatusConflict
}

type productRow struct {
	ID       string          `db:"id"`
	Name     string          `db:"name"`
	Slug     string          `db:"slug"`
	Category string          `db:"category"`
	PriceINR decimal.Decimal `db:"price_inr"`
	PriceUSD decimal.Decimal `db:"price_usd"`
	Stock    int             `db:"stock"`
}

// GetProducts возвращает товары каталога по id. Отсутствующие id в результат не попадают.
func (s *postgresStorage) GetProducts(ctx context.Context, ids []string) (map[string]model.Product, error) {
	ctx, span := s.tracer.Start(ctx, "DB.GetProducts")
	defer span.End()

	var rows []productRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, name, slug, category, price_inr, price_usd, stock FROM products WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		metrics.DBErrors.WithLabelValues("get_products").Inc()
		return nil, fmt.Errorf("ошибка получения товаров: %w", err)
	}

	products := make(map[string]model.Product, len(rows))
	for _, r := range rows {
		products[r.ID] = model.Product{
			ID:       r.ID,
			Name:     r.Name,
			Slug:     r.Slug,
			Category: r.Category,
			PriceINR: r.PriceINR,
			PriceUSD: r.PriceUSD,
			Stock:    r.Stock,
		}
	}
	return products, nil
}

func (s *postgresStorage) UpsertProduct(ctx context.Context, p model.Product) error {
	ctx, span := s.tracer.Start(ctx, "DB.UpsertProduct")
	defer span.End()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (id, name, slug, category, price_inr, price_usd, stock) VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, slug = EXCLUDED.slug, category = EXCLUDED.category,
        price_inr = EXCLUDED.price_inr, price_usd = EXCLUDED.price_usd, stock = EXCLUDED.stock, updated_at = now()`,
		p.ID, p.Name, p.Slug, p.Category, p.PriceINR, p.PriceUSD, p.Stock)
	if err != nil {
		metrics.DBErrors.WithLabelValues("upsert_product").Inc()
		return fmt.Errorf("ошибка сохранения товара: %w", err)
	}
	return nil
}

// Ping проверяет соединение с БД.
func (s *postgresStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close закрывает соединение с БД.
func (s *postgresStorage) Close() error {
	return s.db.Close()
}
