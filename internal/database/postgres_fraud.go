package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/metrics"
	"storefront/internal/model"
)

type fraudFlagRow struct {
	ID             string       `db:"id"`
	OrderID        string       `db:"order_id"`
	UserID         string       `db:"user_id"`
	IPAddress      string       `db:"ip_address"`
	Email          string       `db:"email"`
	FlagType       string       `db:"flag_type"`
	Severity       string       `db:"severity"`
	Score          int          `db:"score"`
	TriggeredRules []byte       `db:"triggered_rules"`
	Metadata       []byte       `db:"metadata"`
	Status         string       `db:"status"`
	FalsePositive  bool         `db:"false_positive"`
	CreatedAt      time.Time    `db:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at"`
	ReviewedAt     sql.NullTime `db:"reviewed_at"`
	ReviewedBy     string       `db:"reviewed_by"`
}

func (r fraudFlagRow) toModel() (*model.FraudFlag, error) {
	f := &model.FraudFlag{
		ID:            r.ID,
		OrderID:       r.OrderID,
		UserID:        r.UserID,
		IPAddress:     r.IPAddress,
		Email:         r.Email,
		Type:          model.FraudFlagType(r.FlagType),
		Severity:      model.FraudSeverity(r.Severity),
		Score:         r.Score,
		Status:        model.FraudStatus(r.Status),
		FalsePositive: r.FalsePositive,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		ReviewedBy:    r.ReviewedBy,
	}
	if r.ReviewedAt.Valid {
		t := r.ReviewedAt.Time
		f.ReviewedAt = &t
	}
	if err := json.Unmarshal(r.TriggeredRules, &f.TriggeredRules); err != nil {
		return nil, fmt.Errorf("повреждены правила флага %s: %w", r.ID, err)
	}
	if err := json.Unmarshal(r.Metadata, &f.Metadata); err != nil {
		return nil, fmt.Errorf("повреждены метаданные флага %s: %w", r.ID, err)
	}
	return f, nil
}

const selectFlagColumns = `SELECT id, order_id, user_id, ip_address, email, flag_type, severity, score, triggered_rules, metadata,
        status, false_positive, created_at, updated_at, reviewed_at, reviewed_by FROM fraud_flags`

func (s *postgresStorage) SaveFraudFlag(ctx context.Context, flag *model.FraudFlag) error {
	ctx, span := s.tracer.Start(ctx, "DB.SaveFraudFlag")
	defer span.End()

	rules, err := json.Marshal(flag.TriggeredRules)
	if err != nil {
		return fmt.Errorf("ошибка сериализации правил: %w", err)
	}
	md, err := json.Marshal(flag.Metadata)
	if err != nil {
		return fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO fraud_flags (id, order_id, user_id, ip_address, email, flag_type, severity, score, triggered_rules, metadata,
        status, false_positive, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		flag.ID, flag.OrderID, flag.UserID, flag.IPAddress, flag.Email, flag.Type, flag.Severity, flag.Score, rules, md,
		flag.Status, flag.FalsePositive, flag.CreatedAt, flag.UpdatedAt)
	if err != nil {
		metrics.DBErrors.WithLabelValues("save_fraud_flag").Inc()
		return fmt.Errorf("ошибка сохранения фрод-флага: %w", err)
	}
	return nil
}

func (s *postgresStorage) MarkFraudFlagUnderReview(ctx context.Context, flagID string) error {
	ctx, span := s.tracer.Start(ctx, "DB.MarkFraudFlagUnderReview")
	defer span.End()

	_, err := s.db.ExecContext(ctx,
		`UPDATE fraud_flags SET status = $2, updated_at = now() WHERE id = $1 AND status = $3`,
		flagID, model.FraudStatusUnderReview, model.FraudStatusPending)
	if err != nil {
		metrics.DBErrors.WithLabelValues("mark_fraud_flag").Inc()
		return fmt.Errorf("ошибка перевода флага на ревью: %w", err)
	}
	return nil
}

func (s *postgresStorage) GetFraudFlag(ctx context.Context, id string) (*model.FraudFlag, error) {
	ctx, span := s.tracer.Start(ctx, "DB.GetFraudFlag")
	defer span.End()

	var row fraudFlagRow
	if err := s.db.GetContext(ctx, &row, selectFlagColumns+` WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		metrics.DBErrors.WithLabelValues("get_fraud_flag").Inc()
		return nil, fmt.Errorf("не удалось получить фрод-флаг: %w", err)
	}
	return row.toModel()
}

// ListFraudFlags выбирает флаги по заказу и/или периоду, новые первыми.
func (s *postgresStorage) ListFraudFlags(ctx context.Context, filter model.FraudFlagFilter) ([]model.FraudFlag, error) {
	ctx, span := s.tracer.Start(ctx, "DB.ListFraudFlags")
	defer span.End()

	query := selectFlagColumns + ` WHERE ($1 = '' OR order_id = $1)
        AND ($2::timestamptz IS NULL OR created_at >= $2)
        AND ($3::timestamptz IS NULL OR created_at <= $3)
        ORDER BY created_at DESC`

	var rows []fraudFlagRow
	if err := s.db.SelectContext(ctx, &rows, query, filter.OrderID, nullTime(filter.From), nullTime(filter.To)); err != nil {
		metrics.DBErrors.WithLabelValues("list_fraud_flags").Inc()
		return nil, fmt.Errorf("ошибка получения фрод-флагов: %w", err)
	}

	flags := make([]model.FraudFlag, 0, len(rows))
	for _, r := range rows {
		f, err := r.toModel()
		if err != nil {
			return nil, err
		}
		flags = append(flags, *f)
	}
	return flags, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// ReviewFraudFlag - compare-and-set по текущему статусу флага.
func (s *postgresStorage) ReviewFraudFlag(ctx context.Context, id string, from model.FraudStatus, review model.FraudReview) (*model.FraudFlag, error) {
	ctx, span := s.tracer.Start(ctx, "DB.ReviewFraudFlag")
	defer span.End()

	res, err := s.db.ExecContext(ctx,
		`UPDATE fraud_flags SET status = $3, false_positive = $4, reviewed_by = $5, reviewed_at = $6, updated_at = $6
        WHERE id = $1 AND status = $2`,
		id, from, review.Status, review.Status == model.FraudStatusFalsePositive, review.ReviewedBy, review.ReviewedAt)
	if err != nil {
		metrics.DBErrors.WithLabelValues("review_fraud_flag").Inc()
		return nil, fmt.Errorf("ошибка обновления фрод-флага: %w", err)
	}
	if err := s.checkAffected(ctx, res, `SELECT EXISTS(SELECT 1 FROM fraud_flags WHERE id = $1)`, id); err != nil {
		return nil, err
	}
	return s.GetFraudFlag(ctx, id)
}

func (s *postgresStorage) RecordPaymentFailure(ctx context.Context, f *model.PaymentFailure) error {
	ctx, span := s.tracer.Start(ctx, "DB.RecordPaymentFailure")
	defer span.End()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payment_failures (id, gateway_order_id, gateway_payment_id, ip_address, email, user_id, reason, amount, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		f.ID, f.GatewayOrderID, f.GatewayPaymentID, f.IPAddress, f.Email, f.UserID, f.Reason, f.Amount, f.CreatedAt)
	if err != nil {
		metrics.DBErrors.WithLabelValues("record_payment_failure").Inc()
		return fmt.Errorf("ошибка сохранения неуспешной оплаты: %w", err)
	}
	return nil
}

// actorFilter выбирает колонку поиска истории: IP, затем email, затем user id.
// Имена колонок берутся только из этого белого списка.
func actorFilter(actor model.Actor, ipCol, emailCol, userCol string) (string, string, bool) {
	switch {
	case actor.IPAddress != "":
		return ipCol, actor.IPAddress, true
	case actor.Email != "":
		return emailCol, actor.Email, true
	case actor.UserID != "" && userCol != "":
		return userCol, actor.UserID, true
	}
	return "", "", false
}

// RecentOrderTimes возвращает время создания заказов актора начиная с since, кроме excludeOrderID.
func (s *postgresStorage) RecentOrderTimes(ctx context.Context, actor model.Actor, since time.Time, excludeOrderID string) ([]time.Time, error) {
	ctx, span := s.tracer.Start(ctx, "DB.RecentOrderTimes")
	defer span.End()

	col, val, ok := actorFilter(actor, "client_ip", "customer_email", "")
	if !ok {
		return nil, nil
	}
	var times []time.Time
	query := fmt.Sprintf(`SELECT created_at FROM orders WHERE %s = $1 AND created_at >= $2 AND id <> $3 ORDER BY created_at DESC`, col)
	if err := s.db.SelectContext(ctx, &times, query, val, since, excludeOrderID); err != nil {
		metrics.DBErrors.WithLabelValues("recent_orders").Inc()
		return nil, fmt.Errorf("ошибка получения истории заказов: %w", err)
	}
	return times, nil
}

// PaymentFailureTimes возвращает время неуспешных оплат актора начиная с since.
func (s *postgresStorage) PaymentFailureTimes(ctx context.Context, actor model.Actor, since time.Time) ([]time.Time, error) {
	ctx, span := s.tracer.Start(ctx, "DB.PaymentFailureTimes")
	defer span.End()

	col, val, ok := actorFilter(actor, "ip_address", "email", "user_id")
	if !ok {
		return nil, nil
	}
	var times []time.Time
	query := fmt.Sprintf(`SELECT created_at FROM payment_failures WHERE %s = $1 AND created_at >= $2 ORDER BY created_at DESC`, col)
	if err := s.db.SelectContext(ctx, &times, query, val, since); err != nil {
		metrics.DBErrors.WithLabelValues("recent_payment_failures").Inc()
		return nil, fmt.Errorf("ошибка получения истории оплат: %w", err)
	}
	return times, nil
}

func (s *postgresStorage) RecordStockException(ctx context.Context, e model.StockException) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "DB.RecordStockException")
	defer span.End()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO stock_exceptions (gateway_order_id, reason, detail, created_at) VALUES ($1, $2, $3, $4)
        ON CONFLICT (gateway_order_id) DO NOTHING`,
		e.GatewayOrderID, e.Reason, e.Detail, e.CreatedAt)
	if err != nil {
		metrics.DBErrors.WithLabelValues("record_stock_exception").Inc()
		return false, fmt.Errorf("ошибка сохранения исключения по остаткам: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ошибка получения числа строк: %w", err)
	}
	return n > 0, nil
}

func (s *postgresStorage) MarkWebhookDelivery(ctx context.Context, d model.WebhookDelivery) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "DB.MarkWebhookDelivery")
	defer span.End()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO webhook_deliveries (event, gateway_order_id, gateway_payment_id, received_at) VALUES ($1, $2, $3, $4)
        ON CONFLICT (event, gateway_order_id, gateway_payment_id) DO NOTHING`,
		d.Event, d.GatewayOrderID, d.GatewayPaymentID, d.ReceivedAt)
	if err != nil {
		metrics.DBErrors.WithLabelValues("mark_webhook_delivery").Inc()
		return false, fmt.Errorf("ошибка сохранения доставки вебхука: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ошибка получения числа строк: %w", err)
	}
	return n > 0, nil
}
