package shop

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"stars-shop/internal/catalog"
	"stars-shop/internal/events"
	"stars-shop/internal/logger"
	"stars-shop/internal/metrics"
	"stars-shop/internal/models"
	"stars-shop/internal/payments"
	"stars-shop/internal/store"
)

type Service struct {
	log       *zap.Logger
	store     store.Store
	catalog   *catalog.Catalog
	provider  payments.Provider
	publisher events.Publisher
	metrics   *metrics.Metrics

	now func() time.Time
}

func NewService(
	log *zap.Logger,
	st store.Store,
	cat *catalog.Catalog,
	provider payments.Provider,
	publisher events.Publisher,
	m *metrics.Metrics,
) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		log:       log,
		store:     st,
		catalog:   cat,
		provider:  provider,
		publisher: publisher,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Catalog() *catalog.Catalog { return s.catalog }

func (s *Service) ProviderName() string { return s.provider.Name() }

type CreateInvoiceRequest struct {
	UserID    int64  `json:"userId"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type Invoice struct {
	PaymentID   string `json:"paymentId"`
	InvoiceLink string `json:"invoiceLink"`
}

// CreateInvoice records a pending payment and asks the provider for a link.
// If the provider fails the record is kept as failed.
func (s *Service) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (Invoice, error) {
	log := logger.FromCtx(ctx, s.log)

	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.UserID == 0 || req.ProductID == "" {
		return Invoice{}, fmt.Errorf("%w: userId and productId are required", ErrInvalidRequest)
	}
	if req.Quantity <= 0 {
		return Invoice{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidRequest)
	}

	product, ok := s.catalog.Get(req.ProductID)
	if !ok {
		return Invoice{}, ErrProductNotFound
	}
	if !product.InStock {
		return Invoice{}, ErrOutOfStock
	}
	if product.Price > 0 && int64(req.Quantity) > math.MaxInt64/product.Price {
		return Invoice{}, fmt.Errorf("%w: quantity too large", ErrInvalidRequest)
	}

	now := s.now()
	p := models.Payment{
		ID:        newPaymentID(now),
		UserID:    req.UserID,
		ProductID: product.ID,
		Quantity:  req.Quantity,
		Amount:    product.Price * int64(req.Quantity),
		Status:    models.StatusPending,
		CreatedAt: now,
	}

	payload, err := payments.EncodePayload(payments.Payload{PaymentID: p.ID, UserID: p.UserID})
	if err != nil {
		return Invoice{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if err := s.store.Create(ctx, p); err != nil {
		return Invoice{}, fmt.Errorf("save payment: %w", err)
	}
	s.publish(ctx, events.TypeCreated, p)

	link, err := s.provider.CreateInvoiceLink(ctx, models.Invoice{
		PaymentID:   p.ID,
		UserID:      p.UserID,
		Title:       product.Name,
		Description: product.Description,
		Payload:     payload,
		Label:       fmt.Sprintf("%s × %d", product.Name, req.Quantity),
		Amount:      p.Amount,
	})
	if err != nil {
		log.Error("create invoice link failed",
			zap.Error(err),
			zap.String("payment_id", p.ID),
			zap.String("provider", s.provider.Name()),
		)
		s.metrics.InvoiceFailed()

		failed, uerr := s.store.Update(ctx, p.ID, func(rec *models.Payment) error { return rec.MarkFailed() })
		if uerr != nil {
			log.Error("mark payment failed", zap.Error(uerr), zap.String("payment_id", p.ID))
		} else {
			s.publish(ctx, events.TypeFailed, failed)
		}
		return Invoice{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	if _, err := s.store.Update(ctx, p.ID, func(rec *models.Payment) error {
		rec.InvoiceLink = link
		return nil
	}); err != nil {
		log.Warn("save invoice link", zap.Error(err), zap.String("payment_id", p.ID))
	}

	s.metrics.InvoiceCreated(s.provider.Name())
	log.Info("invoice created",
		zap.String("payment_id", p.ID),
		zap.Int64("user_id", p.UserID),
		zap.String("product_id", p.ProductID),
		zap.Int64("amount", p.Amount),
	)
	return Invoice{PaymentID: p.ID, InvoiceLink: link}, nil
}

// ValidatePreCheckout accepts a checkout only for a known payment owned by the
// payload's user.
func (s *Service) ValidatePreCheckout(ctx context.Context, rawPayload string) error {
	pl, err := payments.DecodePayload(rawPayload)
	if err != nil {
		s.metrics.PreCheckout("rejected")
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	p, err := s.store.Get(ctx, pl.PaymentID)
	if errors.Is(err, store.ErrNotFound) {
		s.metrics.PreCheckout("rejected")
		return ErrPaymentNotFound
	}
	if err != nil {
		s.metrics.PreCheckout("rejected")
		return err
	}
	if p.UserID != pl.UserID {
		s.metrics.PreCheckout("rejected")
		return fmt.Errorf("%w: payment belongs to another user", ErrInvalidRequest)
	}
	// invoice links can be paid more than once; only a pending payment can settle
	if p.Status != models.StatusPending {
		s.metrics.PreCheckout("rejected")
		return fmt.Errorf("%w: status %s", ErrNotPending, p.Status)
	}

	s.metrics.PreCheckout("ok")
	logger.FromCtx(ctx, s.log).Info("pre-checkout approved", zap.String("payment_id", p.ID))
	return nil
}

type Completion struct {
	Payload     string
	ChargeID    string
	TotalAmount int64
}

// CompletePayment applies a successful_payment. applied reports whether this
// call moved the payment from pending to paid. Unknown payments are logged and
// dropped (applied=false, nil error). A payment that is no longer pending is
// left untouched and returned as stored, so repeated deliveries are harmless;
// a different charge for it is logged as orphaned.
func (s *Service) CompletePayment(ctx context.Context, c Completion) (p models.Payment, applied bool, err error) {
	log := logger.FromCtx(ctx, s.log)

	pl, err := payments.DecodePayload(c.Payload)
	if err != nil {
		log.Warn("successful payment with unreadable payload", zap.Error(err))
		s.metrics.UnknownPayment()
		return models.Payment{}, false, nil
	}

	p, err = s.store.Update(ctx, pl.PaymentID, func(rec *models.Payment) error {
		return rec.MarkPaid(c.ChargeID, c.TotalAmount, s.now())
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		log.Warn("successful payment for unknown payment id",
			zap.String("payment_id", pl.PaymentID),
			zap.String("charge_id", c.ChargeID),
		)
		s.metrics.UnknownPayment()
		return models.Payment{}, false, nil
	case errors.Is(err, models.ErrInvalidTransition):
		if p.ExternalChargeID == c.ChargeID {
			log.Info("duplicate successful payment ignored",
				zap.String("payment_id", p.ID),
				zap.String("charge_id", c.ChargeID),
			)
			return p, false, nil
		}
		log.Error("orphaned charge: payment is not pending",
			zap.String("payment_id", p.ID),
			zap.String("status", string(p.Status)),
			zap.String("charge_id", c.ChargeID),
			zap.String("stored_charge_id", p.ExternalChargeID),
			zap.Int64("user_id", p.UserID),
			zap.Int64("total_amount", c.TotalAmount),
		)
		s.metrics.OrphanedCharge()
		return p, false, nil
	case err != nil:
		return models.Payment{}, false, fmt.Errorf("complete payment %s: %w", pl.PaymentID, err)
	}

	s.metrics.PaymentCompleted(c.TotalAmount)
	s.publish(ctx, events.TypePaid, p)
	log.Info("payment successful",
		zap.String("payment_id", p.ID),
		zap.Int64("user_id", p.UserID),
		zap.Int64("total_amount", c.TotalAmount),
	)
	return p, true, nil
}

// CancelPayment moves a pending payment to failed; used when a checkout is
// abandoned on the stub provider page.
func (s *Service) CancelPayment(ctx context.Context, paymentID string) (models.Payment, error) {
	p, err := s.store.Update(ctx, paymentID, func(rec *models.Payment) error { return rec.MarkFailed() })
	if errors.Is(err, store.ErrNotFound) {
		return models.Payment{}, ErrPaymentNotFound
	}
	if errors.Is(err, models.ErrInvalidTransition) {
		return p, ErrNotPending
	}
	if err != nil {
		return models.Payment{}, err
	}
	s.publish(ctx, events.TypeFailed, p)
	return p, nil
}

// Refund returns the Stars of a paid payment through the provider.
func (s *Service) Refund(ctx context.Context, paymentID string) (models.Payment, error) {
	log := logger.FromCtx(ctx, s.log)

	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return models.Payment{}, fmt.Errorf("%w: paymentId is required", ErrInvalidRequest)
	}

	p, err := s.store.Get(ctx, paymentID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Payment{}, ErrPaymentNotFound
	}
	if err != nil {
		return models.Payment{}, err
	}
	if p.Status != models.StatusPaid {
		s.metrics.Refund("rejected")
		return p, ErrNotRefundable
	}
	if p.ExternalChargeID == "" {
		s.metrics.Refund("rejected")
		return p, ErrMissingChargeID
	}

	if err := s.provider.Refund(ctx, p.UserID, p.ExternalChargeID); err != nil {
		log.Error("provider refund failed",
			zap.Error(err),
			zap.String("payment_id", p.ID),
			zap.String("provider", s.provider.Name()),
		)
		s.metrics.Refund("error")
		return p, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	refunded, err := s.store.Update(ctx, paymentID, func(rec *models.Payment) error {
		return rec.MarkRefunded(s.now())
	})
	if errors.Is(err, models.ErrInvalidTransition) {
		// a concurrent refund got there first
		s.metrics.Refund("rejected")
		return refunded, ErrNotRefundable
	}
	if err != nil {
		return models.Payment{}, fmt.Errorf("mark refunded: %w", err)
	}

	s.metrics.Refund("ok")
	s.publish(ctx, events.TypeRefunded, refunded)
	log.Info("payment refunded", zap.String("payment_id", refunded.ID), zap.Int64("user_id", refunded.UserID))
	return refunded, nil
}

func (s *Service) Status(ctx context.Context, paymentID string) (models.Payment, error) {
	p, err := s.store.Get(ctx, paymentID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Payment{}, ErrPaymentNotFound
	}
	return p, err
}

// History lists a user's payments, newest first.
func (s *Service) History(ctx context.Context, userID int64) ([]models.Payment, error) {
	if userID == 0 {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidRequest)
	}
	return s.store.ListByUser(ctx, userID)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) publish(ctx context.Context, t events.Type, p models.Payment) {
	if err := s.publisher.Publish(ctx, events.NewPaymentEvent(t, p, s.now())); err != nil {
		logger.FromCtx(ctx, s.log).Warn("publish payment event",
			zap.Error(err),
			zap.String("event_type", string(t)),
			zap.String("payment_id", p.ID),
		)
	}
}

// newPaymentID returns pay_<unix-ms>_<8 hex chars>.
func newPaymentID(now time.Time) string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return fmt.Sprintf("pay_%d_%s", now.UnixMilli(), hex.EncodeToString(b[:]))
}
