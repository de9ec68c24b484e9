package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"shopcheckout/internal/domain/model"
	repo "shopcheckout/internal/repository"

	"go.uber.org/zap"
)

// PaymentUsecase は入金の確定。
// 信用するのはサーバー側で検証した署名だけで、クライアントから来た値はヒント扱い。
type PaymentUsecase struct {
	tx         repo.TransactionManager
	gateway    PaymentGateway
	finalizer  *OrderFinalizer
	clock      Clock
	maxRetries uint64
	log        *zap.Logger
}

func NewPaymentUsecase(
	tx repo.TransactionManager,
	gateway PaymentGateway,
	finalizer *OrderFinalizer,
	clock Clock,
	maxRetries uint64,
	log *zap.Logger,
) *PaymentUsecase {
	return &PaymentUsecase{
		tx:         tx,
		gateway:    gateway,
		finalizer:  finalizer,
		clock:      clock,
		maxRetries: maxRetries,
		log:        log,
	}
}

// クライアントの決済完了通知（razorpay_*）
type PaymentDetails struct {
	GatewayOrderID   string `json:"razorpay_order_id"`
	GatewayPaymentID string `json:"razorpay_payment_id"`
	Signature        string `json:"razorpay_signature"`
}

type WebhookResult struct {
	Event      string `json:"event"`
	Handled    bool   `json:"handled"`
	CheckoutID string `json:"checkout_id,omitempty"`
	OrderID    string `json:"order_id,omitempty"`
}

// RecordClientPayment は PUT /checkout/:id/pay 。
// 署名が正しければ試行をCONFIRMED、チェックアウトをPAIDにする（何度呼んでも同じ）。
func (u *PaymentUsecase) RecordClientPayment(ctx context.Context, owner model.OwnerKey, checkoutID string, d PaymentDetails) (model.Checkout, error) {
	if !owner.Valid() {
		return model.Checkout{}, ErrUnauthorized
	}
	d.GatewayOrderID = strings.TrimSpace(d.GatewayOrderID)
	d.GatewayPaymentID = strings.TrimSpace(d.GatewayPaymentID)
	d.Signature = strings.TrimSpace(d.Signature)
	if d.GatewayOrderID == "" || d.GatewayPaymentID == "" || d.Signature == "" {
		return model.Checkout{}, NewHTTPError(http.StatusBadRequest, "invalid payment_details")
	}

	//所有チェックが先（他人のチェックアウトIDで署名を試させない）
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		_, err := findOwnedCheckout(ctx, r, owner, checkoutID)
		return err
	})
	if err != nil {
		return model.Checkout{}, err
	}

	raw, _ := json.Marshal(d)
	if !u.gateway.VerifyPaymentSignature(d.GatewayOrderID, d.GatewayPaymentID, d.Signature) {
		u.rejectSignature(ctx, checkoutID, "client", raw)
		return model.Checkout{}, ErrInvalidSignature
	}

	return u.confirm(ctx, d.GatewayOrderID, d.GatewayPaymentID, string(raw), checkoutID)
}

// HandleWebhook は POST /webhooks/payment 。
// payment.captured / order.paid で入金確定してそのまま注文確定まで進める。
func (u *PaymentUsecase) HandleWebhook(ctx context.Context, body []byte, signature string) (WebhookResult, error) {
	if !u.gateway.VerifyWebhookSignature(body, signature) {
		u.rejectSignature(ctx, "", "webhook", body)
		return WebhookResult{}, ErrInvalidSignature
	}

	ev, err := u.gateway.ParseWebhookEvent(body)
	if err != nil {
		return WebhookResult{}, NewHTTPError(http.StatusBadRequest, "invalid webhook payload")
	}
	res := WebhookResult{Event: string(ev.Type)}

	switch ev.Type {
	case WebhookPaymentCaptured, WebhookOrderPaid:
		checkout, err := u.confirm(ctx, ev.GatewayOrderID, ev.GatewayPaymentID, string(body), "")
		if errors.Is(err, ErrNotFound) {
			//こちらで作っていない注文。再送されても変わらないので受け取って終わり
			u.log.Warn("webhook for unknown payment order", zap.String("gateway_order_id", ev.GatewayOrderID))
			return res, nil
		}
		if err != nil {
			return WebhookResult{}, err
		}
		res.CheckoutID = checkout.ID

		order, err := u.finalizer.Finalize(ctx, checkout.ID)
		if errors.Is(err, ErrCheckoutNotPaid) {
			u.log.Warn("webhook confirmed payment but checkout cannot be finalized",
				zap.String("checkout_id", checkout.ID),
				zap.String("status", checkout.Status.String()),
			)
			res.Handled = true
			return res, nil
		}
		if err != nil {
			return WebhookResult{}, err
		}
		res.OrderID = order.ID
		res.Handled = true
		return res, nil

	case WebhookPaymentFailed:
		checkoutID, err := u.markFailed(ctx, ev.GatewayOrderID, ev.GatewayPaymentID, string(body))
		if err != nil {
			return WebhookResult{}, err
		}
		res.CheckoutID = checkoutID
		res.Handled = checkoutID != ""
		return res, nil

	default:
		return res, nil
	}
}

// 試行をCONFIRMEDにしてチェックアウトをPAIDへ。
// checkoutIDが空でなければ、試行がそのチェックアウトのものかも確認する
func (u *PaymentUsecase) confirm(ctx context.Context, gatewayOrderID, gatewayPaymentID, raw string, checkoutID string) (model.Checkout, error) {
	var out model.Checkout
	err := retryOnConflict(ctx, u.maxRetries, func() error {
		return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			attempt, err := r.PaymentAttempts().FindByCorrelationID(ctx, gatewayOrderID)
			if errors.Is(err, repo.ErrNotFound) {
				if checkoutID != "" {
					return ErrPaymentMismatch
				}
				return ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("find payment attempt: %w", err)
			}
			if checkoutID != "" && attempt.CheckoutID != checkoutID {
				return ErrPaymentMismatch
			}

			c, err := r.Checkouts().FindByID(ctx, attempt.CheckoutID)
			if err != nil {
				return fmt.Errorf("find checkout: %w", err)
			}

			confirmed, err := r.PaymentAttempts().FindConfirmedByCheckoutID(ctx, c.ID)
			if err == nil {
				//確定は1チェックアウトにつき1回だけ
				if confirmed.ID != attempt.ID || confirmed.GatewayPaymentID != gatewayPaymentID {
					u.log.Warn("second payment confirmation ignored",
						zap.String("checkout_id", c.ID),
						zap.String("confirmed_payment_id", confirmed.GatewayPaymentID),
						zap.String("payment_id", gatewayPaymentID),
					)
				}
				out = c
				return nil
			}
			if !errors.Is(err, repo.ErrNotFound) {
				return fmt.Errorf("find confirmed attempt: %w", err)
			}

			attempt.Status = model.PaymentAttemptConfirmed
			attempt.GatewayPaymentID = gatewayPaymentID
			attempt.RawCallbackPayload = raw
			if err := r.PaymentAttempts().Update(ctx, attempt); err != nil {
				if errors.Is(err, repo.ErrDuplicate) {
					//同時に別の確定が入った。読み直せば上の分岐に入る
					return repo.ErrVersionConflict
				}
				return fmt.Errorf("confirm payment attempt: %w", err)
			}

			now := u.clock.Now()
			switch c.Status {
			case model.CheckoutStatusPaymentPending, model.CheckoutStatusAbandoned:
				//時間切れ後でも署名済みの入金ならPAID（お金は受け取っている）
				c.Status = model.CheckoutStatusPaid
				c.PaidAt = &now
			case model.CheckoutStatusCancelled:
				//キャンセル後の入金。状態はそのままで、確定できるよう入金時刻だけ残す
				c.PaidAt = &now
			default:
				out = c
				return nil
			}
			c.PaymentGatewayOrderID = gatewayOrderID

			saved, err := r.Checkouts().Save(ctx, c)
			if err != nil {
				return err
			}
			out = saved
			return nil
		})
	})
	if err != nil {
		return model.Checkout{}, err
	}

	u.log.Info("payment confirmed",
		zap.String("checkout_id", out.ID),
		zap.String("gateway_order_id", gatewayOrderID),
		zap.String("status", out.Status.String()),
	)
	return out, nil
}

// payment.failed。チェックアウトはPAYMENT_PENDINGのまま（作り直しできる）
func (u *PaymentUsecase) markFailed(ctx context.Context, gatewayOrderID, gatewayPaymentID, raw string) (string, error) {
	var checkoutID string
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		attempt, err := r.PaymentAttempts().FindByCorrelationID(ctx, gatewayOrderID)
		if errors.Is(err, repo.ErrNotFound) {
			u.log.Warn("payment.failed for unknown payment order", zap.String("gateway_order_id", gatewayOrderID))
			return nil
		}
		if err != nil {
			return fmt.Errorf("find payment attempt: %w", err)
		}
		if attempt.Status != model.PaymentAttemptInitiated {
			checkoutID = attempt.CheckoutID
			return nil
		}

		attempt.Status = model.PaymentAttemptFailed
		attempt.GatewayPaymentID = gatewayPaymentID
		attempt.RawCallbackPayload = raw
		if err := r.PaymentAttempts().Update(ctx, attempt); err != nil {
			return fmt.Errorf("mark payment attempt failed: %w", err)
		}
		checkoutID = attempt.CheckoutID
		return nil
	})
	if err != nil {
		return "", err
	}
	return checkoutID, nil
}

// 署名NGは状態を変えず、監査ログと警告ログだけ残す
func (u *PaymentUsecase) rejectSignature(ctx context.Context, checkoutID string, source string, payload []byte) {
	u.log.Warn("payment signature rejected",
		zap.String("source", source),
		zap.String("checkout_id", checkoutID),
	)

	resourceType := model.AuditResourcePayment
	resourceID := source
	if checkoutID != "" {
		resourceType = model.AuditResourceCheckout
		resourceID = checkoutID
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		return r.AuditLogs().Create(ctx, model.AuditLog{
			Action:       model.AuditActionPaymentSignatureRejected,
			ResourceType: resourceType,
			ResourceID:   resourceID,
			AfterJSON:    string(payload),
			CreatedAt:    u.clock.Now(),
		})
	})
	if err != nil {
		u.log.Error("audit log write failed", zap.Error(err))
	}
}
