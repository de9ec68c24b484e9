package model

import "time"

type AuditAction string

const (
	//署名検証に失敗した決済通知
	AuditActionPaymentSignatureRejected AuditAction = "PAYMENT_SIGNATURE_REJECTED"
	//チェックアウトのキャンセル
	AuditActionCheckoutCancelled AuditAction = "CHECKOUT_CANCELLED"
	//注文の出荷ステータス変更
	AuditActionUpdateFulfillmentStatus AuditAction = "UPDATE_FULFILLMENT_STATUS"
)

func (a AuditAction) Valid() bool {
	switch a {
	case AuditActionPaymentSignatureRejected, AuditActionCheckoutCancelled, AuditActionUpdateFulfillmentStatus:
		return true
	}
	return false
}

// 何に対する操作か
type AuditResourceType string

const (
	AuditResourceCheckout AuditResourceType = "checkout"
	AuditResourcePayment  AuditResourceType = "payment"
	AuditResourceOrder    AuditResourceType = "order"
)

func (t AuditResourceType) Valid() bool {
	return t == AuditResourceCheckout || t == AuditResourcePayment || t == AuditResourceOrder
}

// 監査ログ。
// 「誰が」「何を」「どの対象に」「どう変えたか」を残す。Webhookなど操作者がいないときはActorUserIDがnil。
type AuditLog struct {
	ID           int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	ActorUserID  *int64            `gorm:"index" json:"actor_user_id,omitempty"`
	Action       AuditAction       `gorm:"type:varchar(50);not null;index" json:"action"`
	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`
	ResourceID   string            `gorm:"type:varchar(64);not null;index" json:"resource_id"`
	BeforeJSON   string            `gorm:"type:text" json:"before_json"`
	AfterJSON    string            `gorm:"type:text" json:"after_json"`
	CreatedAt    time.Time         `gorm:"not null;index" json:"created_at"`
}
