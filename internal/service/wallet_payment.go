package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"ewallet/internal/model"
	"ewallet/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 订单 metadata 中记录钱包扣款拆分的 key，值为 bucket -> 金额
const walletPaymentKey = "wallet_payment"

// WalletPaymentService 钱包支付 / 退款
//
// 两个方法都必须在调用方的事务里执行，失败时由调用方整体回滚
type WalletPaymentService struct {
	walletRepo *repository.WalletRepository
	transRepo  *repository.TransactionRepository
	orderRepo  *repository.OrderRepository
}

func NewWalletPaymentService(db *gorm.DB) *WalletPaymentService {
	return &WalletPaymentService{
		walletRepo: repository.NewWalletRepository(db),
		transRepo:  repository.NewTransactionRepository(db),
		orderRepo:  repository.NewOrderRepository(db),
	}
}

// paymentSplit 扣款拆分，按 bucket 固定顺序遍历
type paymentSplit map[model.Bucket]decimal.Decimal

var bucketOrder = []model.Bucket{model.BucketBalance, model.BucketPurchase, model.BucketMLM}

func (p paymentSplit) toMetadata() map[string]interface{} {
	m := make(map[string]interface{}, len(p))
	for bucket, amount := range p {
		m[string(bucket)] = amount.StringFixed(2)
	}
	return m
}

// splitFromMetadata 读回下单时记录的拆分，格式不对返回 false
func splitFromMetadata(metadata datatypes.JSONMap) (paymentSplit, bool) {
	raw, ok := metadata[walletPaymentKey].(map[string]interface{})
	if !ok {
		return nil, false
	}
	split := make(paymentSplit, len(raw))
	for k, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		amount, err := decimal.NewFromString(s)
		if err != nil {
			return nil, false
		}
		split[model.Bucket(k)] = amount
	}
	return split, true
}

// Pay 钱包支付
//
// legacy 模式扣 balance；segregated 模式先扣 purchase_balance 再扣 mlm_balance。
// 每个被扣到的 bucket 写一条 payment 流水，订单 pending -> paid
func (s *WalletPaymentService) Pay(ctx context.Context, tx *gorm.DB, order *model.Order, settings *Settings) error {
	split := paymentSplit{}
	if settings.Segregated() {
		deduction, err := s.walletRepo.DeductCombined(ctx, tx, order.UserID, order.Total)
		if err != nil {
			return err
		}
		split[model.BucketPurchase] = deduction.FromPurchase
		split[model.BucketMLM] = deduction.FromMLM
	} else {
		if err := s.walletRepo.Deduct(ctx, tx, order.UserID, model.BucketBalance, order.Total); err != nil {
			return err
		}
		split[model.BucketBalance] = order.Total
	}

	now := time.Now()
	for _, bucket := range bucketOrder {
		amount, ok := split[bucket]
		if !ok || !amount.IsPositive() {
			continue
		}
		payment := &model.Transaction{
			UserID:      order.UserID,
			Type:        model.TransactionTypePayment,
			Amount:      amount,
			Status:      model.TransactionStatusApproved,
			Bucket:      bucket,
			Description: fmt.Sprintf("Payment for order %s", order.OrderNumber),
			OrderID:     &order.ID,
			ApprovedAt:  &now,
		}
		if err := s.transRepo.Create(ctx, tx, payment); err != nil {
			return fmt.Errorf("创建支付流水失败: %w", err)
		}
	}

	metadata := datatypes.JSONMap{}
	for k, v := range order.Metadata {
		metadata[k] = v
	}
	metadata[walletPaymentKey] = split.toMetadata()

	points := 0
	for _, item := range order.Items {
		points += item.Points
	}

	err := s.orderRepo.UpdateStatus(ctx, tx, order.ID, model.OrderStatusPending, model.OrderStatusPaid, map[string]interface{}{
		"payment_status": model.PaymentStatusPaid,
		"points_awarded": points,
		"metadata":       metadata,
		"paid_at":        &now,
	})
	if err != nil {
		return err
	}

	order.Status = model.OrderStatusPaid
	order.PaymentStatus = model.PaymentStatusPaid
	order.PointsAwarded = points
	order.Metadata = metadata
	order.PaidAt = &now

	log.Printf("[WalletPayment] 钱包支付成功: orderNo=%s, userID=%d, total=%s",
		order.OrderNumber, order.UserID, order.Total.StringFixed(2))
	return nil
}

// Refund 按支付时的拆分原路退回，并写 refund 流水
//
// 没有拆分记录的已支付订单（线下付款后由后台确认）退到 fallback 桶
func (s *WalletPaymentService) Refund(ctx context.Context, tx *gorm.DB, order *model.Order, fallback model.Bucket) error {
	split, ok := splitFromMetadata(order.Metadata)
	if !ok {
		split = paymentSplit{fallback: order.Total}
	}

	if _, err := s.walletRepo.GetOrCreate(ctx, tx, order.UserID); err != nil {
		return err
	}

	now := time.Now()
	for _, bucket := range bucketOrder {
		amount, ok := split[bucket]
		if !ok || !amount.IsPositive() {
			continue
		}
		if err := s.walletRepo.Increase(ctx, tx, order.UserID, bucket, amount); err != nil {
			return err
		}
		refund := &model.Transaction{
			UserID:      order.UserID,
			Type:        model.TransactionTypeRefund,
			Amount:      amount,
			Status:      model.TransactionStatusApproved,
			Bucket:      bucket,
			Description: fmt.Sprintf("Refund for order %s", order.OrderNumber),
			OrderID:     &order.ID,
			ApprovedAt:  &now,
		}
		if err := s.transRepo.Create(ctx, tx, refund); err != nil {
			return fmt.Errorf("创建退款流水失败: %w", err)
		}
	}

	log.Printf("[WalletPayment] 订单退款: orderNo=%s, userID=%d, total=%s",
		order.OrderNumber, order.UserID, order.Total.StringFixed(2))
	return nil
}
