package service

import (
	"context"
	"fmt"
	"log"

	"ewallet/internal/infrastructure/lock"
	"ewallet/internal/model"
	"ewallet/internal/repository"
	"ewallet/pkg/idgen"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CheckoutRequest struct {
	UserID        int64
	PaymentMethod string
	Notes         string
}

// CheckoutService 购物车下单
type CheckoutService struct {
	db          *gorm.DB
	cart        *CartService
	payment     *WalletPaymentService
	orderRepo   *repository.OrderRepository
	packageRepo *repository.PackageRepository
	settings    SettingsSource
	notifier    *Notifier
	locker      *lock.Locker
}

func NewCheckoutService(db *gorm.DB, cart *CartService, payment *WalletPaymentService, settings SettingsSource, notifier *Notifier, locker *lock.Locker) *CheckoutService {
	return &CheckoutService{
		db:          db,
		cart:        cart,
		payment:     payment,
		orderRepo:   repository.NewOrderRepository(db),
		packageRepo: repository.NewPackageRepository(db),
		settings:    settings,
		notifier:    notifier,
		locker:      locker,
	}
}

// Checkout 下单
//
// 【流程】一个事务内完成：
//  1. 按当前价格重新计算购物车
//  2. 逐个套餐条件扣库存
//  3. 创建订单和明细（带套餐快照）
//  4. 钱包支付时立即扣款，订单直接变为 paid
//
// 任何一步失败整体回滚，库存和余额都不会变；提交成功后才清空购物车
func (s *CheckoutService) Checkout(ctx context.Context, req *CheckoutRequest) (*model.Order, error) {
	settings, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if !contains(paymentMethods, req.PaymentMethod) || !settings.PaymentMethodEnabled(req.PaymentMethod) {
		return nil, ErrPaymentMethodDisabled
	}

	items, err := s.cart.store.Load(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("读取购物车失败: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrCartEmpty
	}

	var order *model.Order
	err = s.locker.WithWalletLock(ctx, req.UserID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			summary, err := s.cart.price(ctx, tx, items, settings.TaxRate, true)
			if err != nil {
				return err
			}
			if summary.IsEmpty() {
				return ErrCartEmpty
			}

			order = &model.Order{
				OrderNumber:   idgen.GenerateOrderNumber(),
				UserID:        req.UserID,
				Status:        model.OrderStatusPending,
				PaymentStatus: model.PaymentStatusPending,
				PaymentMethod: req.PaymentMethod,
				Subtotal:      summary.Subtotal,
				Tax:           summary.Tax,
				Total:         summary.Total,
				Notes:         req.Notes,
				Metadata: datatypes.JSONMap{
					"item_count": summary.ItemCount,
					"tax_rate":   settings.TaxRate.String(),
					"points":     summary.Points,
				},
			}
			for _, line := range summary.Lines {
				if err := s.packageRepo.DecrementStock(ctx, tx, line.PackageID, line.Quantity); err != nil {
					return err
				}
				order.Items = append(order.Items, model.OrderItem{
					PackageID:       line.PackageID,
					PackageName:     line.Name,
					Quantity:        line.Quantity,
					UnitPrice:       line.UnitPrice,
					TotalPrice:      line.LineTotal,
					Points:          line.Points,
					PackageSnapshot: datatypes.NewJSONType(line.pkg.Snapshot()),
				})
			}

			if err := s.orderRepo.Create(ctx, tx, order); err != nil {
				return fmt.Errorf("创建订单失败: %w", err)
			}

			if req.PaymentMethod == model.PaymentMethodWallet {
				return s.payment.Pay(ctx, tx, order, settings)
			}
			return nil
		})
	})
	if err != nil {
		log.Printf("[CheckoutService] 下单失败: userID=%d, method=%s, err=%v", req.UserID, req.PaymentMethod, err)
		return nil, err
	}

	if err := s.cart.Clear(ctx, req.UserID); err != nil {
		log.Printf("[CheckoutService] WARN 清空购物车失败: userID=%d, err=%v", req.UserID, err)
	}

	log.Printf("[CheckoutService] 下单成功: orderNo=%s, userID=%d, total=%s, status=%s",
		order.OrderNumber, req.UserID, order.Total.StringFixed(2), order.Status)

	s.notifier.NotifyUser(ctx, req.UserID, model.EventOrderPlaced, orderData(order))
	return order, nil
}
