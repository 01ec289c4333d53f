package service

import (
	"context"
	"log"
	"time"

	"ewallet/internal/infrastructure/lock"
	"ewallet/internal/model"
	"ewallet/internal/repository"

	"gorm.io/gorm"
)

type OrderService struct {
	db          *gorm.DB
	orderRepo   *repository.OrderRepository
	packageRepo *repository.PackageRepository
	payment     *WalletPaymentService
	settings    SettingsSource
	notifier    *Notifier
	locker      *lock.Locker
}

func NewOrderService(db *gorm.DB, payment *WalletPaymentService, settings SettingsSource, notifier *Notifier, locker *lock.Locker) *OrderService {
	return &OrderService{
		db:          db,
		orderRepo:   repository.NewOrderRepository(db),
		packageRepo: repository.NewPackageRepository(db),
		payment:     payment,
		settings:    settings,
		notifier:    notifier,
		locker:      locker,
	}
}

func (s *OrderService) List(ctx context.Context, userID int64, page, perPage int) ([]*model.Order, int64, error) {
	return s.orderRepo.ListByUserID(ctx, userID, normalizePage(page), NormalizePerPage(perPage))
}

func (s *OrderService) Get(ctx context.Context, userID, orderID int64) (*model.Order, error) {
	return s.orderRepo.GetForUser(ctx, userID, orderID)
}

// restoreStock 归还订单占用的库存
func (s *OrderService) restoreStock(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	for _, item := range order.Items {
		if err := s.packageRepo.RestoreStock(ctx, tx, item.PackageID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// Cancel 用户取消订单
//
// 已支付的订单按原路全额退款，库存归还；状态用条件更新，重复取消只会成功一次
func (s *OrderService) Cancel(ctx context.Context, userID, orderID int64, reason string) (*model.Order, error) {
	order, err := s.orderRepo.GetForUser(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if !order.CanBeCancelled() {
		return nil, ErrOrderCannotBeCancelled
	}
	settings, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "Cancelled by customer"
	}

	wasPaid := order.IsPaid()
	err = s.locker.WithWalletLock(ctx, userID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			extra := map[string]interface{}{"cancellation_reason": reason}
			if wasPaid {
				extra["payment_status"] = model.PaymentStatusRefunded
			}
			if err := s.orderRepo.UpdateStatus(ctx, tx, order.ID, order.Status, model.OrderStatusCancelled, extra); err != nil {
				return err
			}
			if wasPaid {
				if err := s.payment.Refund(ctx, tx, order, settings.BucketFor(OpDeposit)); err != nil {
					return err
				}
			}
			return s.restoreStock(ctx, tx, order)
		})
	})
	if err != nil {
		log.Printf("[OrderService] 取消订单失败: orderNo=%s, err=%v", order.OrderNumber, err)
		return nil, err
	}

	cancelled, err := s.orderRepo.GetByID(ctx, nil, order.ID)
	if err != nil {
		return nil, err
	}

	log.Printf("[OrderService] 订单已取消: orderNo=%s, refunded=%v", cancelled.OrderNumber, wasPaid)
	s.notifier.NotifyUser(ctx, userID, model.EventOrderCancelled, orderData(cancelled))
	return cancelled, nil
}

// AdminUpdateStatus 后台推进订单：线下付款确认（paid）、处理中、已完成
func (s *OrderService) AdminUpdateStatus(ctx context.Context, orderID int64, status string) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, nil, orderID)
	if err != nil {
		return nil, err
	}

	extra := map[string]interface{}{}
	switch status {
	case model.OrderStatusPaid:
		points := 0
		for _, item := range order.Items {
			points += item.Points
		}
		extra["payment_status"] = model.PaymentStatusPaid
		extra["points_awarded"] = points
	case model.OrderStatusProcessing, model.OrderStatusCompleted:
	default:
		return nil, ErrInvalidOrderStatus
	}

	if err := s.orderRepo.UpdateStatus(ctx, nil, order.ID, order.Status, status, extra); err != nil {
		return nil, err
	}
	log.Printf("[OrderService] 订单状态变更: orderNo=%s, %s -> %s", order.OrderNumber, order.Status, status)
	return s.orderRepo.GetByID(ctx, nil, order.ID)
}

// FailExpired 超时未支付的订单置为 failed 并归还库存，返回处理成功的数量
func (s *OrderService) FailExpired(ctx context.Context, timeout time.Duration, limit int) (int, error) {
	orders, err := s.orderRepo.GetExpiredPendingOrders(ctx, time.Now().Add(-timeout), limit)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, order := range orders {
		err := s.db.Transaction(func(tx *gorm.DB) error {
			err := s.orderRepo.UpdateStatus(ctx, tx, order.ID, model.OrderStatusPending, model.OrderStatusFailed, map[string]interface{}{
				"payment_status": model.PaymentStatusFailed,
			})
			if err != nil {
				return err
			}
			return s.restoreStock(ctx, tx, order)
		})
		if err != nil {
			// 可能已被支付或取消
			log.Printf("[OrderService] 关闭超时订单失败: orderNo=%s, err=%v", order.OrderNumber, err)
			continue
		}
		count++
	}
	return count, nil
}
