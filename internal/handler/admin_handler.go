package handler

import (
	"errors"
	"fmt"

	"ewallet/internal/model"
	"ewallet/internal/repository"
	"ewallet/internal/service"
	"ewallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-multierror"
	"github.com/shopspring/decimal"
)

// ============================================================
// 审核
// ============================================================

type ApproveRequest struct {
	Notes string `json:"notes" binding:"max=1000"`
}

// ApproveTransaction POST /api/v1/admin/transactions/:id/approve
func (h *Handler) ApproveTransaction(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ApproveRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	trans, err := h.svc.Approval.Approve(c.Request.Context(), id, currentUserID(c), req.Notes)
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessWithMessage(c, "Transaction approved.", trans)
}

type RejectRequest struct {
	Reason string `json:"reason" binding:"required,max=1000"`
}

// RejectTransaction POST /api/v1/admin/transactions/:id/reject
func (h *Handler) RejectTransaction(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req RejectRequest
	if !bindJSON(c, &req) {
		return
	}
	trans, err := h.svc.Approval.Reject(c.Request.Context(), id, currentUserID(c), req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessWithMessage(c, "Transaction rejected.", trans)
}

type BulkApprovalRequest struct {
	TransactionIDs []int64 `json:"transaction_ids" binding:"required,min=1,max=100,dive,gt=0"`
	Action         string  `json:"action" binding:"required,oneof=approve reject"`
	Notes          string  `json:"notes" binding:"max=1000"`
}

// BulkApproval POST /api/v1/admin/transactions/bulk-approval
//
// 部分失败时 success=false，data 里带上已处理和失败的明细
func (h *Handler) BulkApproval(c *gin.Context) {
	var req BulkApprovalRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.svc.Approval.BulkProcess(c.Request.Context(), req.TransactionIDs, req.Action, currentUserID(c), req.Notes)
	if result == nil {
		fail(c, err)
		return
	}
	if err != nil {
		msg := fmt.Sprintf("%d of %d transactions could not be processed.", len(result.Failed), len(result.Failed)+len(result.Processed))
		response.ErrorWithData(c, response.CodeBulkPartiallyFailed, msg, result)
		return
	}
	response.SuccessWithMessage(c, fmt.Sprintf("%d transactions processed.", len(result.Processed)), result)
}

type OverviewQuery struct {
	PageQuery
	Status string `form:"status" binding:"omitempty,oneof=pending approved rejected"`
	Type   string `form:"type"`
	UserID int64  `form:"user_id"`
	Search string `form:"search" binding:"max=64"`
}

// WalletManagement GET /api/v1/admin/wallet-management
func (h *Handler) WalletManagement(c *gin.Context) {
	var q OverviewQuery
	if !bindQuery(c, &q) {
		return
	}
	page, perPage := q.normalized()

	overview, err := h.svc.Approval.Overview(c.Request.Context(), repository.TransactionFilter{
		UserID: q.UserID,
		Type:   q.Type,
		Status: q.Status,
		Search: q.Search,
	}, page, perPage)
	if err != nil {
		fail(c, err)
		return
	}
	if overview.Transactions == nil {
		overview.Transactions = []*model.Transaction{}
	}
	response.Success(c, gin.H{
		"transactions": response.NewPage(overview.Transactions, overview.Total, overview.Page, overview.PerPage),
		"pending":      overview.Pending,
		"wallets":      overview.Wallets,
	})
}

// ============================================================
// 钱包管理
// ============================================================

// FreezeWallet POST /api/v1/admin/wallets/:user_id/freeze
func (h *Handler) FreezeWallet(c *gin.Context) {
	h.setFrozen(c, true)
}

// UnfreezeWallet POST /api/v1/admin/wallets/:user_id/unfreeze
func (h *Handler) UnfreezeWallet(c *gin.Context) {
	h.setFrozen(c, false)
}

func (h *Handler) setFrozen(c *gin.Context, frozen bool) {
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	if _, err := h.svc.Users.GetByID(c.Request.Context(), userID); err != nil {
		fail(c, err)
		return
	}
	wallet, err := h.svc.Wallet.SetFrozen(c.Request.Context(), userID, frozen)
	if err != nil {
		fail(c, err)
		return
	}
	msg := "Wallet unfrozen."
	if frozen {
		msg = "Wallet frozen."
	}
	response.SuccessWithMessage(c, msg, wallet)
}

type CommissionRequest struct {
	Amount      decimal.Decimal `json:"amount" binding:"required,gt=0,lte=10000"`
	Description string          `json:"description" binding:"max=255"`
}

// CreditCommission POST /api/v1/admin/wallets/:user_id/commission
func (h *Handler) CreditCommission(c *gin.Context) {
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	var req CommissionRequest
	if !bindJSON(c, &req) {
		return
	}
	trans, err := h.svc.Wallet.CreditCommission(c.Request.Context(), userID, req.Amount, req.Description, currentUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessWithMessage(c, "Commission credited.", trans)
}

// ============================================================
// 系统配置
// ============================================================

// ListSettings GET /api/v1/admin/settings
func (h *Handler) ListSettings(c *gin.Context) {
	settings, err := h.svc.Settings.All(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, settings)
}

type SettingItem struct {
	Key   string `json:"key" binding:"required,max=100"`
	Value string `json:"value" binding:"max=1000"`
	Type  string `json:"type" binding:"omitempty,oneof=string boolean decimal integer"`
}

type UpdateSettingsRequest struct {
	Settings []SettingItem `json:"settings" binding:"required,min=1,dive"`
}

// UpdateSettings PUT /api/v1/admin/settings
//
// 校验失败的 key 汇总后一起返回，其余 key 照常保存
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if !bindJSON(c, &req) {
		return
	}

	updates := make([]service.SettingUpdate, 0, len(req.Settings))
	for _, item := range req.Settings {
		updates = append(updates, service.SettingUpdate{Key: item.Key, Value: item.Value, Type: item.Type})
	}

	ctx := c.Request.Context()
	if err := h.svc.Settings.SetMany(ctx, updates); err != nil {
		var merr *multierror.Error
		if !errors.As(err, &merr) {
			fail(c, err)
			return
		}
		invalid := make(map[string]string, len(merr.Errors))
		for _, e := range merr.Errors {
			var settingErr *service.SettingError
			if !errors.As(e, &settingErr) {
				fail(c, e)
				return
			}
			invalid[settingErr.Key] = settingErr.Err.Error()
		}
		response.ValidationError(c, invalid)
		return
	}

	settings, err := h.svc.Settings.All(ctx)
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessWithMessage(c, "Settings updated.", settings)
}

type OrderStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=paid processing completed"`
}

// UpdateOrderStatus PUT /api/v1/admin/orders/:id/status
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req OrderStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	order, err := h.svc.Orders.AdminUpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessWithMessage(c, "Order status updated.", order)
}
