package handler

import (
	"ewallet/internal/model"
	"ewallet/internal/repository"
	"ewallet/internal/service"
	"ewallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ============================================================
// 钱包
// ============================================================

// GetWallet 查询余额
// GET /api/v1/wallet
func (h *Handler) GetWallet(c *gin.Context) {
	wallet, err := h.svc.Wallet.GetWallet(c.Request.Context(), currentUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, wallet)
}

type DepositRequest struct {
	Amount        decimal.Decimal `json:"amount" binding:"required,gte=1,lte=10000"`
	PaymentMethod string          `json:"payment_method" binding:"required,oneof=bank_transfer e_wallet credit_card"`
	Note          string          `json:"note" binding:"max=500"`
}

// Deposit 提交充值申请，等待管理员审核
// POST /api/v1/wallet/deposit
func (h *Handler) Deposit(c *gin.Context) {
	var req DepositRequest
	if !bindJSON(c, &req) {
		return
	}

	deposit, err := h.svc.Wallet.Deposit(c.Request.Context(), &service.DepositRequest{
		UserID:        currentUserID(c),
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		Note:          req.Note,
		Client:        clientInfo(c),
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessWithMessage(c, "Deposit request submitted and awaiting approval.", deposit)
}

type WithdrawRequest struct {
	Amount         decimal.Decimal `json:"amount" binding:"required,gte=1,lte=10000"`
	PaymentMethod  string          `json:"payment_method" binding:"required,oneof=bank_transfer e_wallet"`
	BankName       string          `json:"bank_name" binding:"required_if=PaymentMethod bank_transfer,max=100"`
	AccountNumber  string          `json:"account_number" binding:"required_if=PaymentMethod bank_transfer,max=50"`
	AccountName    string          `json:"account_name" binding:"required_if=PaymentMethod bank_transfer,max=100"`
	WalletProvider string          `json:"wallet_provider" binding:"required_if=PaymentMethod e_wallet,max=50"`
	WalletNumber   string          `json:"wallet_number" binding:"required_if=PaymentMethod e_wallet,max=50"`
	AcceptTerms    bool            `json:"accept_terms"`
	Note           string          `json:"note" binding:"max=500"`
}

func (r *WithdrawRequest) details() map[string]string {
	return map[string]string{
		"bank_name":       r.BankName,
		"account_number":  r.AccountNumber,
		"account_name":    r.AccountName,
		"wallet_provider": r.WalletProvider,
		"wallet_number":   r.WalletNumber,
	}
}

// Withdraw 提交提现申请，手续费立即扣除
// POST /api/v1/wallet/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	var req WithdrawRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.svc.Wallet.Withdraw(c.Request.Context(), &service.WithdrawRequest{
		UserID:        currentUserID(c),
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		Details:       req.details(),
		AcceptTerms:   req.AcceptTerms,
		Note:          req.Note,
		Client:        clientInfo(c),
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessWithMessage(c, "Withdrawal request submitted and awaiting approval.", result)
}

type TransferRequest struct {
	Recipient string          `json:"recipient" binding:"required,max=191"`
	Amount    decimal.Decimal `json:"amount" binding:"required,gte=1,lte=10000"`
	Note      string          `json:"note" binding:"max=500"`
}

// Transfer 转账，即时到账
// POST /api/v1/wallet/transfer
func (h *Handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.svc.Wallet.Transfer(c.Request.Context(), &service.TransferRequest{
		SenderID:  currentUserID(c),
		Recipient: req.Recipient,
		Amount:    req.Amount,
		Note:      req.Note,
		Client:    clientInfo(c),
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessWithMessage(c, "Transfer completed.", result)
}

type FeeQuery struct {
	Kind   string `form:"kind" binding:"required,oneof=transfer withdrawal"`
	Amount string `form:"amount" binding:"required"`
}

// PreviewFee 手续费预览，前端展示和实际扣费用同一套计算
// GET /api/v1/wallet/fees?kind=withdrawal&amount=40
func (h *Handler) PreviewFee(c *gin.Context) {
	var q FeeQuery
	if !bindQuery(c, &q) {
		return
	}
	amount, err := decimal.NewFromString(q.Amount)
	if err != nil || !amount.IsPositive() {
		response.ValidationError(c, map[string]string{"amount": "The amount must be a positive number."})
		return
	}

	quote, err := h.svc.Wallet.PreviewFee(c.Request.Context(), q.Kind, amount)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, quote)
}

type TransactionQuery struct {
	PageQuery
	Type   string `form:"type"`
	Status string `form:"status" binding:"omitempty,oneof=pending approved rejected"`
}

// ListTransactions 当前用户的流水
// GET /api/v1/wallet/transactions?type=&status=&page=&per_page=
func (h *Handler) ListTransactions(c *gin.Context) {
	var q TransactionQuery
	if !bindQuery(c, &q) {
		return
	}
	page, perPage := q.normalized()

	list, total, err := h.svc.Wallet.ListTransactions(c.Request.Context(), repository.TransactionFilter{
		UserID: currentUserID(c),
		Type:   q.Type,
		Status: q.Status,
	}, page, perPage)
	if err != nil {
		fail(c, err)
		return
	}
	if list == nil {
		list = []*model.Transaction{}
	}
	response.Success(c, response.NewPage(list, total, page, perPage))
}
