package handler

import (
	"errors"
	"log"
	"strconv"

	"ewallet/internal/infrastructure/lock"
	"ewallet/internal/repository"
	"ewallet/internal/service"
	"ewallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	svc *service.Services
}

func NewHandler(svc *service.Services) *Handler {
	return &Handler{svc: svc}
}

// ============================================================
// 错误映射
// ============================================================

type errorMapping struct {
	err     error
	code    int
	message string // 为空时直接使用 err.Error()
}

var errorMappings = []errorMapping{
	{service.ErrInsufficientBalance, response.CodeBalanceNotEnough, ""},
	{service.ErrWalletFrozen, response.CodeWalletFrozen, ""},
	{service.ErrWalletNotFound, response.CodeWalletNotFound, ""},
	{service.ErrTransactionNotPending, response.CodeTransactionNotPending, ""},
	{service.ErrTransactionNotFound, response.CodeTransactionNotFound, ""},
	{service.ErrTransactionNotApprovable, response.CodeTransactionUnsupported, ""},
	{service.ErrRecipientNotFound, response.CodeRecipientNotFound, ""},
	{service.ErrSelfTransfer, response.CodeInvalidTransfer, ""},
	{service.ErrDepositsDisabled, response.CodeFeatureDisabled, ""},
	{service.ErrWithdrawalsDisabled, response.CodeFeatureDisabled, ""},
	{service.ErrTransfersDisabled, response.CodeFeatureDisabled, ""},
	{service.ErrPaymentMethodDisabled, response.CodeFeatureDisabled, ""},
	{service.ErrCartEmpty, response.CodeCartEmpty, ""},
	{service.ErrOutOfStock, response.CodeOutOfStock, ""},
	{service.ErrPackageNotFound, response.CodePackageNotFound, ""},
	{service.ErrPackageUnavailable, response.CodePackageNotFound, ""},
	{service.ErrOrderNotFound, response.CodeOrderNotFound, ""},
	{service.ErrOrderStatusInvalid, response.CodeOrderStatusInvalid, ""},
	{service.ErrOrderCannotBeCancelled, response.CodeOrderStatusInvalid, ""},
	{service.ErrInvalidOrderStatus, response.CodeOrderStatusInvalid, ""},
	{service.ErrInvalidAmount, response.CodeParamError, ""},
	{service.ErrAmountPrecision, response.CodeParamError, ""},
	{service.ErrWithdrawalDetails, response.CodeParamError, ""},
	{service.ErrTermsNotAccepted, response.CodeParamError, ""},
	{service.ErrInvalidBulkAction, response.CodeParamError, ""},
	{service.ErrInvalidQuantity, response.CodeParamError, ""},
	{service.ErrInvalidFeeKind, response.CodeParamError, ""},
	{service.ErrInvalidSetting, response.CodeParamError, ""},
	{repository.ErrUserNotFound, response.CodeNotFound, "User not found"},
	{lock.ErrLockFailed, response.CodeLockBusy, "Another operation on this wallet is in progress, please retry"},
}

// fail 业务错误返回对应错误码；未知错误只记日志，不把内部信息返回给调用方
func fail(c *gin.Context, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			msg := m.message
			if msg == "" {
				msg = err.Error()
			}
			response.BusinessError(c, m.code, msg)
			return
		}
	}
	log.Printf("[Handler] %s %s 内部错误: %v", c.Request.Method, c.Request.URL.Path, err)
	response.ServerError(c, "Something went wrong, please try again later")
}

// ============================================================
// 通用参数
// ============================================================

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, name+" is invalid")
		return 0, false
	}
	return id, true
}

func clientInfo(c *gin.Context) service.ClientInfo {
	return service.ClientInfo{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

// PageQuery 分页参数，per_page 只接受 10 / 20 / 50 / 100
type PageQuery struct {
	Page    int `form:"page"`
	PerPage int `form:"per_page"`
}

func (q PageQuery) normalized() (int, int) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	return page, service.NormalizePerPage(q.PerPage)
}
