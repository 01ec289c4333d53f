package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess      = 0
	CodeParamError   = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeServerError  = 500
)

// 业务错误码
const (
	CodeOrderNotFound          = 1001
	CodeOrderStatusInvalid     = 1002
	CodeBalanceNotEnough       = 1003
	CodeWalletFrozen           = 1004
	CodeWalletNotFound         = 1005
	CodePaymentFailed          = 1006
	CodeTransactionNotPending  = 1007
	CodeRecipientNotFound      = 1008
	CodeFeatureDisabled        = 1009
	CodeCartEmpty              = 1010
	CodeOutOfStock             = 1011
	CodeTransactionNotFound    = 1012
	CodeInvalidTransfer        = 1013
	CodePackageNotFound        = 1014
	CodeBulkPartiallyFailed    = 1015
	CodeTransactionUnsupported = 1016
	CodeLockBusy               = 1017
)

// Response 统一返回结构，HTTP 状态码始终为 200，由 success / code 区分结果
type Response struct {
	Success bool        `json:"success"`
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Page 分页数据
type Page struct {
	List       interface{} `json:"list"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PerPage    int         `json:"per_page"`
	TotalPages int         `json:"total_pages"`
}

func NewPage(list interface{}, total int64, page, perPage int) Page {
	totalPages := 0
	if perPage > 0 {
		totalPages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return Page{List: list, Total: total, Page: page, PerPage: perPage, TotalPages: totalPages}
}

func Success(c *gin.Context, data interface{}) {
	SuccessWithMessage(c, "success", data)
}

func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Code:    CodeSuccess,
		Message: message,
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	ErrorWithData(c, code, message, nil)
}

func ErrorWithData(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: false,
		Code:    code,
		Message: message,
		Data:    data,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

// ValidationError 字段级校验错误，data.errors = {field: message}
func ValidationError(c *gin.Context, fields map[string]string) {
	ErrorWithData(c, CodeParamError, "The given data was invalid.", gin.H{"errors": fields})
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, code, message)
}

// Abort 中间件里使用，终止后续处理
func Abort(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(http.StatusOK, Response{
		Success: false,
		Code:    code,
		Message: message,
	})
}
