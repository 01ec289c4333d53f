package service

import (
	"errors"

	"ewallet/internal/repository"
)

// 业务错误，信息直接展示给用户
var (
	ErrInvalidAmount            = errors.New("Amount must be between 1 and 10000")
	ErrAmountPrecision          = errors.New("Amount must have at most 2 decimal places")
	ErrDepositsDisabled         = errors.New("Deposits are currently disabled")
	ErrWithdrawalsDisabled      = errors.New("Withdrawals are currently disabled")
	ErrTransfersDisabled        = errors.New("Transfers are currently disabled")
	ErrPaymentMethodDisabled    = errors.New("The selected payment method is not available")
	ErrWithdrawalDetails        = errors.New("Payment details are incomplete for the selected method")
	ErrTermsNotAccepted         = errors.New("You must accept the withdrawal terms")
	ErrRecipientNotFound        = errors.New("Recipient not found")
	ErrSelfTransfer             = errors.New("You cannot transfer to yourself")
	ErrTransactionNotApprovable = errors.New("Only deposits and withdrawals require approval")
	ErrInvalidBulkAction        = errors.New("Action must be approve or reject")
	ErrCartEmpty                = errors.New("Your cart is empty")
	ErrInvalidQuantity          = errors.New("Quantity must be at least 1")
	ErrPackageUnavailable       = errors.New("Package is not available")
	ErrOrderCannotBeCancelled   = errors.New("Order cannot be cancelled")
	ErrInvalidOrderStatus       = errors.New("Unsupported order status")
	ErrInvalidFeeKind           = errors.New("Fee kind must be transfer or withdrawal")

	// 数据层错误原样透出
	ErrInsufficientBalance   = repository.ErrInsufficientBalance
	ErrWalletFrozen          = repository.ErrWalletFrozen
	ErrWalletNotFound        = repository.ErrWalletNotFound
	ErrTransactionNotFound   = repository.ErrTransactionNotFound
	ErrTransactionNotPending = repository.ErrTransactionNotPending
	ErrOrderNotFound         = repository.ErrOrderNotFound
	ErrOrderStatusInvalid    = repository.ErrOrderStatusInvalid
	ErrPackageNotFound       = repository.ErrPackageNotFound
	ErrOutOfStock            = repository.ErrOutOfStock
)
