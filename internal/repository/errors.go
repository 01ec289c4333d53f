package repository

import "errors"

// 错误信息会直接返回给用户，使用英文
var (
	ErrWalletNotFound        = errors.New("Wallet not found")
	ErrInsufficientBalance   = errors.New("Insufficient balance")
	ErrWalletFrozen          = errors.New("Wallet is frozen")
	ErrTransactionNotFound   = errors.New("Transaction not found")
	ErrTransactionNotPending = errors.New("Transaction is not pending approval")
	ErrOrderNotFound         = errors.New("Order not found")
	ErrOrderStatusInvalid    = errors.New("Order status does not allow this operation")
	ErrPackageNotFound       = errors.New("Package not found")
	ErrOutOfStock            = errors.New("Package is out of stock")
	ErrUserNotFound          = errors.New("User not found")
	ErrSettingNotFound       = errors.New("Setting not found")
)
