// Package testutil 测试用的数据库和数据构造
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"ewallet/internal/config"
	"ewallet/internal/infrastructure/database"
	"ewallet/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewDB 每个测试一个独立的内存 sqlite 库
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Open(&config.DatabaseConfig{
		Driver:   database.DriverSQLite,
		DSN:      fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		LogLevel: "silent",
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// CreateUser 创建用户，username / email 由 name 派生
func CreateUser(t *testing.T, db *gorm.DB, name, role string) *model.User {
	t.Helper()
	if role == "" {
		role = model.RoleUser
	}
	u := &model.User{
		Name:     name,
		Username: strings.ToLower(name),
		Email:    strings.ToLower(name) + "@example.com",
		Role:     role,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreateWallet 创建钱包并设置三个余额
func CreateWallet(t *testing.T, db *gorm.DB, userID int64, balance, purchase, mlm string) *model.Wallet {
	t.Helper()
	w := &model.Wallet{
		UserID:          userID,
		Balance:         Dec(balance),
		PurchaseBalance: Dec(purchase),
		MLMBalance:      Dec(mlm),
		IsActive:        true,
	}
	require.NoError(t, db.Create(w).Error)
	return w
}

func ReloadWallet(t *testing.T, db *gorm.DB, userID int64) *model.Wallet {
	t.Helper()
	var w model.Wallet
	require.NoError(t, db.Where("user_id = ?", userID).First(&w).Error)
	return &w
}

// CreatePackage stock 为 nil 表示不限量
func CreatePackage(t *testing.T, db *gorm.DB, name, price string, points int, stock *int) *model.Package {
	t.Helper()
	p := &model.Package{
		Name:              name,
		Price:             Dec(price),
		Points:            points,
		QuantityAvailable: stock,
		IsActive:          true,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func IntPtr(v int) *int {
	return &v
}

// RequireMoney 按两位小数比较金额
func RequireMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	require.Equal(t, Dec(want).StringFixed(2), got.StringFixed(2), msgAndArgs...)
}
