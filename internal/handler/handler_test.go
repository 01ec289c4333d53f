package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ewallet/internal/config"
	"ewallet/internal/model"
	"ewallet/internal/service"
	"ewallet/internal/testutil"
	"ewallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

type apiEnv struct {
	db     *gorm.DB
	router *gin.Engine
	svc    *service.Services
	admin  *model.User
	alice  *model.User
	bob    *model.User
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	db := testutil.NewDB(t)
	cfg := &config.Config{
		Server:   config.ServerConfig{Mode: gin.TestMode},
		Kafka:    config.KafkaConfig{Topic: config.KafkaTopicConfig{Notification: "test.notification"}},
		Auth:     config.AuthConfig{JWTSecret: testSecret},
		Business: config.BusinessConfig{OrderTimeoutMinutes: 30, MaxRetryCount: 3, CartTTLHours: 1},
	}
	svc := service.NewServices(db, nil, cfg)
	env := &apiEnv{
		db:     db,
		router: SetupRouter(svc, cfg),
		svc:    svc,
		admin:  testutil.CreateUser(t, db, "Admin", model.RoleAdmin),
		alice:  testutil.CreateUser(t, db, "Alice", ""),
		bob:    testutil.CreateUser(t, db, "Bob", ""),
	}
	return env
}

type apiResponse struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *apiEnv) call(t *testing.T, user *model.User, method, path string, body interface{}) apiResponse {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		token, err := GenerateToken(testSecret, user.ID, user.Role, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestHealth(t *testing.T) {
	env := newAPIEnv(t)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestAuthRequired(t *testing.T) {
	env := newAPIEnv(t)

	resp := env.call(t, nil, http.MethodGet, "/api/v1/wallet", nil)
	require.False(t, resp.Success)
	require.Equal(t, response.CodeUnauthorized, resp.Code)

	// 签名不对
	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet", nil)
	token, err := GenerateToken("other-secret", env.alice.ID, env.alice.Role, time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Contains(t, w.Body.String(), `"code":401`)

	resp = env.call(t, env.alice, http.MethodGet, "/api/v1/admin/settings", nil)
	require.Equal(t, response.CodeForbidden, resp.Code)
}

func TestDepositValidationErrors(t *testing.T) {
	env := newAPIEnv(t)

	resp := env.call(t, env.alice, http.MethodPost, "/api/v1/wallet/deposit", gin.H{
		"amount":         "0.5",
		"payment_method": "cash",
	})
	require.False(t, resp.Success)
	require.Equal(t, response.CodeParamError, resp.Code)
	require.Equal(t, "The given data was invalid.", resp.Message)

	var data struct {
		Errors map[string]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	require.Contains(t, data.Errors, "amount")
	require.Contains(t, data.Errors, "payment_method")
}

func TestWithdrawRequiresBankDetails(t *testing.T) {
	env := newAPIEnv(t)
	testutil.CreateWallet(t, env.db, env.alice.ID, "100", "0", "0")

	resp := env.call(t, env.alice, http.MethodPost, "/api/v1/wallet/withdraw", gin.H{
		"amount":         "40",
		"payment_method": "bank_transfer",
		"accept_terms":   true,
	})
	require.Equal(t, response.CodeParamError, resp.Code)
	require.Contains(t, string(resp.Data), "bank_name")

	resp = env.call(t, env.alice, http.MethodPost, "/api/v1/wallet/withdraw", gin.H{
		"amount":         "40",
		"payment_method": "bank_transfer",
		"bank_name":      "First Bank",
		"account_number": "001",
		"account_name":   "Alice",
		"accept_terms":   true,
	})
	require.True(t, resp.Success, resp.Message)
}

func TestDepositApprovalFlow(t *testing.T) {
	env := newAPIEnv(t)

	resp := env.call(t, env.alice, http.MethodPost, "/api/v1/wallet/deposit", gin.H{
		"amount":         "150.50",
		"payment_method": "bank_transfer",
	})
	require.True(t, resp.Success, resp.Message)
	var deposit model.Transaction
	require.NoError(t, json.Unmarshal(resp.Data, &deposit))
	require.Equal(t, model.TransactionStatusPending, deposit.Status)

	approvePath := fmt.Sprintf("/api/v1/admin/transactions/%d/approve", deposit.ID)
	resp = env.call(t, env.admin, http.MethodPost, approvePath, gin.H{"notes": "receipt ok"})
	require.True(t, resp.Success, resp.Message)

	resp = env.call(t, env.admin, http.MethodPost, approvePath, nil)
	require.False(t, resp.Success)
	require.Equal(t, response.CodeTransactionNotPending, resp.Code)

	resp = env.call(t, env.alice, http.MethodGet, "/api/v1/wallet", nil)
	require.True(t, resp.Success)
	var wallet model.Wallet
	require.NoError(t, json.Unmarshal(resp.Data, &wallet))
	testutil.RequireMoney(t, "150.50", wallet.Balance)

	resp = env.call(t, env.alice, http.MethodGet, "/api/v1/wallet/transactions?per_page=7", nil)
	require.True(t, resp.Success)
	var page struct {
		Total   int64 `json:"total"`
		PerPage int   `json:"per_page"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	require.EqualValues(t, 1, page.Total)
	require.Equal(t, 10, page.PerPage)

	resp = env.call(t, env.admin, http.MethodGet, "/api/v1/notifications", nil)
	require.True(t, resp.Success)
	var adminInbox []model.OutboxMessage
	require.NoError(t, json.Unmarshal(resp.Data, &adminInbox))
	require.Len(t, adminInbox, 1)
	assert.Equal(t, model.EventDepositRequested, adminInbox[0].EventType)

	resp = env.call(t, env.alice, http.MethodGet, "/api/v1/notifications", nil)
	require.True(t, resp.Success)
	var aliceInbox []model.OutboxMessage
	require.NoError(t, json.Unmarshal(resp.Data, &aliceInbox))
	require.Len(t, aliceInbox, 1)
	assert.Equal(t, model.EventTransactionStatusChanged, aliceInbox[0].EventType)
}

func TestTransferErrorsMapToCodes(t *testing.T) {
	env := newAPIEnv(t)
	testutil.CreateWallet(t, env.db, env.alice.ID, "10", "0", "0")

	resp := env.call(t, env.alice, http.MethodPost, "/api/v1/wallet/transfer", gin.H{"recipient": "ghost", "amount": "5"})
	require.Equal(t, response.CodeRecipientNotFound, resp.Code)
	require.Equal(t, "Recipient not found", resp.Message)

	resp = env.call(t, env.alice, http.MethodPost, "/api/v1/wallet/transfer", gin.H{"recipient": "bob", "amount": "50"})
	require.Equal(t, response.CodeBalanceNotEnough, resp.Code)

	resp = env.call(t, env.alice, http.MethodPost, "/api/v1/wallet/transfer", gin.H{"recipient": "alice@example.com", "amount": "5"})
	require.Equal(t, response.CodeInvalidTransfer, resp.Code)

	resp = env.call(t, env.alice, http.MethodPost, "/api/v1/wallet/transfer", gin.H{"recipient": "bob", "amount": "1.005"})
	require.Equal(t, response.CodeParamError, resp.Code)
	require.Equal(t, service.ErrAmountPrecision.Error(), resp.Message)

	resp = env.call(t, env.alice, http.MethodPost, "/api/v1/wallet/transfer", gin.H{"recipient": "bob", "amount": "5"})
	require.True(t, resp.Success, resp.Message)
}

func TestFeePreview(t *testing.T) {
	env := newAPIEnv(t)

	resp := env.call(t, env.admin, http.MethodPut, "/api/v1/admin/settings", gin.H{"settings": []gin.H{
		{"key": "withdrawal_fee_enabled", "value": "true"},
		{"key": "withdrawal_fee_value", "value": "5"},
		{"key": "withdrawal_fee_minimum", "value": "1"},
		{"key": "withdrawal_fee_maximum", "value": "50"},
	}})
	require.True(t, resp.Success, resp.Message)

	resp = env.call(t, env.alice, http.MethodGet, "/api/v1/wallet/fees?kind=withdrawal&amount=40", nil)
	require.True(t, resp.Success, resp.Message)
	var quote service.FeeQuote
	require.NoError(t, json.Unmarshal(resp.Data, &quote))
	testutil.RequireMoney(t, "2", quote.Fee)
	testutil.RequireMoney(t, "42", quote.Total)

	resp = env.call(t, env.alice, http.MethodGet, "/api/v1/wallet/fees?kind=deposit&amount=40", nil)
	require.Equal(t, response.CodeParamError, resp.Code)
}

func TestUpdateSettingsRejectsInvalidValues(t *testing.T) {
	env := newAPIEnv(t)

	resp := env.call(t, env.admin, http.MethodPut, "/api/v1/admin/settings", gin.H{"settings": []gin.H{
		{"key": "tax_rate", "value": "abc"},
		{"key": "wallet_mode", "value": "segregated"},
	}})
	require.False(t, resp.Success)
	require.Equal(t, response.CodeParamError, resp.Code)
	require.Contains(t, string(resp.Data), "tax_rate")

	// 合法的 key 已保存
	mode, ok, err := env.svc.Settings.Get(context.Background(), "wallet_mode")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "segregated", mode)

	resp = env.call(t, env.admin, http.MethodPut, "/api/v1/admin/settings", gin.H{"settings": []gin.H{
		{"key": "transfer_charge_value", "value": "-2"},
		{"key": "transfer_charge_minimum", "value": "5"},
		{"key": "transfer_charge_maximum", "value": "4"},
	}})
	require.False(t, resp.Success)
	require.Equal(t, response.CodeParamError, resp.Code)
	var body struct {
		Errors map[string]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &body))
	assert.Len(t, body.Errors, 3)
	assert.Contains(t, body.Errors["transfer_charge_value"], "negative")
}

func TestBulkApprovalPartialFailure(t *testing.T) {
	env := newAPIEnv(t)

	var ids []int64
	for _, amount := range []string{"10", "20"} {
		resp := env.call(t, env.alice, http.MethodPost, "/api/v1/wallet/deposit", gin.H{"amount": amount, "payment_method": "e_wallet"})
		require.True(t, resp.Success)
		var tx model.Transaction
		require.NoError(t, json.Unmarshal(resp.Data, &tx))
		ids = append(ids, tx.ID)
	}
	ids = append(ids, 999999)

	resp := env.call(t, env.admin, http.MethodPost, "/api/v1/admin/transactions/bulk-approval", gin.H{
		"transaction_ids": ids,
		"action":          "approve",
	})
	require.False(t, resp.Success)
	require.Equal(t, response.CodeBulkPartiallyFailed, resp.Code)

	var result service.BulkResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	require.Equal(t, ids[:2], result.Processed)
	require.Len(t, result.Failed, 1)

	resp = env.call(t, env.admin, http.MethodGet, "/api/v1/admin/wallet-management?status=approved", nil)
	require.True(t, resp.Success)
	require.Contains(t, string(resp.Data), `"total":2`)
}

func TestShopFlow(t *testing.T) {
	env := newAPIEnv(t)
	testutil.CreateWallet(t, env.db, env.alice.ID, "100", "0", "0")
	pkg := testutil.CreatePackage(t, env.db, "Starter", "25", 10, testutil.IntPtr(10))

	resp := env.call(t, env.alice, http.MethodGet, "/api/v1/packages", nil)
	require.True(t, resp.Success)
	require.Contains(t, string(resp.Data), "Starter")

	resp = env.call(t, env.alice, http.MethodPost, "/api/v1/checkout", gin.H{"payment_method": "wallet"})
	require.Equal(t, response.CodeCartEmpty, resp.Code)

	resp = env.call(t, env.alice, http.MethodPost, "/api/v1/cart/items", gin.H{"package_id": pkg.ID, "quantity": 2})
	require.True(t, resp.Success, resp.Message)

	resp = env.call(t, env.alice, http.MethodPut, fmt.Sprintf("/api/v1/cart/items/%d", pkg.ID), gin.H{"quantity": 3})
	require.True(t, resp.Success, resp.Message)
	var summary service.CartSummary
	require.NoError(t, json.Unmarshal(resp.Data, &summary))
	testutil.RequireMoney(t, "75", summary.Total)

	resp = env.call(t, env.alice, http.MethodPost, "/api/v1/checkout", gin.H{"payment_method": "wallet"})
	require.True(t, resp.Success, resp.Message)
	var order model.Order
	require.NoError(t, json.Unmarshal(resp.Data, &order))
	require.Equal(t, model.OrderStatusPaid, order.Status)

	resp = env.call(t, env.bob, http.MethodGet, fmt.Sprintf("/api/v1/orders/%d", order.ID), nil)
	require.Equal(t, response.CodeOrderNotFound, resp.Code)

	resp = env.call(t, env.alice, http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/cancel", order.ID), gin.H{"reason": "duplicate"})
	require.True(t, resp.Success, resp.Message)

	testutil.RequireMoney(t, "100", testutil.ReloadWallet(t, env.db, env.alice.ID).Balance)
}

func TestFreezeWallet(t *testing.T) {
	env := newAPIEnv(t)
	testutil.CreateWallet(t, env.db, env.alice.ID, "100", "0", "0")

	resp := env.call(t, env.admin, http.MethodPost, fmt.Sprintf("/api/v1/admin/wallets/%d/freeze", env.alice.ID), nil)
	require.True(t, resp.Success, resp.Message)

	resp = env.call(t, env.alice, http.MethodPost, "/api/v1/wallet/transfer", gin.H{"recipient": "bob", "amount": "5"})
	require.Equal(t, response.CodeWalletFrozen, resp.Code)

	resp = env.call(t, env.admin, http.MethodPost, "/api/v1/admin/wallets/424242/freeze", nil)
	require.Equal(t, response.CodeNotFound, resp.Code)

	resp = env.call(t, env.admin, http.MethodPost, fmt.Sprintf("/api/v1/admin/wallets/%d/unfreeze", env.alice.ID), nil)
	require.True(t, resp.Success)
}

func TestCORSAllowList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://shop.example.com/"}))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://shop.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
