package http_api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canhamzacode/tipjar/internal/auth"
	"github.com/canhamzacode/tipjar/internal/directory"
	"github.com/canhamzacode/tipjar/internal/models"
	"github.com/canhamzacode/tipjar/internal/repository"
	"github.com/canhamzacode/tipjar/internal/transfer"
	"github.com/canhamzacode/tipjar/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeLedger struct {
	submitHash string
	submitErr  error
}

func (f *fakeLedger) BuildUnsignedTransfer(ctx context.Context, sender, receiver, amount, token, memo string) (*models.UnsignedTransfer, error) {
	return &models.UnsignedTransfer{
		TransactionBytes: "dW5zaWduZWQ=",
		SenderAccount:    sender,
		ReceiverAccount:  receiver,
		Amount:           amount,
		Token:            token,
	}, nil
}

func (f *fakeLedger) SubmitSigned(ctx context.Context, signedBytes string) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.submitHash, nil
}

func (f *fakeLedger) ValidateAccountID(account string) error {
	if account == "invalid" {
		return models.NewValidationError("invalid account id %q", account)
	}
	return nil
}

type apiFixture struct {
	server *HTTPServer
	repo   *repository.Memory
	dir    *directory.Service
	auth   *auth.Manager
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	repo := repository.NewMemory()
	log := logger.NewNop()
	dir := directory.New(repo, nil, log)
	ledger := &fakeLedger{submitHash: "0.0.1001@123.456"}
	transfers := transfer.New(repo, ledger, dir, log, nil, "")
	authManager := auth.NewManager("test-secret", time.Hour)
	server := NewHTTPServer(dir, transfers, ledger, authManager, 0, log)
	return &apiFixture{server: server, repo: repo, dir: dir, auth: authManager}
}

func (f *apiFixture) walletUser(t *testing.T, handle, wallet string) (*models.User, string) {
	t.Helper()
	u := &models.User{TwitterHandle: handle, TwitterID: "t-" + handle, AccessToken: "tok"}
	if wallet != "" {
		u.WalletAddress = &wallet
	}
	require.NoError(t, f.repo.CreateUser(context.Background(), u))
	token, err := f.auth.IssueToken(u.ID)
	require.NoError(t, err)
	return u, token
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/transfer", "", gin.H{
		"receiver_handle": "bob", "amount": "5",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/transfer", "not-a-jwt", gin.H{
		"receiver_handle": "bob", "amount": "5",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLinkAccountIssuesTokenAndReconciles(t *testing.T) {
	f := newAPIFixture(t)
	alice, aliceToken := f.walletUser(t, "alice", "0.0.1001")
	_ = alice

	// A tip waits for a handle that has not signed up yet.
	rec := f.do(t, http.MethodPost, "/api/v1/transfer", aliceToken, gin.H{
		"receiver_handle": "newbie", "amount": "5",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/auth/link", "", gin.H{
		"twitter_id":   "31337",
		"handle":       "newbie",
		"access_token": "oauth-token",
		"name":         "New Bee",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.NotEmpty(t, body["token"])
	assert.Equal(t, float64(1), body["reconciled_tips"])

	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "newbie", user["twitter_handle"])
	assert.Nil(t, user["access_token"], "credentials must never leak in responses")
}

func TestInitiateTransferRequiresWallet(t *testing.T) {
	f := newAPIFixture(t)
	_, token := f.walletUser(t, "nowallet", "")

	rec := f.do(t, http.MethodPost, "/api/v1/transfer", token, gin.H{
		"receiver_handle": "bob", "amount": "5",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 0, f.repo.CountTransactions())
}

func TestInitiateDirectTransfer(t *testing.T) {
	f := newAPIFixture(t)
	_, token := f.walletUser(t, "alice", "0.0.1001")
	f.walletUser(t, "bob", "0.0.1002")

	rec := f.do(t, http.MethodPost, "/api/v1/transfer", token, gin.H{
		"receiver_handle": "bob", "amount": "5", "note": "nice work",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decode(t, rec)
	result, ok := body["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "direct", result["type"])

	unsigned, ok := body["unsigned"].(map[string]any)
	require.True(t, ok, "direct transfers carry the signable payload")
	assert.Equal(t, "0.0.1001", unsigned["senderAccountId"])
	assert.Equal(t, "0.0.1002", unsigned["receiverAccountId"])
}

func TestInitiateTransferValidation(t *testing.T) {
	f := newAPIFixture(t)
	_, token := f.walletUser(t, "alice", "0.0.1001")

	rec := f.do(t, http.MethodPost, "/api/v1/transfer", token, gin.H{
		"receiver_handle": "bob", "amount": "-5",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/transfer", token, gin.H{
		"amount": "5",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing receiver_handle fails binding")
}

func TestCompleteTransferLifecycle(t *testing.T) {
	f := newAPIFixture(t)
	_, token := f.walletUser(t, "alice", "0.0.1001")
	f.walletUser(t, "bob", "0.0.1002")

	rec := f.do(t, http.MethodPost, "/api/v1/transfer", token, gin.H{
		"receiver_handle": "bob", "amount": "5",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	result := decode(t, rec)["result"].(map[string]any)
	txID := result["transaction_id"].(string)

	rec = f.do(t, http.MethodPost, "/api/v1/transfer/complete", token, gin.H{
		"transaction_id": txID, "signed_bytes": "c2lnbmVk",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	tx := decode(t, rec)["transaction"].(map[string]any)
	assert.Equal(t, "confirmed", tx["status"])
	assert.Equal(t, "0.0.1001@123.456", tx["tx_hash"])

	// A second submission conflicts.
	rec = f.do(t, http.MethodPost, "/api/v1/transfer/complete", token, gin.H{
		"transaction_id": txID, "signed_bytes": "c2lnbmVk",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCompleteTransferOnlySender(t *testing.T) {
	f := newAPIFixture(t)
	_, aliceToken := f.walletUser(t, "alice", "0.0.1001")
	f.walletUser(t, "bob", "0.0.1002")
	_, malloryToken := f.walletUser(t, "mallory", "0.0.666")

	rec := f.do(t, http.MethodPost, "/api/v1/transfer", aliceToken, gin.H{
		"receiver_handle": "bob", "amount": "5",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	txID := decode(t, rec)["result"].(map[string]any)["transaction_id"].(string)

	rec = f.do(t, http.MethodPost, "/api/v1/transfer/complete", malloryToken, gin.H{
		"transaction_id": txID, "signed_bytes": "c2lnbmVk",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetTransfer(t *testing.T) {
	f := newAPIFixture(t)
	_, aliceToken := f.walletUser(t, "alice", "0.0.1001")
	f.walletUser(t, "bob", "0.0.1002")
	_, outsiderToken := f.walletUser(t, "carol", "")

	rec := f.do(t, http.MethodPost, "/api/v1/transfer", aliceToken, gin.H{
		"receiver_handle": "bob", "amount": "5",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	txID := decode(t, rec)["result"].(map[string]any)["transaction_id"].(string)

	rec = f.do(t, http.MethodGet, "/api/v1/transfer/"+txID, aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.NotNil(t, body["unsigned"], "pending transfers carry the signable payload")

	rec = f.do(t, http.MethodGet, "/api/v1/transfer/"+txID, outsiderToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/transfer/does-not-exist", aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConnectWallet(t *testing.T) {
	f := newAPIFixture(t)
	_, token := f.walletUser(t, "alice", "")

	rec := f.do(t, http.MethodPost, "/api/v1/wallet/connect", token, gin.H{
		"wallet_address": "0.0.4444",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	user := decode(t, rec)["user"].(map[string]any)
	assert.Equal(t, "0.0.4444", user["wallet_address"])
}

func TestConnectWalletRejectsInvalidAccount(t *testing.T) {
	f := newAPIFixture(t)
	_, token := f.walletUser(t, "alice", "")

	rec := f.do(t, http.MethodPost, "/api/v1/wallet/connect", token, gin.H{
		"wallet_address": "invalid",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConnectWalletConflict(t *testing.T) {
	f := newAPIFixture(t)
	f.walletUser(t, "alice", "0.0.1001")
	_, bobToken := f.walletUser(t, "bob", "")

	rec := f.do(t, http.MethodPost, "/api/v1/wallet/connect", bobToken, gin.H{
		"wallet_address": "0.0.1001",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListTransactions(t *testing.T) {
	f := newAPIFixture(t)
	_, aliceToken := f.walletUser(t, "alice", "0.0.1001")
	_, bobToken := f.walletUser(t, "bob", "0.0.1002")

	rec := f.do(t, http.MethodPost, "/api/v1/transfer", aliceToken, gin.H{
		"receiver_handle": "bob", "amount": "5",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/transactions", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sent := decode(t, rec)["transactions"].([]any)
	require.Len(t, sent, 1)
	entry := sent[0].(map[string]any)
	assert.Equal(t, "sent", entry["direction"])
	assert.Equal(t, "bob", entry["counterparty"])
	assert.NotNil(t, entry["unsigned"])

	rec = f.do(t, http.MethodGet, "/api/v1/transactions", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	received := decode(t, rec)["transactions"].([]any)
	require.Len(t, received, 1)
	assert.Equal(t, "received", received[0].(map[string]any)["direction"])
}
