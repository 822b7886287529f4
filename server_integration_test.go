package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body io.Reader, token string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func setupTestServer(t *testing.T) *gin.Engine {
	// integration tests are opt-in. Set DB_DSN_TEST=1 and DB_DSN to run them.
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	gin.SetMode(gin.TestMode)
	jwtSecret = []byte("integration-secret")
	initDB()
	r := gin.Default()
	setupRoutes(r)
	return r
}

// registerAndLogin creates (or reuses) a user and returns its access token.
func registerAndLogin(t *testing.T, r *gin.Engine, username, password string) string {
	t.Helper()
	creds, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp := performRequest(r, http.MethodPost, "/api/register", bytes.NewBuffer(creds), "")
	if resp.Code != 200 && resp.Code != 409 {
		t.Fatalf("register %s failed status=%d body=%s", username, resp.Code, resp.Body.String())
	}
	resp = performRequest(r, http.MethodPost, "/api/login", bytes.NewBuffer(creds), "")
	if resp.Code != 200 {
		t.Fatalf("login %s failed status=%d body=%s", username, resp.Code, resp.Body.String())
	}
	var loginResp map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &loginResp)
	token, _ := loginResp["token"].(string)
	if token == "" {
		t.Fatalf("empty token in login response: %+v", loginResp)
	}
	return token
}

// data unwraps the {"data": ...} envelope of a successful response.
func data(t *testing.T, resp *httptest.ResponseRecorder) any {
	t.Helper()
	var envelope map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("bad response body %q: %v", resp.Body.String(), err)
	}
	return envelope["data"]
}

func TestFullFlow(t *testing.T) {
	r := setupTestServer(t)

	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	aliceToken := registerAndLogin(t, r, "alice"+suffix, "password1")
	bobToken := registerAndLogin(t, r, "bob"+suffix, "password2")

	// 1. Alice creates an account and a category
	body, _ := json.Marshal(map[string]string{"name": "Checking"})
	resp := performRequest(r, http.MethodPost, "/api/accounts", bytes.NewBuffer(body), aliceToken)
	if resp.Code != 200 {
		t.Fatalf("create account failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	accountID, _ := data(t, resp).(map[string]any)["id"].(string)
	if accountID == "" {
		t.Fatalf("empty account id in response %s", resp.Body.String())
	}

	body, _ = json.Marshal(map[string]string{"name": "Groceries"})
	resp = performRequest(r, http.MethodPost, "/api/categories", bytes.NewBuffer(body), aliceToken)
	if resp.Code != 200 {
		t.Fatalf("create category failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	categoryID, _ := data(t, resp).(map[string]any)["id"].(string)

	// 2. Alice records a transaction against them
	today := time.Now().UTC().Format("2006-01-02")
	body, _ = json.Marshal(map[string]any{
		"payee":      "Grocer",
		"amount":     -1560,
		"date":       today,
		"accountId":  accountID,
		"categoryId": categoryID,
	})
	resp = performRequest(r, http.MethodPost, "/api/transactions", bytes.NewBuffer(body), aliceToken)
	if resp.Code != 200 {
		t.Fatalf("create transaction failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	txnID, _ := data(t, resp).(map[string]any)["id"].(string)
	if txnID == "" {
		t.Fatalf("empty transaction id in response %s", resp.Body.String())
	}

	// 3. The default window (last 30 days) includes today's transaction
	resp = performRequest(r, http.MethodGet, "/api/transactions", nil, aliceToken)
	if resp.Code != 200 {
		t.Fatalf("list transactions failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	if !containsID(data(t, resp), txnID) {
		t.Fatalf("default window does not contain %s: %s", txnID, resp.Body.String())
	}

	// 4. Filtering by account keeps it, a window in the past drops it
	resp = performRequest(r, http.MethodGet, "/api/transactions?accountId="+accountID, nil, aliceToken)
	if resp.Code != 200 || !containsID(data(t, resp), txnID) {
		t.Fatalf("account filter lost the transaction status=%d body=%s", resp.Code, resp.Body.String())
	}
	resp = performRequest(r, http.MethodGet, "/api/transactions?from=2000-01-01&to=2000-01-31", nil, aliceToken)
	if resp.Code != 200 || containsID(data(t, resp), txnID) {
		t.Fatalf("past window still contains the transaction status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 5. A malformed date is a 400
	resp = performRequest(r, http.MethodGet, "/api/transactions?from=13-2024-01", nil, aliceToken)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed from, got %d", resp.Code)
	}

	// 6. Bob cannot see or touch Alice's rows
	resp = performRequest(r, http.MethodGet, "/api/accounts/"+accountID, nil, bobToken)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign account get, got %d", resp.Code)
	}
	resp = performRequest(r, http.MethodGet, "/api/transactions/"+txnID, nil, bobToken)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign transaction get, got %d", resp.Code)
	}
	resp = performRequest(r, http.MethodDelete, "/api/transactions/"+txnID, nil, bobToken)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign transaction delete, got %d", resp.Code)
	}
	// the row survived Bob's attempt
	resp = performRequest(r, http.MethodGet, "/api/transactions/"+txnID, nil, aliceToken)
	if resp.Code != 200 {
		t.Fatalf("transaction gone after foreign delete attempt status=%d", resp.Code)
	}

	// 7. Bob's bulk delete naming Alice's id deletes nothing
	body, _ = json.Marshal(map[string]any{"ids": []string{txnID}})
	resp = performRequest(r, http.MethodPost, "/api/transactions/bulk-delete", bytes.NewBuffer(body), bobToken)
	if resp.Code != 200 {
		t.Fatalf("bulk delete failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	if containsID(data(t, resp), txnID) {
		t.Fatalf("bulk delete reported a foreign id as deleted: %s", resp.Body.String())
	}

	// 8. Alice renames the transaction
	body, _ = json.Marshal(map[string]any{
		"payee":      "Corner Grocer",
		"amount":     -1560,
		"date":       today,
		"accountId":  accountID,
		"categoryId": categoryID,
	})
	resp = performRequest(r, http.MethodPatch, "/api/transactions/"+txnID, bytes.NewBuffer(body), aliceToken)
	if resp.Code != 200 {
		t.Fatalf("update transaction failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 9. Deleting the category clears the reference but keeps the row
	resp = performRequest(r, http.MethodDelete, "/api/categories/"+categoryID, nil, aliceToken)
	if resp.Code != 200 {
		t.Fatalf("delete category failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	resp = performRequest(r, http.MethodGet, "/api/transactions/"+txnID, nil, aliceToken)
	if resp.Code != 200 {
		t.Fatalf("transaction gone after category delete status=%d", resp.Code)
	}
	if view, ok := data(t, resp).(map[string]any); !ok || view["category"] != nil {
		t.Fatalf("category reference not cleared: %s", resp.Body.String())
	}

	// 10. Bulk delete only removes the ids that exist and are owned
	body, _ = json.Marshal(map[string]any{"ids": []string{txnID, "no-such-id"}})
	resp = performRequest(r, http.MethodPost, "/api/transactions/bulk-delete", bytes.NewBuffer(body), aliceToken)
	if resp.Code != 200 {
		t.Fatalf("bulk delete failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	if !containsID(data(t, resp), txnID) || containsID(data(t, resp), "no-such-id") {
		t.Fatalf("unexpected bulk delete result: %s", resp.Body.String())
	}

	// 11. Deleting the same transaction again is a 404, not an error
	resp = performRequest(r, http.MethodDelete, "/api/transactions/"+txnID, nil, aliceToken)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for repeated delete, got %d", resp.Code)
	}

	// 12. Deleting the account takes its transactions with it
	resp = performRequest(r, http.MethodDelete, "/api/accounts/"+accountID, nil, aliceToken)
	if resp.Code != 200 {
		t.Fatalf("delete account failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 13. Unauthorized access to a protected endpoint is a 401
	unauth := performRequest(r, http.MethodGet, "/api/transactions", nil, "")
	if unauth.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unauthorized list, got %d", unauth.Code)
	}
}

// containsID reports whether a decoded data list holds an object with the
// given id.
func containsID(v any, id string) bool {
	list, ok := v.([]any)
	if !ok {
		return false
	}
	for _, item := range list {
		if m, ok := item.(map[string]any); ok && m["id"] == id {
			return true
		}
	}
	return false
}

func TestMigrateCommand(t *testing.T) {
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	initDB()
}
