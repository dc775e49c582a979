package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/waretrace/waretrace/internal/inventory"
	"github.com/waretrace/waretrace/internal/ledger"
	"github.com/waretrace/waretrace/internal/warehouse/handler"
	"go.uber.org/zap"
)

var ctx = context.Background()

func setupRouter(t *testing.T) (*gin.Engine, *ledger.Service, *inventory.Memory) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := ledger.NewMemoryStore()
	items := inventory.NewMemory()
	catalog, err := inventory.NewStateCatalog(inventory.DefaultStates())
	if err != nil {
		t.Fatal(err)
	}
	svc := ledger.NewService(store, items, catalog, ledger.Config{}, zap.NewNop())
	svc.SetUserResolver(items)

	r := gin.New()
	v1 := r.Group("/api/v1")
	handler.NewLedgerHandler(svc, items, zap.NewNop()).Register(v1)
	handler.NewRecordHandler(svc, zap.NewNop()).Register(v1)
	return r, svc, items
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestInitialize_200_idempotent(t *testing.T) {
	r, _, _ := setupRouter(t)

	w, resp := doJSON(t, r, http.MethodPost, "/api/v1/ledger/initialize", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	block := resp["block"].(map[string]any)
	if block["block_number"].(float64) != 0 {
		t.Errorf("expected genesis block 0, got %v", block["block_number"])
	}

	w2, resp2 := doJSON(t, r, http.MethodPost, "/api/v1/ledger/initialize", "")
	if w2.Code != http.StatusOK {
		t.Fatalf("second initialize: expected 200, got %d", w2.Code)
	}
	block2 := resp2["block"].(map[string]any)
	if block2["id"] != block["id"] {
		t.Error("second initialize created a new genesis block")
	}
}

func TestOverview_200(t *testing.T) {
	r, _, _ := setupRouter(t)
	doJSON(t, r, http.MethodPost, "/api/v1/ledger/initialize", "")

	w, resp := doJSON(t, r, http.MethodGet, "/api/v1/ledger", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp["blocks"].(float64) != 1 {
		t.Errorf("expected 1 block, got %v", resp["blocks"])
	}
}

func TestVerify_200_valid(t *testing.T) {
	r, _, items := setupRouter(t)
	items.PutItem(&inventory.Item{ID: "item-1", Quantity: 5})
	doJSON(t, r, http.MethodPost, "/api/v1/items/item-1/creation", `{"quantity":5,"user_id":"u1"}`)

	w, resp := doJSON(t, r, http.MethodGet, "/api/v1/ledger/verify", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp["valid"] != true {
		t.Errorf("expected valid=true, got %v", resp["valid"])
	}
}

func TestGetBlock_200_and_404(t *testing.T) {
	r, _, _ := setupRouter(t)
	doJSON(t, r, http.MethodPost, "/api/v1/ledger/initialize", "")

	w, _ := doJSON(t, r, http.MethodGet, "/api/v1/ledger/blocks/0", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w, _ = doJSON(t, r, http.MethodGet, "/api/v1/ledger/blocks/999", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for missing block, got %d", w.Code)
	}

	w, _ = doJSON(t, r, http.MethodGet, "/api/v1/ledger/blocks/abc", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-numeric block, got %d", w.Code)
	}
}

func TestListTransactions_filtered(t *testing.T) {
	r, _, items := setupRouter(t)
	items.PutItem(&inventory.Item{ID: "item-1", Quantity: 5})
	doJSON(t, r, http.MethodPost, "/api/v1/items/item-1/creation", `{"quantity":5,"user_id":"u1"}`)
	doJSON(t, r, http.MethodPost, "/api/v1/items/item-1/scan", `{"user_id":"u1"}`)

	w, resp := doJSON(t, r, http.MethodGet, "/api/v1/ledger/transactions?type=SCAN", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	txs := resp["transactions"].([]any)
	if len(txs) != 1 {
		t.Fatalf("expected exactly the scan transaction, got %d", len(txs))
	}
	tx := txs[0].(map[string]any)
	if tx["transaction_type"] != "SCAN" {
		t.Errorf("type: got %v, want SCAN", tx["transaction_type"])
	}
}

func TestItemHistory_200(t *testing.T) {
	r, _, items := setupRouter(t)
	items.PutItem(&inventory.Item{ID: "item-1", Quantity: 5})
	items.PutUser("u1", "clerk")
	doJSON(t, r, http.MethodPost, "/api/v1/items/item-1/creation", `{"quantity":5,"user_id":"u1"}`)

	w, resp := doJSON(t, r, http.MethodGet, "/api/v1/items/item-1/history", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	history := resp["history"].([]any)
	if len(history) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(history))
	}
	entry := history[0].(map[string]any)
	if entry["username"] != "clerk" {
		t.Errorf("username: got %v, want clerk", entry["username"])
	}
}

func TestItemHistory_404_missingItem(t *testing.T) {
	r, _, _ := setupRouter(t)

	w, _ := doJSON(t, r, http.MethodGet, "/api/v1/items/ghost/history", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestItemState_200_and_404(t *testing.T) {
	r, _, items := setupRouter(t)
	items.PutItem(&inventory.Item{ID: "item-1", Quantity: 5})
	doJSON(t, r, http.MethodPost, "/api/v1/items/item-1/creation", `{"quantity":5,"user_id":"u1"}`)

	w, resp := doJSON(t, r, http.MethodGet, "/api/v1/items/item-1/state", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp["quantity"].(float64) != 5 {
		t.Errorf("quantity: got %v, want 5", resp["quantity"])
	}

	w, _ = doJSON(t, r, http.MethodGet, "/api/v1/items/never-recorded/state", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unrecorded item, got %d", w.Code)
	}
}

func TestItemStateAt_pointInTime(t *testing.T) {
	r, svc, items := setupRouter(t)
	items.PutItem(&inventory.Item{ID: "item-1", Quantity: 5})

	createTx, err := svc.RecordItemCreation(ctx, "item-1", 5, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RecordItemAssignment(ctx, "item-1", "t1", "u1"); err != nil {
		t.Fatal(err)
	}

	w, resp := doJSON(t, r, http.MethodGet, "/api/v1/items/item-1/state/"+createTx.ID.String(), "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp["active"] != false {
		t.Error("superseded snapshot should report active=false")
	}
	if resp["quantity"].(float64) != 5 {
		t.Errorf("quantity: got %v, want 5", resp["quantity"])
	}

	w, _ = doJSON(t, r, http.MethodGet, "/api/v1/items/item-1/state/not-a-uuid", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed tx id, got %d", w.Code)
	}
}

func TestItemVerify_consistent(t *testing.T) {
	r, _, items := setupRouter(t)
	items.PutItem(&inventory.Item{ID: "item-1", Quantity: 5})
	doJSON(t, r, http.MethodPost, "/api/v1/items/item-1/creation", `{"quantity":5,"user_id":"u1"}`)

	w, resp := doJSON(t, r, http.MethodGet, "/api/v1/items/item-1/verify", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	verification := resp["verification"].(map[string]any)
	if verification["consistent"] != true {
		t.Errorf("expected consistent=true, got %v", verification)
	}
}

func TestItemVerify_detectsDrift(t *testing.T) {
	r, _, items := setupRouter(t)
	items.PutItem(&inventory.Item{ID: "item-1", Quantity: 5})
	doJSON(t, r, http.MethodPost, "/api/v1/items/item-1/creation", `{"quantity":5,"user_id":"u1"}`)

	// Drift the row away from the ledger.
	if err := items.SetItemQuantity(ctx, "item-1", 99); err != nil {
		t.Fatal(err)
	}

	w, resp := doJSON(t, r, http.MethodGet, "/api/v1/items/item-1/verify", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	verification := resp["verification"].(map[string]any)
	if verification["consistent"] != false {
		t.Errorf("expected consistent=false after drift, got %v", verification)
	}
}
