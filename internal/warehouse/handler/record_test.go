package handler_test

import (
	"net/http"
	"testing"

	"github.com/waretrace/waretrace/internal/inventory"
)

func TestCreation_201(t *testing.T) {
	r, _, items := setupRouter(t)
	items.PutItem(&inventory.Item{ID: "item-1", Quantity: 25})

	w, resp := doJSON(t, r, http.MethodPost, "/api/v1/items/item-1/creation", `{"quantity":25,"user_id":"u1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	tx := resp["transaction"].(map[string]any)
	if tx["transaction_type"] != "CREATE" {
		t.Errorf("type: got %v, want CREATE", tx["transaction_type"])
	}
	if tx["new_quantity"].(float64) != 25 {
		t.Errorf("new quantity: got %v, want 25", tx["new_quantity"])
	}
}

func TestCreation_400_badBody(t *testing.T) {
	r, _, _ := setupRouter(t)

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/items/item-1/creation", `{"quantity":0}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing/zero fields, got %d", w.Code)
	}
}

func TestSplit_201(t *testing.T) {
	r, _, items := setupRouter(t)
	items.PutItem(&inventory.Item{ID: "parent", Quantity: 100})
	items.PutItem(&inventory.Item{ID: "child"})
	doJSON(t, r, http.MethodPost, "/api/v1/items/parent/creation", `{"quantity":100,"user_id":"u1"}`)

	w, resp := doJSON(t, r, http.MethodPost, "/api/v1/items/parent/split",
		`{"child_item_id":"child","split_quantity":30,"remaining_quantity":70,"user_id":"u1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	// SPLIT + 2 inherited (CREATE, SPLIT) + CREATE_BY_SPLIT.
	txs := resp["transactions"].([]any)
	if len(txs) != 4 {
		t.Fatalf("expected 4 transactions, got %d", len(txs))
	}
	first := txs[0].(map[string]any)
	last := txs[len(txs)-1].(map[string]any)
	if first["transaction_type"] != "SPLIT" {
		t.Errorf("first type: got %v, want SPLIT", first["transaction_type"])
	}
	if last["transaction_type"] != "CREATE_BY_SPLIT" {
		t.Errorf("last type: got %v, want CREATE_BY_SPLIT", last["transaction_type"])
	}
}

func TestSplit_404_missingParent(t *testing.T) {
	r, _, _ := setupRouter(t)

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/items/ghost/split",
		`{"child_item_id":"child","split_quantity":1,"remaining_quantity":1,"user_id":"u1"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestAssign_201(t *testing.T) {
	r, _, items := setupRouter(t)
	items.PutItem(&inventory.Item{ID: "item-1", Quantity: 10})

	w, resp := doJSON(t, r, http.MethodPost, "/api/v1/items/item-1/assign", `{"task_id":"t1","user_id":"u1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	tx := resp["transaction"].(map[string]any)
	if tx["new_state_id"] != "assigned" {
		t.Errorf("new state: got %v, want assigned", tx["new_state_id"])
	}
	if tx["new_location"] != "task-t1" {
		t.Errorf("new location: got %v, want task-t1", tx["new_location"])
	}
}

func TestUnassign_201(t *testing.T) {
	r, _, items := setupRouter(t)
	stateID := inventory.StateAssigned
	items.PutItem(&inventory.Item{ID: "item-1", Quantity: 10, StateID: &stateID})

	w, resp := doJSON(t, r, http.MethodPost, "/api/v1/items/item-1/unassign",
		`{"task_id":"t1","old_task_ids":["t1"],"user_id":"u1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	tx := resp["transaction"].(map[string]any)
	if tx["new_state_id"] != "available" {
		t.Errorf("new state: got %v, want available", tx["new_state_id"])
	}
}

func TestScan_201(t *testing.T) {
	r, _, items := setupRouter(t)
	items.PutItem(&inventory.Item{ID: "item-1", Quantity: 10})

	w, resp := doJSON(t, r, http.MethodPost, "/api/v1/items/item-1/scan", `{"user_id":"u1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	tx := resp["transaction"].(map[string]any)
	if tx["transaction_type"] != "SCAN" {
		t.Errorf("type: got %v, want SCAN", tx["transaction_type"])
	}
}

func TestLabelPrint_201(t *testing.T) {
	r, _, items := setupRouter(t)
	items.PutItem(&inventory.Item{ID: "item-1", Quantity: 10})

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/items/item-1/labels", `{"user_id":"u1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
}

func TestBulkLabelPrint_201_partialErrors(t *testing.T) {
	r, _, items := setupRouter(t)
	items.PutItem(&inventory.Item{ID: "a", Quantity: 1})
	items.PutItem(&inventory.Item{ID: "b", Quantity: 2})

	w, resp := doJSON(t, r, http.MethodPost, "/api/v1/labels/bulk",
		`{"item_ids":["a","missing","b"],"user_id":"u1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	txs := resp["transactions"].([]any)
	if len(txs) != 2 {
		t.Errorf("expected 2 recorded transactions, got %d", len(txs))
	}
	batchErrs := resp["errors"].([]any)
	if len(batchErrs) != 1 {
		t.Fatalf("expected 1 batch error, got %d", len(batchErrs))
	}
	be := batchErrs[0].(map[string]any)
	if be["item_id"] != "missing" {
		t.Errorf("batch error item: got %v, want missing", be["item_id"])
	}
}

func TestTaskStateChanges_200(t *testing.T) {
	r, _, items := setupRouter(t)
	items.PutItem(&inventory.Item{ID: "a", Quantity: 1})
	items.PutItem(&inventory.Item{ID: "b", Quantity: 2})

	w, resp := doJSON(t, r, http.MethodPost, "/api/v1/tasks/t7/state-changes",
		`{"item_ids":["a","b"],"user_id":"u1","target_state":"In Progress"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	updated := resp["updated"].([]any)
	if len(updated) != 2 {
		t.Fatalf("expected 2 updated items, got %d", len(updated))
	}
	u := updated[0].(map[string]any)
	if u["new_state_id"] != "in-progress" {
		t.Errorf("new state: got %v, want in-progress", u["new_state_id"])
	}
	if u["new_location"] != "task-t7-in-progress" {
		t.Errorf("new location: got %v", u["new_location"])
	}
}

func TestTaskStateChanges_409_unknownState(t *testing.T) {
	r, _, items := setupRouter(t)
	items.PutItem(&inventory.Item{ID: "a", Quantity: 1})

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/tasks/t7/state-changes",
		`{"item_ids":["a"],"user_id":"u1","target_state":"Nonexistent"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for unknown target state, got %d", w.Code)
	}
}
