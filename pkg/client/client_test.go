package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/waretrace/waretrace/pkg/client"
)

var ctx = context.Background()

func TestInitialize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/ledger/initialize" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"block":{"block_number":0,"block_hash":"abc"}}`))
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	blk, err := c.Initialize(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if blk.Number != 0 || blk.Hash != "abc" {
		t.Errorf("block: got %+v", blk)
	}
}

func TestOverview(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/ledger" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"blocks":4,"transactions":31,"tip_number":3,"tip_hash":"tip"}`))
	}))
	defer srv.Close()

	o, err := client.New(srv.URL).Overview(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if o.Blocks != 4 || o.Transactions != 31 || o.TipNumber != 3 || o.TipHash != "tip" {
		t.Errorf("overview: got %+v", o)
	}
}

func TestVerify_invalidChain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"valid":false,"error":"block 2 hash mismatch"}`))
	}))
	defer srv.Close()

	result, err := client.New(srv.URL).Verify(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if result.Valid {
		t.Error("expected valid=false")
	}
	if result.Error != "block 2 hash mismatch" {
		t.Errorf("error detail: got %q", result.Error)
	}
}

func TestBlocks_pagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("limit") != "5" || q.Get("offset") != "10" {
			t.Errorf("pagination not forwarded: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"blocks":[{"block_number":10},{"block_number":11}]}`))
	}))
	defer srv.Close()

	blocks, err := client.New(srv.URL).Blocks(ctx, 5, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 2 || blocks[0].Number != 10 {
		t.Errorf("blocks: got %+v", blocks)
	}
}

func TestItemHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/items/item-1/history" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"history":[{"transaction":{"transaction_type":"CREATE"},"username":"clerk"}]}`))
	}))
	defer srv.Close()

	entries, err := client.New(srv.URL).ItemHistory(ctx, "item-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Username != "clerk" {
		t.Errorf("history: got %+v", entries)
	}
	if entries[0].Transaction.Type != "CREATE" {
		t.Errorf("transaction type: got %q", entries[0].Transaction.Type)
	}
}

func TestDo_apiErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"item not found"}`))
	}))
	defer srv.Close()

	_, err := client.New(srv.URL).ItemState(ctx, "ghost")
	if err == nil {
		t.Fatal("expected an error for 404")
	}
	if !strings.Contains(err.Error(), "item not found") {
		t.Errorf("error should carry the server message, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error should carry the status code, got %q", err.Error())
	}
}

func TestDo_non2xxWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := client.New(srv.URL).Overview(ctx)
	if err == nil {
		t.Fatal("expected an error for 502")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error should carry the status code, got %q", err.Error())
	}
}
