// Package client provides a Go SDK for the waretrace HTTP API. It covers
// the ledger read surface (overview, verification, blocks, histories,
// states) plus genesis bootstrap; it is what the warectl CLI is built on.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a waretrace server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client for the given base URL (e.g. "http://localhost:8080").
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// apiError is the JSON error envelope the server returns.
type apiError struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/api/v1"+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<22))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Block mirrors the server's block representation.
type Block struct {
	ID               string    `json:"id"`
	Number           int64     `json:"block_number"`
	Hash             string    `json:"block_hash"`
	PreviousHash     string    `json:"previous_hash"`
	TransactionCount int       `json:"transaction_count"`
	MerkleRoot       string    `json:"merkle_root"`
	CreatedAt        time.Time `json:"created_at"`
}

// Transaction mirrors the server's transaction representation.
type Transaction struct {
	ID          string    `json:"id"`
	Hash        string    `json:"transaction_hash"`
	ItemID      string    `json:"item_id"`
	UserID      string    `json:"user_id"`
	Type        string    `json:"transaction_type"`
	OldQuantity float64   `json:"old_quantity"`
	NewQuantity float64   `json:"new_quantity"`
	OldStateID  *string   `json:"old_state_id"`
	NewStateID  *string   `json:"new_state_id"`
	OldLocation *string   `json:"old_location"`
	NewLocation *string   `json:"new_location"`
	BlockID     string    `json:"block_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// HistoryEntry is one transaction in an item's history.
type HistoryEntry struct {
	Transaction *Transaction `json:"transaction"`
	Username    string       `json:"username,omitempty"`
}

// Overview summarises the chain.
type Overview struct {
	Blocks       int    `json:"blocks"`
	Transactions int    `json:"transactions"`
	TipNumber    int64  `json:"tip_number"`
	TipHash      string `json:"tip_hash"`
}

// StateView is an item's current materialised state.
type StateView struct {
	ItemID          string    `json:"item_id"`
	Quantity        float64   `json:"quantity"`
	StateID         *string   `json:"state_id"`
	Location        *string   `json:"location"`
	TransactionID   string    `json:"transaction_id"`
	TransactionHash string    `json:"transaction_hash"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// VerifyResult reports a chain integrity check.
type VerifyResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// Initialize bootstraps the genesis block. Idempotent.
func (c *Client) Initialize(ctx context.Context) (*Block, error) {
	var resp struct {
		Block *Block `json:"block"`
	}
	if err := c.do(ctx, http.MethodPost, "/ledger/initialize", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Block, nil
}

// Overview fetches chain counts and the current tip.
func (c *Client) Overview(ctx context.Context) (*Overview, error) {
	var o Overview
	if err := c.do(ctx, http.MethodGet, "/ledger", nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// Verify asks the server to walk the full chain.
func (c *Client) Verify(ctx context.Context) (*VerifyResult, error) {
	var r VerifyResult
	if err := c.do(ctx, http.MethodGet, "/ledger/verify", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Blocks lists blocks in ascending number order.
func (c *Client) Blocks(ctx context.Context, limit, offset int) ([]*Block, error) {
	var resp struct {
		Blocks []*Block `json:"blocks"`
	}
	path := fmt.Sprintf("/ledger/blocks?limit=%d&offset=%d", limit, offset)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Blocks, nil
}

// Block fetches one block and its transactions.
func (c *Client) Block(ctx context.Context, number int64) (*Block, []*Transaction, error) {
	var resp struct {
		Block        *Block         `json:"block"`
		Transactions []*Transaction `json:"transactions"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/ledger/blocks/%d", number), nil, &resp); err != nil {
		return nil, nil, err
	}
	return resp.Block, resp.Transactions, nil
}

// ItemHistory fetches an item's full transaction history, oldest first.
func (c *Client) ItemHistory(ctx context.Context, itemID string) ([]HistoryEntry, error) {
	var resp struct {
		History []HistoryEntry `json:"history"`
	}
	if err := c.do(ctx, http.MethodGet, "/items/"+url.PathEscape(itemID)+"/history", nil, &resp); err != nil {
		return nil, err
	}
	return resp.History, nil
}

// ItemState fetches an item's current materialised state.
func (c *Client) ItemState(ctx context.Context, itemID string) (*StateView, error) {
	var s StateView
	if err := c.do(ctx, http.MethodGet, "/items/"+url.PathEscape(itemID)+"/state", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
