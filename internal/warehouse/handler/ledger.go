package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/waretrace/waretrace/internal/inventory"
	"github.com/waretrace/waretrace/internal/ledger"
	"go.uber.org/zap"
)

// ItemReader is the read-only item access the ledger handlers need.
type ItemReader interface {
	GetItem(ctx context.Context, id string) (*inventory.Item, error)
}

// LedgerHandler exposes the read-side HTTP endpoints for the ledger.
type LedgerHandler struct {
	svc    *ledger.Service
	items  ItemReader
	logger *zap.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(svc *ledger.Service, items ItemReader, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{svc: svc, items: items, logger: logger}
}

// Register mounts the ledger routes on the given router group.
func (h *LedgerHandler) Register(rg *gin.RouterGroup) {
	l := rg.Group("/ledger")
	{
		l.POST("/initialize", h.Initialize)
		l.GET("", h.Overview)
		l.GET("/verify", h.Verify)
		l.GET("/blocks", h.ListBlocks)
		l.GET("/blocks/:number", h.GetBlock)
		l.GET("/transactions", h.ListTransactions)
	}
	items := rg.Group("/items")
	{
		items.GET("/:id/history", h.ItemHistory)
		items.GET("/:id/state", h.ItemState)
		items.GET("/:id/state/:txID", h.ItemStateAt)
		items.GET("/:id/verify", h.ItemVerify)
	}
}

// Initialize handles POST /ledger/initialize — idempotent genesis bootstrap.
func (h *LedgerHandler) Initialize(c *gin.Context) {
	blk, err := h.svc.CreateGenesisBlock(c.Request.Context())
	if err != nil {
		h.logger.Error("genesis bootstrap", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to initialize ledger"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"block": blk})
}

// Overview handles GET /ledger — chain lengths and the current tip.
func (h *LedgerHandler) Overview(c *gin.Context) {
	o, err := h.svc.ChainOverview(c.Request.Context())
	if err != nil {
		h.logger.Error("ledger overview", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query ledger"})
		return
	}
	c.JSON(http.StatusOK, o)
}

// Verify handles GET /ledger/verify — walks the full chain and reports integrity.
func (h *LedgerHandler) Verify(c *gin.Context) {
	if err := h.svc.Verify(c.Request.Context()); err != nil {
		if errors.Is(err, ledger.ErrChainBroken) {
			h.logger.Warn("ledger integrity check failed", zap.Error(err))
			c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
			return
		}
		h.logger.Error("ledger verify", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify ledger"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// ListBlocks handles GET /ledger/blocks.
func (h *LedgerHandler) ListBlocks(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	blocks, err := h.svc.Blocks(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error("list blocks", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list blocks"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocks": blocks})
}

// GetBlock handles GET /ledger/blocks/:number.
func (h *LedgerHandler) GetBlock(c *gin.Context) {
	number, err := strconv.ParseInt(c.Param("number"), 10, 64)
	if err != nil || number < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "block number must be a non-negative integer"})
		return
	}

	blk, txs, err := h.svc.BlockByNumber(c.Request.Context(), number)
	if errors.Is(err, ledger.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "block not found"})
		return
	}
	if err != nil {
		h.logger.Error("get block", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load block"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"block": blk, "transactions": txs})
}

// ListTransactions handles GET /ledger/transactions?item_id=&type=&limit=.
func (h *LedgerHandler) ListTransactions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	txs, err := h.svc.Transactions(c.Request.Context(), ledger.TransactionFilter{
		ItemID: c.Query("item_id"),
		Type:   ledger.TransactionType(c.Query("type")),
		Limit:  limit,
	})
	if err != nil {
		h.logger.Error("list transactions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list transactions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

// ItemHistory handles GET /items/:id/history.
func (h *LedgerHandler) ItemHistory(c *gin.Context) {
	ctx := c.Request.Context()
	itemID := c.Param("id")

	item, err := h.items.GetItem(ctx, itemID)
	if errors.Is(err, inventory.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}
	if err != nil {
		h.logger.Error("item lookup", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load item"})
		return
	}

	history, err := h.svc.ItemHistory(ctx, itemID)
	if err != nil {
		h.logger.Error("item history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item, "history": history})
}

// ItemState handles GET /items/:id/state — the current materialised state.
func (h *LedgerHandler) ItemState(c *gin.Context) {
	state, err := h.svc.ItemCurrentState(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("item state", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load item state"})
		return
	}
	if state == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no ledger history for item"})
		return
	}
	c.JSON(http.StatusOK, state)
}

// ItemStateAt handles GET /items/:id/state/:txID — point-in-time lookup.
func (h *LedgerHandler) ItemStateAt(c *gin.Context) {
	txID, err := uuid.Parse(c.Param("txID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "txID must be a valid transaction id"})
		return
	}

	state, err := h.svc.ItemStateAt(c.Request.Context(), c.Param("id"), txID)
	if err != nil {
		h.logger.Error("item state at transaction", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load item state"})
		return
	}
	if state == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot for that transaction"})
		return
	}
	c.JSON(http.StatusOK, state)
}

// ItemVerify handles GET /items/:id/verify — compares the inventory row
// against the ledger's current state.
func (h *LedgerHandler) ItemVerify(c *gin.Context) {
	ctx := c.Request.Context()
	itemID := c.Param("id")

	item, err := h.items.GetItem(ctx, itemID)
	if errors.Is(err, inventory.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}
	if err != nil {
		h.logger.Error("item lookup", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load item"})
		return
	}

	state, err := h.svc.ItemCurrentState(ctx, itemID)
	if err != nil {
		h.logger.Error("item state", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load item state"})
		return
	}

	verification := gin.H{
		"item_id":           itemID,
		"database_quantity": item.Quantity,
		"database_state_id": item.StateID,
		"ledger_quantity":   item.Quantity,
		"ledger_state_id":   item.StateID,
		"consistent":        true,
	}
	if state != nil {
		consistent := state.Quantity == item.Quantity &&
			equalStateRefs(state.StateID, item.StateID)
		verification["ledger_quantity"] = state.Quantity
		verification["ledger_state_id"] = state.StateID
		verification["consistent"] = consistent
	}
	c.JSON(http.StatusOK, gin.H{"verification": verification})
}

func equalStateRefs(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
