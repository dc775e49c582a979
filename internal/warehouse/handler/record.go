package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/waretrace/waretrace/internal/ledger"
	"go.uber.org/zap"
)

// RecordHandler exposes the write-side HTTP endpoints: one per ledger
// recording operation. Authentication is the host application's concern;
// the acting user id arrives in the request body.
type RecordHandler struct {
	svc    *ledger.Service
	logger *zap.Logger
}

// NewRecordHandler creates a new RecordHandler.
func NewRecordHandler(svc *ledger.Service, logger *zap.Logger) *RecordHandler {
	return &RecordHandler{svc: svc, logger: logger}
}

// Register mounts the recording routes on the given router group.
func (h *RecordHandler) Register(rg *gin.RouterGroup) {
	items := rg.Group("/items")
	{
		items.POST("/:id/creation", h.Creation)
		items.POST("/:id/split", h.Split)
		items.POST("/:id/assign", h.Assign)
		items.POST("/:id/unassign", h.Unassign)
		items.POST("/:id/scan", h.Scan)
		items.POST("/:id/labels", h.LabelPrint)
	}
	rg.POST("/labels/bulk", h.BulkLabelPrint)
	rg.POST("/tasks/:id/state-changes", h.TaskStateChanges)
}

// recordError translates service errors to HTTP responses.
func (h *RecordHandler) recordError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error(op, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record transaction"})
	}
}

// Creation handles POST /items/:id/creation.
func (h *RecordHandler) Creation(c *gin.Context) {
	var req struct {
		Quantity float64 `json:"quantity" binding:"required,gt=0"`
		UserID   string  `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tx, err := h.svc.RecordItemCreation(c.Request.Context(), c.Param("id"), req.Quantity, req.UserID)
	if err != nil {
		h.recordError(c, "record creation", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transaction": tx})
}

// Split handles POST /items/:id/split. The path id is the parent item.
func (h *RecordHandler) Split(c *gin.Context) {
	var req struct {
		ChildItemID       string  `json:"child_item_id" binding:"required"`
		SplitQuantity     float64 `json:"split_quantity" binding:"required,gt=0"`
		RemainingQuantity float64 `json:"remaining_quantity" binding:"gte=0"`
		UserID            string  `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	txs, err := h.svc.RecordItemSplit(c.Request.Context(),
		c.Param("id"), req.ChildItemID, req.SplitQuantity, req.RemainingQuantity, req.UserID)
	if err != nil {
		h.recordError(c, "record split", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transactions": txs})
}

// Assign handles POST /items/:id/assign.
func (h *RecordHandler) Assign(c *gin.Context) {
	var req struct {
		TaskID string `json:"task_id" binding:"required"`
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tx, err := h.svc.RecordItemAssignment(c.Request.Context(), c.Param("id"), req.TaskID, req.UserID)
	if err != nil {
		h.recordError(c, "record assignment", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transaction": tx})
}

// Unassign handles POST /items/:id/unassign.
func (h *RecordHandler) Unassign(c *gin.Context) {
	var req struct {
		TaskID     string   `json:"task_id" binding:"required"`
		OldTaskIDs []string `json:"old_task_ids"`
		NewTaskIDs []string `json:"new_task_ids"`
		UserID     string   `json:"user_id" binding:"required"`
		OldStateID *string  `json:"old_state_id"`
		NewStateID *string  `json:"new_state_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tx, err := h.svc.RecordItemTaskRemoval(c.Request.Context(),
		c.Param("id"), req.TaskID, req.OldTaskIDs, req.NewTaskIDs, req.UserID, req.OldStateID, req.NewStateID)
	if err != nil {
		h.recordError(c, "record task removal", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transaction": tx})
}

// Scan handles POST /items/:id/scan.
func (h *RecordHandler) Scan(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tx, err := h.svc.RecordItemScan(c.Request.Context(), c.Param("id"), req.UserID)
	if err != nil {
		h.recordError(c, "record scan", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transaction": tx})
}

// LabelPrint handles POST /items/:id/labels.
func (h *RecordHandler) LabelPrint(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tx, err := h.svc.RecordLabelPrint(c.Request.Context(), c.Param("id"), req.UserID)
	if err != nil {
		h.recordError(c, "record label print", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transaction": tx})
}

// BulkLabelPrint handles POST /labels/bulk.
func (h *RecordHandler) BulkLabelPrint(c *gin.Context) {
	var req struct {
		ItemIDs []string `json:"item_ids" binding:"required,min=1"`
		UserID  string   `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	txs, batchErrs, err := h.svc.RecordBulkLabelPrint(c.Request.Context(), req.ItemIDs, req.UserID)
	if err != nil {
		h.recordError(c, "record bulk label print", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transactions": txs, "errors": batchErrs})
}

// TaskStateChanges handles POST /tasks/:id/state-changes.
func (h *RecordHandler) TaskStateChanges(c *gin.Context) {
	var req struct {
		ItemIDs     []string `json:"item_ids" binding:"required,min=1"`
		UserID      string   `json:"user_id" binding:"required"`
		TargetState string   `json:"target_state" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, batchErrs, err := h.svc.RecordTaskStateChanges(c.Request.Context(),
		c.Param("id"), req.ItemIDs, req.UserID, req.TargetState)
	if err != nil {
		h.recordError(c, "record task state changes", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated, "errors": batchErrs})
}
