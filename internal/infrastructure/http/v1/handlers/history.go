package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"posledger/internal/core/apperror"
	"posledger/internal/domain/audit"
	"posledger/internal/infrastructure/http/v1/dto"
)

// HistoryEntry is one audit event as rendered by the API.
type HistoryEntry struct {
	Action     audit.Action   `json:"action"`
	Actor      string         `json:"actor"`
	OldValues  map[string]any `json:"oldValues,omitempty"`
	NewValues  map[string]any `json:"newValues,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// entityHistory serves the audit trail of the entity named by the :id path parameter.
func entityHistory(h *BaseHandler, reader audit.Reader, entityType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if reader == nil {
			h.Error(c, apperror.NewNotFound("history", entityType))
			return
		}
		entityID, ok := h.PathID(c, "id")
		if !ok {
			return
		}

		limit := h.ParseIntQuery(c, "limit", 100)
		events, err := reader.History(c.Request.Context(), entityType, entityID, limit)
		if err != nil {
			h.Error(c, err)
			return
		}

		entries := make([]HistoryEntry, 0, len(events))
		for _, e := range events {
			entries = append(entries, HistoryEntry{
				Action:     e.Action,
				Actor:      e.Actor,
				OldValues:  e.OldValues,
				NewValues:  e.NewValues,
				OccurredAt: e.OccurredAt,
			})
		}
		h.OK(c, dto.NewListResponse(entries, limit, 0))
	}
}
