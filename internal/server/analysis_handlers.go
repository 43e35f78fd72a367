package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/nodeflow/internal/analysis"
	"github.com/MarcoPoloResearchLab/nodeflow/internal/coding"
	"github.com/gin-gonic/gin"
)

// scopeFromRequest reads the optional document_id or participant_id filter.
// Supplying both is rejected by the snapshot reader.
func scopeFromRequest(c *gin.Context) coding.Scope {
	return coding.Scope{
		ProjectID:     c.Param("projectID"),
		DocumentID:    c.Query("document_id"),
		ParticipantID: c.Query("participant_id"),
	}
}

func (h *httpHandler) handleStatistics(c *gin.Context) {
	stats, err := h.analysis.Statistics(c.Request.Context(), scopeFromRequest(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *httpHandler) handleOverlap(c *gin.Context) {
	matrix, err := h.analysis.Overlap(c.Request.Context(), scopeFromRequest(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOverlapPayload(matrix))
}

func (h *httpHandler) handleOutline(c *gin.Context) {
	entries, err := h.analysis.Outline(c.Request.Context(), scopeFromRequest(c), c.Query("root_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if entries == nil {
		entries = []analysis.OutlineEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
