package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/nodeflow/internal/coding"
	"github.com/gin-gonic/gin"
)

func (h *httpHandler) handleListNodes(c *gin.Context) {
	nodes, err := h.coding.ListNodes(c.Request.Context(), c.Param("projectID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	payloads := make([]nodePayload, 0, len(nodes))
	for _, node := range nodes {
		payloads = append(payloads, newNodePayload(node))
	}
	c.JSON(http.StatusOK, gin.H{"nodes": payloads})
}

func (h *httpHandler) handleCreateNode(c *gin.Context) {
	var request createNodePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.invalidRequest(c, err)
		return
	}
	node, err := h.coding.CreateNode(c.Request.Context(), request.toRequest(c.Param("projectID")))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newNodePayload(node))
}

func (h *httpHandler) handleGetNode(c *gin.Context) {
	node, err := h.coding.GetNode(c.Request.Context(), c.Param("nodeID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newNodePayload(node))
}

func (h *httpHandler) handleRenameNode(c *gin.Context) {
	var request nodeNamePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.invalidRequest(c, err)
		return
	}
	node, err := h.coding.RenameNode(c.Request.Context(), c.Param("nodeID"), request.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newNodePayload(node))
}

func (h *httpHandler) handleRecolorNode(c *gin.Context) {
	var request nodeColorPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.invalidRequest(c, err)
		return
	}
	node, err := h.coding.RecolorNode(c.Request.Context(), c.Param("nodeID"), request.Color)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newNodePayload(node))
}

// handleMoveNode reparents a node; a null or absent parent_id moves it to the root group.
func (h *httpHandler) handleMoveNode(c *gin.Context) {
	var request moveNodePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.invalidRequest(c, err)
		return
	}
	node, err := h.coding.MoveNode(c.Request.Context(), c.Param("nodeID"), request.ParentID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newNodePayload(node))
}

func (h *httpHandler) handleReorderSiblings(c *gin.Context) {
	var request reorderPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.invalidRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	if err := h.coding.ReorderSiblings(ctx, request.NodeIDs); err != nil {
		h.respondError(c, err)
		return
	}
	nodes, err := h.coding.ListNodes(ctx, c.Param("projectID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	payloads := make([]nodePayload, 0, len(nodes))
	for _, node := range nodes {
		payloads = append(payloads, newNodePayload(node))
	}
	c.JSON(http.StatusOK, gin.H{"nodes": payloads})
}

func (h *httpHandler) handleDeleteNode(c *gin.Context) {
	deletion, err := h.coding.DeleteNode(c.Request.Context(), c.Param("nodeID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, nodeDeletionPayload{
		NodeIDs:         deletion.NodeIDs,
		SegmentsDeleted: deletion.SegmentsDeleted,
	})
}

func (h *httpHandler) handleDescendants(c *gin.Context) {
	descendants, err := h.coding.Descendants(c.Request.Context(), c.Param("nodeID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if descendants == nil {
		descendants = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"node_ids": descendants})
}

func (h *httpHandler) handleNodeFamilySegments(c *gin.Context) {
	ctx := c.Request.Context()
	node, err := h.coding.GetNode(ctx, c.Param("nodeID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	rows, err := h.coding.ListSegmentsForNodeFamily(ctx, node.ProjectID, node.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"segments": newSegmentRowPayloads(rows)})
}

// handleListProjectSegments lists every segment of a project, or only those attributed
// to the participant named by the participant_id query parameter.
func (h *httpHandler) handleListProjectSegments(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := c.Param("projectID")

	var (
		segments []coding.SegmentRow
		err      error
	)
	if participantID := c.Query("participant_id"); participantID != "" {
		segments, err = h.coding.ListSegmentsForParticipant(ctx, projectID, participantID)
	} else {
		segments, err = h.coding.ListSegmentsForProject(ctx, projectID)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"segments": newSegmentRowPayloads(segments)})
}

func (h *httpHandler) handleListDocumentSegments(c *gin.Context) {
	rows, err := h.coding.ListSegmentsForDocument(c.Request.Context(), c.Param("documentID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"segments": newSegmentRowPayloads(rows)})
}

func (h *httpHandler) handleAddSegment(c *gin.Context) {
	var request addSegmentPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.invalidRequest(c, err)
		return
	}
	segment, err := h.coding.AddSegment(c.Request.Context(), request.toRequest(c.Param("documentID")))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newSegmentPayload(segment))
}

func (h *httpHandler) handleDeleteSegment(c *gin.Context) {
	if err := h.coding.DeleteSegment(c.Request.Context(), c.Param("segmentID")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
