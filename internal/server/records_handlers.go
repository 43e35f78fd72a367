package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *httpHandler) handleListProjects(c *gin.Context) {
	projects, err := h.coding.ListProjects(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	payloads := make([]projectPayload, 0, len(projects))
	for _, project := range projects {
		payloads = append(payloads, newProjectPayload(project))
	}
	c.JSON(http.StatusOK, gin.H{"projects": payloads})
}

func (h *httpHandler) handleCreateProject(c *gin.Context) {
	var request projectRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.invalidRequest(c, err)
		return
	}
	project, err := h.coding.CreateProject(c.Request.Context(), request.Name, request.Description)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newProjectPayload(project))
}

func (h *httpHandler) handleGetProject(c *gin.Context) {
	project, err := h.coding.GetProject(c.Request.Context(), c.Param("projectID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProjectPayload(project))
}

func (h *httpHandler) handleRenameProject(c *gin.Context) {
	var request projectRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.invalidRequest(c, err)
		return
	}
	project, err := h.coding.RenameProject(c.Request.Context(), c.Param("projectID"), request.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProjectPayload(project))
}

func (h *httpHandler) handleDeleteProject(c *gin.Context) {
	if err := h.coding.DeleteProject(c.Request.Context(), c.Param("projectID")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleWordCount(c *gin.Context) {
	projectID := c.Param("projectID")
	participantID := c.Query("participant_id")

	var (
		words int
		err   error
	)
	if participantID != "" {
		words, err = h.coding.ParticipantWordCount(c.Request.Context(), projectID, participantID)
	} else {
		words, err = h.coding.ProjectWordCount(c.Request.Context(), projectID)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"word_count": words})
}

func (h *httpHandler) handleListParticipants(c *gin.Context) {
	participants, err := h.coding.ListParticipants(c.Request.Context(), c.Param("projectID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	payloads := make([]participantPayload, 0, len(participants))
	for _, participant := range participants {
		payloads = append(payloads, newParticipantPayload(participant))
	}
	c.JSON(http.StatusOK, gin.H{"participants": payloads})
}

func (h *httpHandler) handleCreateParticipant(c *gin.Context) {
	var request participantRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.invalidRequest(c, err)
		return
	}
	participant, err := h.coding.CreateParticipant(c.Request.Context(), c.Param("projectID"), request.Name, request.Details)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newParticipantPayload(participant))
}

func (h *httpHandler) handleUpdateParticipant(c *gin.Context) {
	var request participantRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.invalidRequest(c, err)
		return
	}
	participant, err := h.coding.UpdateParticipant(c.Request.Context(), c.Param("participantID"), request.Name, request.Details)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newParticipantPayload(participant))
}

func (h *httpHandler) handleDeleteParticipant(c *gin.Context) {
	if err := h.coding.DeleteParticipant(c.Request.Context(), c.Param("participantID")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleListDocuments(c *gin.Context) {
	summaries, err := h.coding.ListDocuments(c.Request.Context(), c.Param("projectID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	payloads := make([]documentPayload, 0, len(summaries))
	for _, summary := range summaries {
		payloads = append(payloads, newDocumentSummaryPayload(summary))
	}
	c.JSON(http.StatusOK, gin.H{"documents": payloads})
}

func (h *httpHandler) handleCreateDocument(c *gin.Context) {
	var request createDocumentPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.invalidRequest(c, err)
		return
	}
	document, err := h.coding.CreateDocument(c.Request.Context(), request.toRequest(c.Param("projectID")))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newDocumentPayload(document))
}

func (h *httpHandler) handleGetDocument(c *gin.Context) {
	document, err := h.coding.GetDocument(c.Request.Context(), c.Param("documentID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newDocumentPayload(document))
}

func (h *httpHandler) handleRenameDocument(c *gin.Context) {
	var request documentTitlePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.invalidRequest(c, err)
		return
	}
	document, err := h.coding.RenameDocument(c.Request.Context(), c.Param("documentID"), request.Title)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newDocumentPayload(document))
}

// handleUpdateDocumentContent replaces the text without revalidating existing segment offsets.
func (h *httpHandler) handleUpdateDocumentContent(c *gin.Context) {
	var request documentContentPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.invalidRequest(c, err)
		return
	}
	document, err := h.coding.UpdateDocumentContent(c.Request.Context(), c.Param("documentID"), request.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newDocumentPayload(document))
}

func (h *httpHandler) handleAssignDocumentParticipant(c *gin.Context) {
	var request documentParticipantPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.invalidRequest(c, err)
		return
	}
	document, err := h.coding.AssignDocumentParticipant(c.Request.Context(), c.Param("documentID"), request.ParticipantID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newDocumentPayload(document))
}

func (h *httpHandler) handleDeleteDocument(c *gin.Context) {
	if err := h.coding.DeleteDocument(c.Request.Context(), c.Param("documentID")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
