package handlers

import (
	"github.com/dmitrijs2005/docvault/internal/server/auth"
	"github.com/dmitrijs2005/docvault/internal/server/http/response"
	"github.com/dmitrijs2005/docvault/internal/server/models"
	"github.com/gin-gonic/gin"
)

type LogHandler struct {
	audit AuditService
}

func NewLogHandler(audit AuditService) *LogHandler {
	return &LogHandler{audit: audit}
}

type listLogsResponse struct {
	Logs  []activityLogDTO `json:"logs"`
	Total int64            `json:"total"`
}

// List serves GET /api/logs. Query parameters: user, action, entity, from,
// to, limit, offset.
func (h *LogHandler) List(c *gin.Context) {
	var (
		filter models.LogFilter
		err    error
	)
	filter.Action = c.Query("action")
	filter.EntityType = c.Query("entity")
	if filter.UserID, err = optionalID(c.Query("user"), "user"); err != nil {
		response.Fail(c, err)
		return
	}
	if filter.From, err = optionalDate(c.Query("from"), "from"); err != nil {
		response.Fail(c, err)
		return
	}
	if filter.To, err = optionalDate(c.Query("to"), "to"); err != nil {
		response.Fail(c, err)
		return
	}
	if filter.Limit, err = optionalInt(c.Query("limit"), "limit"); err != nil {
		response.Fail(c, err)
		return
	}
	if filter.Offset, err = optionalInt(c.Query("offset"), "offset"); err != nil {
		response.Fail(c, err)
		return
	}

	rc, _ := auth.FromContext(c.Request.Context())
	logs, total, err := h.audit.List(c.Request.Context(), rc, filter)
	if err != nil {
		response.Fail(c, err)
		return
	}

	out := make([]activityLogDTO, 0, len(logs))
	for _, l := range logs {
		out = append(out, activityLogDTO{
			ID:          l.ID,
			UserID:      l.UserID,
			Username:    l.Username,
			Action:      l.Action,
			Description: l.Description,
			IPAddress:   l.IPAddress,
			UserAgent:   l.UserAgent,
			EntityType:  l.EntityType,
			EntityID:    l.EntityID,
			CreatedAt:   l.CreatedAt,
		})
	}
	response.RespondOK(c, listLogsResponse{Logs: out, Total: total})
}
