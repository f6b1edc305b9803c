package handlers

import (
	"net/http"

	"github.com/dmitrijs2005/docvault/internal/server/auth"
	"github.com/dmitrijs2005/docvault/internal/server/http/response"
	"github.com/gin-gonic/gin"
)

type TagHandler struct {
	tags TagService
}

func NewTagHandler(tags TagService) *TagHandler {
	return &TagHandler{tags: tags}
}

func (h *TagHandler) List(c *gin.Context) {
	tags, err := h.tags.List(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	out := make([]tagDTO, 0, len(tags))
	for _, t := range tags {
		out = append(out, tagDTO{ID: t.ID, Name: t.Name, UsageCount: t.UsageCount})
	}
	response.RespondOK(c, out)
}

func (h *TagHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Fail(c, err)
		return
	}
	rc, _ := auth.FromContext(c.Request.Context())
	if err := h.tags.Delete(c.Request.Context(), rc, id); err != nil {
		response.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
