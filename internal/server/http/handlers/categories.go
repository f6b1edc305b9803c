package handlers

import (
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/server/auth"
	"github.com/dmitrijs2005/docvault/internal/server/http/response"
	"github.com/dmitrijs2005/docvault/internal/server/models"
	"github.com/gin-gonic/gin"
)

type CategoryHandler struct {
	categories CategoryService
}

func NewCategoryHandler(categories CategoryService) *CategoryHandler {
	return &CategoryHandler{categories: categories}
}

func bindName(c *gin.Context) (nameRequest, bool) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, fmt.Errorf("%w: malformed request body", common.ErrorValidation))
		return req, false
	}
	return req, true
}

func toCategoryDTO(cat *models.Category) categoryDTO {
	return categoryDTO{ID: cat.ID, Name: cat.Name, Description: cat.Description, CreatedAt: cat.CreatedAt}
}

func (h *CategoryHandler) List(c *gin.Context) {
	cats, err := h.categories.List(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	out := make([]categoryDTO, 0, len(cats))
	for i := range cats {
		out = append(out, toCategoryDTO(&cats[i]))
	}
	response.RespondOK(c, out)
}

func (h *CategoryHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Fail(c, err)
		return
	}
	cat, err := h.categories.Get(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, toCategoryDTO(cat))
}

func (h *CategoryHandler) Create(c *gin.Context) {
	req, ok := bindName(c)
	if !ok {
		return
	}
	rc, _ := auth.FromContext(c.Request.Context())
	id, err := h.categories.Create(c.Request.Context(), rc, req.Name, req.Description)
	if err != nil {
		response.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, idResponse{ID: id})
}

func (h *CategoryHandler) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Fail(c, err)
		return
	}
	req, ok := bindName(c)
	if !ok {
		return
	}
	rc, _ := auth.FromContext(c.Request.Context())
	if err := h.categories.Update(c.Request.Context(), rc, id, req.Name, req.Description); err != nil {
		response.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete refuses with 409 while documents still reference the category.
func (h *CategoryHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Fail(c, err)
		return
	}
	rc, _ := auth.FromContext(c.Request.Context())
	if err := h.categories.Delete(c.Request.Context(), rc, id); err != nil {
		response.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CategoryHandler) ListSubcategories(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Fail(c, err)
		return
	}
	subs, err := h.categories.ListSubcategories(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	out := make([]subcategoryDTO, 0, len(subs))
	for _, s := range subs {
		out = append(out, subcategoryDTO{
			ID:          s.ID,
			CategoryID:  s.CategoryID,
			Name:        s.Name,
			Description: s.Description,
			CreatedAt:   s.CreatedAt,
		})
	}
	response.RespondOK(c, out)
}

func (h *CategoryHandler) CreateSubcategory(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Fail(c, err)
		return
	}
	req, ok := bindName(c)
	if !ok {
		return
	}
	rc, _ := auth.FromContext(c.Request.Context())
	subID, err := h.categories.CreateSubcategory(c.Request.Context(), rc, id, req.Name, req.Description)
	if err != nil {
		response.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, idResponse{ID: subID})
}

func (h *CategoryHandler) UpdateSubcategory(c *gin.Context) {
	id, err := pathID(c, "subID")
	if err != nil {
		response.Fail(c, err)
		return
	}
	req, ok := bindName(c)
	if !ok {
		return
	}
	rc, _ := auth.FromContext(c.Request.Context())
	if err := h.categories.UpdateSubcategory(c.Request.Context(), rc, id, req.Name, req.Description); err != nil {
		response.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CategoryHandler) DeleteSubcategory(c *gin.Context) {
	id, err := pathID(c, "subID")
	if err != nil {
		response.Fail(c, err)
		return
	}
	rc, _ := auth.FromContext(c.Request.Context())
	if err := h.categories.DeleteSubcategory(c.Request.Context(), rc, id); err != nil {
		response.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
