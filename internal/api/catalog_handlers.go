package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listMembers(c *gin.Context) {
	members, err := h.catalog.ListMembers(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", members)
}

func (h *Handler) getMember(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	member, err := h.catalog.GetMember(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", member)
}

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context(), c.Query("category"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", products)
}

func (h *Handler) listProductsByCategory(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context(), c.Param("category"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", products)
}

func (h *Handler) getProduct(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	product, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", product)
}

func (h *Handler) upcomingEvents(c *gin.Context) {
	events, err := h.catalog.UpcomingEvents(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", events)
}

func (h *Handler) featuredEvents(c *gin.Context) {
	events, err := h.catalog.FeaturedEvents(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", events)
}

func (h *Handler) eventsByMonth(c *gin.Context) {
	events, err := h.catalog.EventsByMonth(c.Request.Context(), c.Param("month"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", events)
}
