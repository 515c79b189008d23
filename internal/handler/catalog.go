package handler

import (
	"net/http"

	"billpos/internal/dto"
	"billpos/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// CatalogHandler serves the read-only catalog lookups tills need to build
// their menus. Catalog maintenance happens outside this service, so the only
// write is dropping the cache after an upstream change.
type CatalogHandler struct {
	catalog repository.CatalogRepository
	rdb     *redis.Client
}

func NewCatalogHandler(catalog repository.CatalogRepository, rdb *redis.Client) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, rdb: rdb}
}

// PriceGroups godoc
// @Summary      List price groups
// @Tags         catalog
// @Produce      json
// @Success      200  {array} dto.PriceGroupResponse
// @Router       /v1/catalog/price-groups [get]
func (h *CatalogHandler) PriceGroups(c *gin.Context) {
	groups, err := h.catalog.ListPriceGroups(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]dto.PriceGroupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, dto.PriceGroupResponse{ID: g.ID.String(), Name: g.Name, ShortName: g.ShortName})
	}
	c.JSON(http.StatusOK, out)
}

// Printers godoc
// @Summary      List printers
// @Tags         catalog
// @Produce      json
// @Success      200  {array} dto.PrinterResponse
// @Router       /v1/catalog/printers [get]
func (h *CatalogHandler) Printers(c *gin.Context) {
	printers, err := h.catalog.ListPrinters(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]dto.PrinterResponse, 0, len(printers))
	for _, p := range printers {
		out = append(out, dto.PrinterResponse{ID: p.ID.String(), Name: p.Name, Address: p.Address, PrintWidth: p.Width()})
	}
	c.JSON(http.StatusOK, out)
}

// Invalidate drops every cached catalog entry.
// @Summary      Invalidate catalog cache
// @Tags         catalog
// @Success      204
// @Router       /v1/catalog/cache [delete]
func (h *CatalogHandler) Invalidate(c *gin.Context) {
	if err := repository.InvalidateCatalog(c.Request.Context(), h.rdb); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
