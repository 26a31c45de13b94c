package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/storefront-iam/internal/core/domain"
	"github.com/arklim/storefront-iam/internal/usecase"
)

// ProductHandler serves the public catalog. Listings of deactivated owners are hidden.
type ProductHandler struct {
	catalog *usecase.CatalogService
}

// NewProductHandler constructs ProductHandler.
func NewProductHandler(catalog *usecase.CatalogService) *ProductHandler {
	return &ProductHandler{catalog: catalog}
}

// RegisterRoutes binds the public product routes.
func (h *ProductHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", h.list)
}

func (h *ProductHandler) list(c *gin.Context) {
	filter := domain.ListingFilter{
		Name:   strings.TrimSpace(c.Query("name")),
		Limit:  queryUint(c, "limit"),
		Offset: queryUint(c, "offset"),
	}

	var ok bool
	if filter.MinPrice, ok = queryPrice(c, "min_price"); !ok {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "min_price must be a number"))
		return
	}
	if filter.MaxPrice, ok = queryPrice(c, "max_price"); !ok {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "max_price must be a number"))
		return
	}

	listings, err := h.catalog.ListPublic(c.Request.Context(), filter)
	if err != nil {
		respondUsecaseError(c, err, "failed to list products")
		return
	}

	resp := make([]ProductResponse, 0, len(listings))
	for _, listing := range listings {
		resp = append(resp, newProductResponse(listing))
	}
	c.JSON(http.StatusOK, resp)
}

func queryPrice(c *gin.Context, name string) (*float64, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return nil, false
	}
	return &v, true
}
