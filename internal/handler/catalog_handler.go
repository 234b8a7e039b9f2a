package handler

import (
	"net/http"
	"strconv"

	"duka/internal/repository"

	"github.com/gin-gonic/gin"
)

// CatalogHandler serves the public storefront listing.
type CatalogHandler struct {
	catalogRepo *repository.CatalogRepository
	walletRepo  *repository.WalletRepository
}

func NewCatalogHandler(catalogRepo *repository.CatalogRepository, walletRepo *repository.WalletRepository) *CatalogHandler {
	return &CatalogHandler{catalogRepo: catalogRepo, walletRepo: walletRepo}
}

func (h *CatalogHandler) ListCategories(c *gin.Context) {
	list, err := h.catalogRepo.ListCategories(true)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list categories"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": list})
}

func (h *CatalogHandler) ListPackages(c *gin.Context) {
	categoryID, _ := strconv.ParseUint(c.Query("category_id"), 10, 32)
	list, err := h.catalogRepo.ListPackages(uint(categoryID), true)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list packages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"packages": list})
}

func (h *CatalogHandler) GetPackage(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	p, err := h.catalogRepo.GetPackage(uint(id))
	if err != nil || !p.IsActive {
		c.JSON(http.StatusNotFound, gin.H{"error": "package not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"package": p})
}

func (h *CatalogHandler) ListProducts(c *gin.Context) {
	list, err := h.catalogRepo.ListProducts(true)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list products"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": list})
}

// ListWallets returns the active crypto receiving addresses for checkout.
func (h *CatalogHandler) ListWallets(c *gin.Context) {
	list, err := h.walletRepo.List(true)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list wallets"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallets": list})
}
