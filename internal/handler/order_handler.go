package handler

import (
	"net/http"
	"strings"

	"duka/config"
	"duka/internal/domain"
	"duka/internal/middleware"
	"duka/internal/models"
	"duka/internal/repository"
	"duka/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// OrderHandler creates purchase attempts and lets customers review them.
// Every "try again" creates a fresh order row; a stale attempt left in
// processing never blocks a new one, since callback correlation is per row.
type OrderHandler struct {
	cfg         *config.Config
	orderRepo   *repository.OrderRepository
	catalogRepo *repository.CatalogRepository
	walletRepo  *repository.WalletRepository
	notifier    service.Notifier
}

func NewOrderHandler(cfg *config.Config, orderRepo *repository.OrderRepository, catalogRepo *repository.CatalogRepository, walletRepo *repository.WalletRepository, notifier service.Notifier) *OrderHandler {
	return &OrderHandler{cfg: cfg, orderRepo: orderRepo, catalogRepo: catalogRepo, walletRepo: walletRepo, notifier: notifier}
}

type createOrderRequest struct {
	ItemType string `json:"item_type" binding:"required,oneof=package product"`
	ItemID   uint   `json:"item_id" binding:"required"`
	Method   string `json:"method" binding:"required"`
	// TransactionHash is the user-submitted proof for crypto transfers;
	// unused for mpesa, where the reference is assigned at push initiation.
	TransactionHash string `json:"transaction_hash"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order := &models.Order{UserID: userID, Method: strings.ToLower(req.Method)}
	var priceUSD decimal.Decimal
	switch req.ItemType {
	case domain.ItemTypePackage:
		p, err := h.catalogRepo.GetPackage(req.ItemID)
		if err != nil || !p.IsActive {
			c.JSON(http.StatusNotFound, gin.H{"error": "package not found"})
			return
		}
		order.PackageID = &p.ID
		order.ItemName = p.Name
		priceUSD = p.PriceUSD
	case domain.ItemTypeProduct:
		p, err := h.catalogRepo.GetProduct(req.ItemID)
		if err != nil || !p.IsActive {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		order.ProductID = &p.ID
		order.ItemName = p.Name
		priceUSD = p.PriceUSD
	}

	var wallet *models.CryptoWallet
	switch order.Method {
	case domain.MethodMpesa:
		// Charged in KES at the configured rate; the exact whole-unit
		// rounding happens at push initiation.
		order.Amount = priceUSD.Mul(decimal.NewFromFloat(h.cfg.Checkout.USDToKES)).Round(2)
	case domain.MethodCashApp, domain.MethodVenmo, domain.MethodPayPal:
		order.Amount = priceUSD
	default:
		// Anything else must name an active crypto wallet (btc, eth, ...).
		w, err := h.walletRepo.GetByType(strings.ToUpper(order.Method))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported payment method"})
			return
		}
		if req.TransactionHash == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "transaction_hash required for crypto payments"})
			return
		}
		wallet = w
		order.Method = w.CryptoType
		order.Amount = priceUSD
		order.ExternalReference = req.TransactionHash
	}
	order.Status = domain.OrderStatusPending

	if err := h.orderRepo.Create(order); err != nil {
		logrus.WithError(err).Error("order create failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create order"})
		return
	}
	if h.notifier != nil {
		h.notifier.OrderCreated(order)
	}

	resp := gin.H{"order": order}
	if wallet != nil {
		resp["wallet"] = wallet
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *OrderHandler) ListMine(c *gin.Context) {
	userID := middleware.GetUserID(c)
	orders, err := h.orderRepo.ListByUser(userID, 50, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list orders"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *OrderHandler) Get(c *gin.Context) {
	userID := middleware.GetUserID(c)
	order, err := h.orderRepo.GetByID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	if order.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your order"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}
