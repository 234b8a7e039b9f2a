package handler

import (
	"errors"
	"net/http"
	"strconv"

	"duka/internal/models"
	"duka/internal/repository"
	"duka/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// AdminHandler is the admin console surface: catalog and wallet CRUD, site
// settings, and manual order review.
type AdminHandler struct {
	catalogRepo  *repository.CatalogRepository
	walletRepo   *repository.WalletRepository
	orderRepo    *repository.OrderRepository
	settingsRepo *repository.SettingsRepository
	payments     *service.PaymentService
}

func NewAdminHandler(catalogRepo *repository.CatalogRepository, walletRepo *repository.WalletRepository, orderRepo *repository.OrderRepository, settingsRepo *repository.SettingsRepository, payments *service.PaymentService) *AdminHandler {
	return &AdminHandler{
		catalogRepo:  catalogRepo,
		walletRepo:   walletRepo,
		orderRepo:    orderRepo,
		settingsRepo: settingsRepo,
		payments:     payments,
	}
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

// --- categories ---

type categoryRequest struct {
	Name      string `json:"name" binding:"required"`
	Slug      string `json:"slug" binding:"required"`
	SortOrder int    `json:"sort_order"`
	IsActive  *bool  `json:"is_active"`
}

func (h *AdminHandler) CreateCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cat := &models.Category{Name: req.Name, Slug: req.Slug, SortOrder: req.SortOrder, IsActive: true}
	if req.IsActive != nil {
		cat.IsActive = *req.IsActive
	}
	if err := h.catalogRepo.CreateCategory(cat); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"category": cat})
}

func (h *AdminHandler) UpdateCategory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	cat, err := h.catalogRepo.GetCategory(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "category not found"})
		return
	}
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cat.Name, cat.Slug, cat.SortOrder = req.Name, req.Slug, req.SortOrder
	if req.IsActive != nil {
		cat.IsActive = *req.IsActive
	}
	if err := h.catalogRepo.UpdateCategory(cat); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": cat})
}

// --- packages ---

type packageRequest struct {
	CategoryID   uint    `json:"category_id" binding:"required"`
	Name         string  `json:"name" binding:"required"`
	Description  string  `json:"description"`
	PriceUSD     float64 `json:"price_usd" binding:"required,gt=0"`
	DurationDays int     `json:"duration_days"`
	Features     string  `json:"features"`
	ImageURL     string  `json:"image_url"`
	IsActive     *bool   `json:"is_active"`
}

func (h *AdminHandler) CreatePackage(c *gin.Context) {
	var req packageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p := &models.Package{
		CategoryID:   req.CategoryID,
		Name:         req.Name,
		Description:  req.Description,
		PriceUSD:     decimal.NewFromFloat(req.PriceUSD),
		DurationDays: req.DurationDays,
		Features:     req.Features,
		ImageURL:     req.ImageURL,
		IsActive:     true,
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if err := h.catalogRepo.CreatePackage(p); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"package": p})
}

func (h *AdminHandler) UpdatePackage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	p, err := h.catalogRepo.GetPackage(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "package not found"})
		return
	}
	var req packageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p.CategoryID = req.CategoryID
	p.Name, p.Description, p.Features, p.ImageURL = req.Name, req.Description, req.Features, req.ImageURL
	p.PriceUSD = decimal.NewFromFloat(req.PriceUSD)
	p.DurationDays = req.DurationDays
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if err := h.catalogRepo.UpdatePackage(p); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"package": p})
}

// --- products ---

type productRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	PriceUSD    float64 `json:"price_usd" binding:"required,gt=0"`
	FileURL     string  `json:"file_url"`
	ImageURL    string  `json:"image_url"`
	IsActive    *bool   `json:"is_active"`
}

func (h *AdminHandler) CreateProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p := &models.Product{
		Name:        req.Name,
		Description: req.Description,
		PriceUSD:    decimal.NewFromFloat(req.PriceUSD),
		FileURL:     req.FileURL,
		ImageURL:    req.ImageURL,
		IsActive:    true,
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if err := h.catalogRepo.CreateProduct(p); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"product": p})
}

func (h *AdminHandler) UpdateProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	p, err := h.catalogRepo.GetProduct(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p.Name, p.Description, p.FileURL, p.ImageURL = req.Name, req.Description, req.FileURL, req.ImageURL
	p.PriceUSD = decimal.NewFromFloat(req.PriceUSD)
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if err := h.catalogRepo.UpdateProduct(p); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": p})
}

// --- wallets ---

type walletRequest struct {
	CryptoType    string `json:"crypto_type" binding:"required"`
	Network       string `json:"network"`
	WalletAddress string `json:"wallet_address" binding:"required"`
	IsActive      *bool  `json:"is_active"`
}

func (h *AdminHandler) CreateWallet(c *gin.Context) {
	var req walletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	w := &models.CryptoWallet{CryptoType: req.CryptoType, Network: req.Network, WalletAddress: req.WalletAddress, IsActive: true}
	if req.IsActive != nil {
		w.IsActive = *req.IsActive
	}
	if err := h.walletRepo.Create(w); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"wallet": w})
}

func (h *AdminHandler) DeleteWallet(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.walletRepo.Delete(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// --- settings ---

type settingsRequest struct {
	SiteName            *string `json:"site_name"`
	MpesaEnabled        *bool   `json:"mpesa_enabled"`
	MpesaConsumerKey    *string `json:"mpesa_consumer_key"`
	MpesaConsumerSecret *string `json:"mpesa_consumer_secret"`
	MpesaPasskey        *string `json:"mpesa_passkey"`
	MpesaShortCode      *string `json:"mpesa_short_code"`
	MpesaEnvironment    *string `json:"mpesa_environment"`
	TelegramBotToken    *string `json:"telegram_bot_token"`
	TelegramChatID      *string `json:"telegram_chat_id"`
}

func (h *AdminHandler) GetSettings(c *gin.Context) {
	s, err := h.settingsRepo.Get()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settings unavailable"})
		return
	}
	// Secrets are write-only from the console; only report whether they are set.
	c.JSON(http.StatusOK, gin.H{
		"settings":           s,
		"mpesa_keys_set":     s.MpesaConsumerKey != "" && s.MpesaConsumerSecret != "" && s.MpesaPasskey != "",
		"telegram_token_set": s.TelegramBotToken != "",
	})
}

func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	s, err := h.settingsRepo.Get()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settings unavailable"})
		return
	}
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.SiteName != nil {
		s.SiteName = *req.SiteName
	}
	if req.MpesaEnabled != nil {
		s.MpesaEnabled = *req.MpesaEnabled
	}
	if req.MpesaConsumerKey != nil {
		s.MpesaConsumerKey = *req.MpesaConsumerKey
	}
	if req.MpesaConsumerSecret != nil {
		s.MpesaConsumerSecret = *req.MpesaConsumerSecret
	}
	if req.MpesaPasskey != nil {
		s.MpesaPasskey = *req.MpesaPasskey
	}
	if req.MpesaShortCode != nil {
		s.MpesaShortCode = *req.MpesaShortCode
	}
	if req.MpesaEnvironment != nil {
		if *req.MpesaEnvironment != "sandbox" && *req.MpesaEnvironment != "production" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "mpesa_environment must be sandbox or production"})
			return
		}
		s.MpesaEnvironment = *req.MpesaEnvironment
	}
	if req.TelegramBotToken != nil {
		s.TelegramBotToken = *req.TelegramBotToken
	}
	if req.TelegramChatID != nil {
		s.TelegramChatID = *req.TelegramChatID
	}
	if err := h.settingsRepo.Update(s); err != nil {
		logrus.WithError(err).Error("settings update failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": s})
}

// --- orders ---

func (h *AdminHandler) ListOrders(c *gin.Context) {
	orders, err := h.orderRepo.ListAll(c.Query("status"), 100, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list orders"})
		return
	}
	counts, _ := h.orderRepo.CountByStatus()
	c.JSON(http.StatusOK, gin.H{"orders": orders, "counts": counts})
}

type orderActionRequest struct {
	Message string `json:"message"`
}

func (h *AdminHandler) ConfirmOrder(c *gin.Context) {
	h.orderAction(c, func(id, msg string) error { return h.payments.ConfirmManual(id, msg) })
}

func (h *AdminHandler) ReleaseOrder(c *gin.Context) {
	h.orderAction(c, h.payments.Release)
}

func (h *AdminHandler) RejectOrder(c *gin.Context) {
	h.orderAction(c, h.payments.Reject)
}

func (h *AdminHandler) orderAction(c *gin.Context, action func(id, message string) error) {
	var req orderActionRequest
	_ = c.ShouldBindJSON(&req)
	if err := action(c.Param("id"), req.Message); err != nil {
		if errors.Is(err, service.ErrInvalidTransition) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
