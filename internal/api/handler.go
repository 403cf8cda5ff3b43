package api

import (
	"net/http"
	"strconv"
	"time"

	"reservation-service/internal/models"
	"reservation-service/internal/pricing"
	"reservation-service/internal/service"
	"reservation-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	bookings   *service.BookingService
	extensions *service.ExtensionService
	settlement *service.SettlementService
}

// NewHandler creates a new HTTP handler
func NewHandler(bookings *service.BookingService, extensions *service.ExtensionService, settlement *service.SettlementService) *Handler {
	return &Handler{
		bookings:   bookings,
		extensions: extensions,
		settlement: settlement,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/cars", h.listCars)
		v1.POST("/quotes", h.quote)
		v1.POST("/bookings", h.createBooking)
		v1.GET("/bookings", h.listBookings)
		v1.GET("/bookings/:id", h.getBooking)
		v1.POST("/bookings/:id/extensions", h.createExtension)
		v1.POST("/payments/:id/reconcile", h.reconcilePayment)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type quoteRequest struct {
	StartTime time.Time             `json:"start_time" binding:"required"`
	EndTime   time.Time             `json:"end_time" binding:"required"`
	DailyRate float64               `json:"daily_rate" binding:"required,gt=0"`
	Extras    []pricing.Extra       `json:"extras,omitempty"`
	Promo     *models.PromoSnapshot `json:"promo,omitempty"`
}

// quote computes a price breakdown. Pure and side-effect free, so the
// presentation layer can call it freely for live quoting.
func (h *Handler) quote(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	breakdown, err := pricing.Quote(req.StartTime, req.EndTime, req.DailyRate, req.Extras, req.Promo)
	if err != nil {
		writeError(c, err)
		return
	}

	util.QuotesTotal.Inc()
	c.JSON(http.StatusOK, breakdown)
}

// createBooking handles booking creation
func (h *Handler) createBooking(c *gin.Context) {
	actor, ok := callerIdentity(c)
	if !ok {
		return
	}

	var req service.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	resp, err := h.bookings.CreateBooking(c.Request.Context(), &req, actor)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// listCars handles listing the fleet
func (h *Handler) listCars(c *gin.Context) {
	cars, err := h.bookings.ListCars(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cars": cars})
}

// listBookings handles listing the caller's bookings
func (h *Handler) listBookings(c *gin.Context) {
	actor, ok := callerIdentity(c)
	if !ok {
		return
	}

	bookings, err := h.bookings.ListBookings(c.Request.Context(), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// getBooking handles get booking by ID
func (h *Handler) getBooking(c *gin.Context) {
	actor, ok := callerIdentity(c)
	if !ok {
		return
	}

	bookingID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking ID"})
		return
	}

	booking, payments, err := h.bookings.GetBooking(c.Request.Context(), bookingID, actor)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"booking":  booking,
		"payments": payments,
	})
}

// createExtension handles extension creation on a confirmed booking
func (h *Handler) createExtension(c *gin.Context) {
	actor, ok := callerIdentity(c)
	if !ok {
		return
	}

	bookingID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking ID"})
		return
	}

	var req service.CreateExtensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	resp, err := h.extensions.CreateExtension(c.Request.Context(), bookingID, req.AddedHours, actor)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

type reconcileRequest struct {
	GatewayRef string `json:"gateway_ref"`
	Outcome    string `json:"outcome" binding:"required"`
}

// reconcilePayment applies a gateway outcome (webhook). Safe to replay.
func (h *Handler) reconcilePayment(c *gin.Context) {
	actor, ok := callerIdentity(c)
	if !ok {
		return
	}

	paymentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment ID"})
		return
	}

	var req reconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	result, err := h.settlement.Reconcile(c.Request.Context(), paymentID, actor, req.GatewayRef, req.Outcome)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// callerIdentity reads the identity the upstream auth layer attached to the
// request: a stable user id plus an admin flag.
func callerIdentity(c *gin.Context) (models.Actor, bool) {
	userID, err := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid X-User-ID header"})
		return models.Actor{}, false
	}
	isAdmin, _ := strconv.ParseBool(c.GetHeader("X-Admin"))
	return models.Actor{UserID: userID, IsAdmin: isAdmin}, true
}

// writeError maps engine errors to stable HTTP responses. Storage errors
// never leak their text.
func writeError(c *gin.Context, err error) {
	switch {
	case models.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err == models.ErrForbidden:
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case models.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case models.IsConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err == models.ErrNotExtendable, err == models.ErrBookingEnded, err == models.ErrInvalidTransition:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
