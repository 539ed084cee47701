package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/cupidlink/mail-dispatcher/internal/domain"
	"github.com/cupidlink/mail-dispatcher/internal/service"
	"github.com/gofiber/fiber/v2"
)

// DispatcherControl is the runtime surface the admin API exposes.
type DispatcherControl interface {
	GetConfig() service.PollerConfig
	UpdateConfig(update service.PollerConfigUpdate) (service.PollerConfig, error)
	GetStats() service.PollerStats
	ResetStats()
}

// DeliveryReader looks up the delivery ledger for a single notification.
type DeliveryReader interface {
	Get(ctx context.Context, notificationID string) (*domain.TrackingRecord, bool)
}

type AdminHandler struct {
	control  DispatcherControl
	delivery DeliveryReader
}

func NewAdminHandler(control DispatcherControl, delivery DeliveryReader) (*AdminHandler, error) {
	if control == nil {
		return nil, fmt.Errorf("dispatcher control is required")
	}
	return &AdminHandler{control: control, delivery: delivery}, nil
}

func RegisterAdminRoutes(router fiber.Router, control DispatcherControl, delivery DeliveryReader) error {
	h, err := NewAdminHandler(control, delivery)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/dispatcher/stats", h.GetStats)
	v1.Post("/dispatcher/stats/reset", h.ResetStats)
	v1.Get("/dispatcher/config", h.GetConfig)
	v1.Put("/dispatcher/config", h.UpdateConfig)
	v1.Get("/notifications/:id/delivery", h.GetDelivery)

	return nil
}

type dispatcherConfigResponse struct {
	CheckIntervalSeconds  int     `json:"checkIntervalSeconds"`
	LookbackWindowSeconds int     `json:"lookbackWindowSeconds"`
	BatchSize             int     `json:"batchSize"`
	MaxRetries            int     `json:"maxRetries"`
	RetryDelaySeconds     int     `json:"retryDelaySeconds"`
	EnableTracking        bool    `json:"enableTracking"`
	TargetUserID          *string `json:"targetUserId,omitempty"`
}

type updateConfigRequest struct {
	CheckIntervalSeconds  *int    `json:"checkIntervalSeconds"`
	LookbackWindowSeconds *int    `json:"lookbackWindowSeconds"`
	BatchSize             *int    `json:"batchSize"`
	MaxRetries            *int    `json:"maxRetries"`
	RetryDelaySeconds     *int    `json:"retryDelaySeconds"`
	EnableTracking        *bool   `json:"enableTracking"`
	TargetUserID          *string `json:"targetUserId"`
	LogLevel              *string `json:"logLevel"`
}

type deliveryResponse struct {
	NotificationID string     `json:"notificationId"`
	Status         string     `json:"status"`
	RetryCount     int        `json:"retryCount"`
	SentAt         *time.Time `json:"sentAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func (h *AdminHandler) GetStats(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(h.control.GetStats())
}

func (h *AdminHandler) ResetStats(c *fiber.Ctx) error {
	h.control.ResetStats()
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "reset",
	})
}

func (h *AdminHandler) GetConfig(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(configToResponse(h.control.GetConfig()))
}

func (h *AdminHandler) UpdateConfig(c *fiber.Ctx) error {
	var req updateConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	update := service.PollerConfigUpdate{
		BatchSize:      req.BatchSize,
		MaxRetries:     req.MaxRetries,
		EnableTracking: req.EnableTracking,
		TargetUserID:   req.TargetUserID,
		LogLevel:       req.LogLevel,
	}
	if req.CheckIntervalSeconds != nil {
		d := time.Duration(*req.CheckIntervalSeconds) * time.Second
		update.CheckInterval = &d
	}
	if req.LookbackWindowSeconds != nil {
		d := time.Duration(*req.LookbackWindowSeconds) * time.Second
		update.LookbackWindow = &d
	}
	if req.RetryDelaySeconds != nil {
		d := time.Duration(*req.RetryDelaySeconds) * time.Second
		update.RetryDelay = &d
	}

	cfg, err := h.control.UpdateConfig(update)
	if err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}

	return c.Status(fiber.StatusOK).JSON(configToResponse(cfg))
}

func (h *AdminHandler) GetDelivery(c *fiber.Ctx) error {
	if h.delivery == nil {
		return fiber.NewError(fiber.StatusNotImplemented, "delivery tracking is disabled")
	}

	notificationID := c.Params("id")
	record, ok := h.delivery.Get(c.Context(), notificationID)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "no delivery record for notification")
	}

	return c.Status(fiber.StatusOK).JSON(deliveryResponse{
		NotificationID: record.NotificationID,
		Status:         record.Status.String(),
		RetryCount:     record.RetryCount,
		SentAt:         record.SentAt,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	})
}

func configToResponse(cfg service.PollerConfig) dispatcherConfigResponse {
	return dispatcherConfigResponse{
		CheckIntervalSeconds:  int(cfg.CheckInterval / time.Second),
		LookbackWindowSeconds: int(cfg.LookbackWindow / time.Second),
		BatchSize:             cfg.BatchSize,
		MaxRetries:            cfg.MaxRetries,
		RetryDelaySeconds:     int(cfg.RetryDelay / time.Second),
		EnableTracking:        cfg.EnableTracking,
		TargetUserID:          cfg.TargetUserID,
	}
}
