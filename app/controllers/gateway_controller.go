package controllers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/localbiz/bizhub/app/models"
)

// GatewayInvalidator drops cached switchboard rows after an operator edit.
type GatewayInvalidator interface {
	Invalidate(ctx context.Context, slug string) error
}

var gatewayCache GatewayInvalidator

// SetGatewayInvalidator registers the cache fronting gateway lookups.
func SetGatewayInvalidator(inv GatewayInvalidator) {
	gatewayCache = inv
}

type gatewayUpdateRequest struct {
	Name         *string `json:"name" validate:"omitempty,min=2,max=100"`
	IsActive     *bool   `json:"is_active"`
	IsEnabled    *bool   `json:"is_enabled"`
	Instructions *string `json:"instructions" validate:"omitempty,max=2000"`
}

func gatewayJSON(g models.PaymentGateway, withFlags bool) fiber.Map {
	m := fiber.Map{"slug": g.Slug, "name": g.Name}
	if g.Instructions != "" {
		m["instructions"] = g.Instructions
	}
	if withFlags {
		m["is_active"] = g.IsActive
		m["is_enabled"] = g.IsEnabled
	}
	return m
}

// HandleGatewayList lists the gateways a payer can choose right now.
func HandleGatewayList(c *fiber.Ctx) error {
	gateways, err := paymentRepos.PaymentGateway.ListUsable()
	if err != nil {
		log.Errorf("[Payment] list gateways: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "list_failed"})
	}
	items := make([]fiber.Map, 0, len(gateways))
	for _, g := range gateways {
		items = append(items, gatewayJSON(g, false))
	}
	return c.JSON(fiber.Map{"gateways": items})
}

func HandleAdminGatewayList(c *fiber.Ctx) error {
	gateways, err := paymentRepos.PaymentGateway.List()
	if err != nil {
		log.Errorf("[Admin] list gateways: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "list_failed"})
	}
	items := make([]fiber.Map, 0, len(gateways))
	for _, g := range gateways {
		items = append(items, gatewayJSON(g, true))
	}
	return c.JSON(fiber.Map{"gateways": items})
}

// HandleAdminGatewayUpdate flips the switchboard flags of an existing gateway.
func HandleAdminGatewayUpdate(c *fiber.Ctx) error {
	slug := strings.TrimSpace(c.Params("slug"))

	var req gatewayUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "fields": validationFields(err)})
	}

	g, err := paymentRepos.PaymentGateway.GetBySlug(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
		}
		log.Errorf("[Admin] load gateway %s: %v", slug, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "lookup_failed"})
	}

	// Upsert keys on slug; a zero ID keeps the primary key out of the insert.
	upd := &models.PaymentGateway{Slug: g.Slug, Name: g.Name, IsActive: g.IsActive, IsEnabled: g.IsEnabled, Instructions: g.Instructions}
	if req.Name != nil {
		upd.Name = strings.TrimSpace(*req.Name)
	}
	if req.IsActive != nil {
		upd.IsActive = *req.IsActive
	}
	if req.IsEnabled != nil {
		upd.IsEnabled = *req.IsEnabled
	}
	if req.Instructions != nil {
		upd.Instructions = strings.TrimSpace(*req.Instructions)
	}
	if err := paymentRepos.PaymentGateway.Upsert(upd); err != nil {
		log.Errorf("[Admin] update gateway %s: %v", slug, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "update_failed"})
	}

	if gatewayCache != nil {
		ctx, cancel := requestContext()
		defer cancel()
		if err := gatewayCache.Invalidate(ctx, slug); err != nil {
			log.Warnf("[Admin] invalidate gateway cache %s: %v", slug, err)
		}
	}
	log.Infof("[Admin] gateway %s updated: active=%t enabled=%t", slug, upd.IsActive, upd.IsEnabled)
	return c.JSON(gatewayJSON(*upd, true))
}
