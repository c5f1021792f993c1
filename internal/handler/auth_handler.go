package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sefazor/bnpl-checkout/internal/models"
	jwtPkg "github.com/sefazor/bnpl-checkout/pkg/jwt"
	"github.com/sefazor/bnpl-checkout/pkg/utils"
)

type TokenRequest struct {
	UserID uint   `json:"user_id" validate:"required"`
	Email  string `json:"email" validate:"required,email"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

// AuthHandler issues buyer tokens for the demo host. It is only mounted
// outside production.
type AuthHandler struct {
	secret    []byte
	validator *utils.Validator
}

func NewAuthHandler(secret []byte, validator *utils.Validator) *AuthHandler {
	return &AuthHandler{
		secret:    secret,
		validator: validator,
	}
}

func (h *AuthHandler) IssueToken(c *fiber.Ctx) error {
	var req TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse("Invalid request body"))
	}

	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse(err.Error()))
	}

	token, err := jwtPkg.GenerateToken(h.secret, req.Email, req.UserID, jwtPkg.TokenExpiryBuyer)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse("Failed to issue token"))
	}

	return c.JSON(models.SuccessResponse(TokenResponse{Token: token}, "Token issued successfully"))
}
