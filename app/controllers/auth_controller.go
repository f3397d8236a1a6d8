package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/localbiz/bizhub/internal/pkg/hcaptcha"
	"github.com/localbiz/bizhub/internal/pkg/session"
	"github.com/localbiz/bizhub/internal/pkg/usercontext"
)

const (
	AUTH_KEY       string = usercontext.AuthKey
	USER_ID        string = usercontext.KeyUserID
	USER_NAME      string = usercontext.KeyUsername
	USER_IS_ADMIN  string = usercontext.KeyIsAdmin
	FROM_PROTECTED string = usercontext.KeyFromProtected
)

type loginRequest struct {
	Email        string `json:"email" form:"email" validate:"required,email,max=200"`
	Password     string `json:"password" form:"password" validate:"required,min=6"`
	CaptchaToken string `json:"captcha_token" form:"h-captcha-response"`
}

var captcha *hcaptcha.Verifier

// SetCaptchaVerifier guards login with hCaptcha. A nil or disabled verifier
// turns the check off.
func SetCaptchaVerifier(v *hcaptcha.Verifier) {
	captcha = v
}

// HandleAuthLogin starts a session for an active user. Failures never say
// whether the email exists.
func HandleAuthLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "fields": validationFields(err)})
	}

	if captcha.Enabled() {
		ctx, cancel := requestContext()
		ok, err := captcha.Verify(ctx, req.CaptchaToken)
		cancel()
		if !ok {
			log.Infof("[Auth] captcha rejected for %s: %v", req.Email, err)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "captcha_failed"})
		}
	}

	user, err := paymentRepos.User.GetByEmail(req.Email)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Errorf("[Auth] load user: %v", err)
		}
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_credentials"})
	}
	if !user.CheckPassword(req.Password) || !user.IsActive() {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_credentials"})
	}

	store := session.GetSessionStore()
	if store == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "session_unavailable"})
	}
	sess, err := store.Get(c)
	if err != nil {
		log.Errorf("[Auth] load session: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "session_failed"})
	}
	sess.Set(AUTH_KEY, true)
	sess.Set(USER_ID, user.ID)
	sess.Set(USER_NAME, user.Name)
	sess.Set(USER_IS_ADMIN, user.IsAdmin())
	if err := sess.Save(); err != nil {
		log.Errorf("[Auth] save session: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "session_failed"})
	}

	if err := paymentRepos.User.UpdateLastLogin(user.ID, clock.Now()); err != nil {
		log.Warnf("[Auth] update last login for user %d: %v", user.ID, err)
	}

	return c.JSON(fiber.Map{
		"user": fiber.Map{
			"id":       user.ID,
			"name":     user.Name,
			"email":    user.Email,
			"is_admin": user.IsAdmin(),
		},
	})
}

func HandleAuthLogout(c *fiber.Ctx) error {
	if store := session.GetSessionStore(); store != nil {
		if sess, err := store.Get(c); err == nil {
			if err := sess.Destroy(); err != nil {
				log.Warnf("[Auth] destroy session: %v", err)
			}
		}
	}
	c.Locals(FROM_PROTECTED, false)
	return c.SendStatus(fiber.StatusNoContent)
}
