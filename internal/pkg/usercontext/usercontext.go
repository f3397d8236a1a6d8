package usercontext

import "github.com/gofiber/fiber/v2"

// UserContext is the caller resolved from the session. The zero value is an
// anonymous visitor.
type UserContext struct {
	UserID     uint   `json:"user_id"`
	Username   string `json:"username"`
	IsLoggedIn bool   `json:"is_logged_in"`
	IsAdmin    bool   `json:"is_admin"`
}

// CanAccess reports whether the caller may see a record owned by ownerID.
// Admins see everything.
func (uc UserContext) CanAccess(ownerID uint) bool {
	if !uc.IsLoggedIn {
		return false
	}
	return uc.IsAdmin || (ownerID != 0 && uc.UserID == ownerID)
}

func SetUserContext(c *fiber.Ctx, uc UserContext) {
	c.Locals(localsKey, uc)
	c.Locals(KeyFromProtected, uc.IsLoggedIn)
}

func GetUserContext(c *fiber.Ctx) UserContext {
	uc, _ := c.Locals(localsKey).(UserContext)
	return uc
}

func IsLoggedIn(c *fiber.Ctx) bool { return GetUserContext(c).IsLoggedIn }

func IsAdmin(c *fiber.Ctx) bool { return GetUserContext(c).IsAdmin }
