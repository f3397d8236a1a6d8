package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/localbiz/bizhub/internal/pkg/session"
	"github.com/localbiz/bizhub/internal/pkg/usercontext"
)

// UserContextMiddleware resolves the session into a UserContext for every request.
func UserContextMiddleware(c *fiber.Ctx) error {
	anonymous := usercontext.UserContext{}

	store := session.GetSessionStore()
	if store == nil {
		usercontext.SetUserContext(c, anonymous)
		return c.Next()
	}
	sess, err := store.Get(c)
	if err != nil {
		log.Warnf("[Session] load failed: %v", err)
		usercontext.SetUserContext(c, anonymous)
		return c.Next()
	}

	userID, ok := sessionUserID(sess.Get(usercontext.KeyUserID))
	if !ok {
		usercontext.SetUserContext(c, anonymous)
		return c.Next()
	}

	username, _ := sess.Get(usercontext.KeyUsername).(string)
	isAdmin, _ := sess.Get(usercontext.KeyIsAdmin).(bool)
	usercontext.SetUserContext(c, usercontext.UserContext{
		UserID:     userID,
		Username:   username,
		IsLoggedIn: true,
		IsAdmin:    isAdmin,
	})
	return c.Next()
}

// sessionUserID accepts the integer shapes a storage round trip may produce.
func sessionUserID(v interface{}) (uint, bool) {
	switch id := v.(type) {
	case uint:
		return id, id > 0
	case int:
		return uint(id), id > 0
	case int64:
		return uint(id), id > 0
	case uint64:
		return uint(id), id > 0
	case float64:
		return uint(id), id > 0
	default:
		return 0, false
	}
}
