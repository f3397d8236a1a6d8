package usercontext

// Session and Locals keys. The session store persists the first four.
const (
	AuthKey          = "authenticated"
	KeyUserID        = "user_id"
	KeyUsername      = "username"
	KeyIsAdmin       = "is_admin"
	KeyFromProtected = "from_protected"

	localsKey = "bizhub.user"
)
