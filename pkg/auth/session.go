package auth

import (
	"crypto/sha256"
	"net/http"

	"github.com/gorilla/sessions"
)

// Store is the global session store for the analyst console.
// It keeps lightweight per-browser state (the active conversation ID) so a
// console user's follow-up questions land in the same conversation.
var Store *sessions.CookieStore

// SessionName is the name of the console session cookie.
const SessionName = "netsight-console"

// Session value keys.
const (
	SessionKeyConversationID = "conversation_id"
)

// InitSessionStore initializes the cookie-based session store for the
// analyst console.
//
// The secret parameter is used to sign session cookies. It can be any
// passphrase - it will be SHA-256 hashed to derive a 32-byte key.
// The secret must be consistent across server restarts and multiple
// servers in a load-balanced deployment.
//
// Security settings:
// - HttpOnly: true (inaccessible to JavaScript)
// - SameSite: Strict (prevents CSRF)
// - Secure follows the deployment scheme (HTTPS in production)
func InitSessionStore(secret string, settings CookieSettings) {
	// Hash the secret to get a consistent 32-byte key
	key := sha256.Sum256([]byte(secret))

	Store = sessions.NewCookieStore(key[:])
	Store.Options = &sessions.Options{
		Path:     "/",
		Domain:   settings.Domain,
		MaxAge:   4 * 60 * 60, // 4 hours, the span of a demo session
		HttpOnly: true,
		Secure:   settings.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// GetSession retrieves the console session from the request.
// Creates a new session if one doesn't exist.
func GetSession(r *http.Request) (*sessions.Session, error) {
	return Store.Get(r, SessionName)
}

// SaveSession saves the session to the response.
func SaveSession(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	return session.Save(r, w)
}

// ConversationIDFromSession returns the active conversation ID stored in the
// session, or empty string if none.
func ConversationIDFromSession(session *sessions.Session) string {
	id, _ := session.Values[SessionKeyConversationID].(string)
	return id
}
