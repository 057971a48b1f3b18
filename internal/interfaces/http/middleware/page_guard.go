package middleware

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/medistore/backend/internal/domain/session"
)

// SessionCookie carries the access token for page navigations, which cannot
// send an Authorization header
const SessionCookie = "medistore_session"

// PageGuard gates a protected page. The viewer is resolved from the bearer
// token or the session cookie; without one the guard redirects to the login
// page with the original path in "next".
func PageGuard(cfg JWTMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		guard := session.NewGuard(func(path string) {
			target := path + "?next=" + url.QueryEscape(c.Request.URL.RequestURI())
			c.Redirect(http.StatusFound, target)
			c.Abort()
		})

		if _, ok := BearerToken(c); !ok {
			if token, err := c.Cookie(SessionCookie); err == nil && token != "" {
				c.Request.Header.Set(AuthHeaderKey, BearerPrefix+token)
			}
		}

		var viewer *session.User
		if claims, err := Authenticate(c, cfg); err == nil {
			SetClaims(c, claims)
			viewer = &session.User{
				ID:          claims.Subject,
				Email:       claims.Email,
				PhoneNumber: claims.Phone,
				DisplayName: claims.DisplayName,
			}
		}

		if guard.Resolve(viewer) != session.GuardAuthorized {
			return
		}
		c.Set(GuardKey, guard)
		c.Next()
	}
}

// GuardKey holds the resolved *session.Guard for a protected page
const GuardKey = "page_guard"
