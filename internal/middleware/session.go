package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SessionCookie holds the token used for page navigation.
const SessionCookie = "token"

// SessionGate sends browsers without a valid session cookie to the login
// page. It guards navigation only; API authorization is AuthMiddleware's job.
func SessionGate(verifier TokenVerifier, loginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookie)
		if err != nil || token == "" {
			c.Redirect(http.StatusFound, loginPath)
			c.Abort()
			return
		}
		p, err := verifier.Verify(token)
		if err != nil {
			c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
			c.Redirect(http.StatusFound, loginPath)
			c.Abort()
			return
		}
		SetPrincipal(c, p)
		c.Next()
	}
}
