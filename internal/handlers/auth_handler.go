package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/dentist-booking/internal/middleware"
	"github.com/harentsoaR/dentist-booking/internal/utils"
)

type loginRequest struct {
	UserName string `json:"userName"`
	// Email is accepted as an alias of userName.
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, token, maxAge, "/", "", h.CookieSecure, true)
}

// Login checks credentials, returns a bearer token and sets the session cookie.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	email := req.UserName
	if email == "" {
		email = req.Email
	}

	res, err := h.Users.Login(c.Request.Context(), email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.setSessionCookie(c, res.Token, int(utils.TokenTTL.Seconds()))
	c.JSON(http.StatusOK, gin.H{"message": "Login successful", "token": res.Token})
}

func (h *Handler) Logout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// GetCurrentUser returns the caller's own profile.
func (h *Handler) GetCurrentUser(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	user, err := h.Users.Me(c.Request.Context(), p)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
