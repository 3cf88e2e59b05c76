package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harentsoaR/dentist-booking/internal/middleware"
	"github.com/harentsoaR/dentist-booking/internal/services"
	"github.com/harentsoaR/dentist-booking/internal/utils"
)

// Handler groups the HTTP endpoints and the services they call.
type Handler struct {
	Users        *services.UserService
	Appointments *services.AppointmentService
	Logger       *zap.Logger
	// CookieSecure marks the session cookie Secure; enable behind TLS.
	CookieSecure bool
}

func NewHandler(users *services.UserService, appointments *services.AppointmentService, logger *zap.Logger, cookieSecure bool) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Users:        users,
		Appointments: appointments,
		Logger:       logger,
		CookieSecure: cookieSecure,
	}
}

// respondError maps service errors onto HTTP statuses. Anything unrecognised
// is logged and reported as a generic server error.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrInvalidCredentials):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrUnauthenticated), errors.Is(err, utils.ErrInvalidToken):
		status = http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		h.Logger.Error("request failed",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", middleware.RequestIDFrom(c)),
		)
		c.JSON(status, gin.H{"error": "Server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// principal returns the authenticated caller or writes a 401.
func (h *Handler) principal(c *gin.Context) (services.Principal, bool) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		h.respondError(c, services.ErrUnauthenticated)
		return services.Principal{}, false
	}
	return p, true
}

func pathID(c *gin.Context, what string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "Invalid "+what+" id")
		return 0, false
	}
	return id, true
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
