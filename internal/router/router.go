package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harentsoaR/dentist-booking/internal/handlers"
	"github.com/harentsoaR/dentist-booking/internal/middleware"
)

type Deps struct {
	Handler     *handlers.Handler
	Tokens      middleware.TokenVerifier
	Logger      *zap.Logger
	CORSOrigins []string
}

// Pages behind the session gate.
var sessionPages = []struct{ path, name, title string }{
	{"/dashboard", "dashboard", "Dashboard"},
	{"/my-appointments", "my-appointments", "My Appointments"},
	{"/appointment-history", "appointment-history", "Appointment History"},
	{"/manage-users", "manage-users", "Manage Users"},
}

// New builds the engine. The bearer gate sits in front of every route;
// page shells are exempt from it and use the cookie gate instead.
func New(d Deps) *gin.Engine {
	r := gin.New()
	r.SetHTMLTemplate(handlers.PageTemplate)

	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(d.Logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     d.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	public := append([]middleware.Route(nil), middleware.DefaultPublicRoutes...)
	for _, p := range sessionPages {
		public = append(public, middleware.Route{Method: http.MethodGet, Path: p.path})
	}
	r.Use(middleware.AuthMiddleware(d.Tokens, middleware.GateConfig{
		Public: public,
		Rules:  middleware.DefaultRules,
	}))

	h := d.Handler
	r.GET("/healthz", h.Health)
	r.GET("/", h.Page("home", "Book an Appointment"))
	r.GET("/login", h.Page("login", "Staff Login"))

	session := r.Group("/", middleware.SessionGate(d.Tokens, "/login"))
	for _, p := range sessionPages {
		session.GET(p.path, h.Page(p.name, p.title))
	}

	auth := r.Group("/auth")
	{
		auth.POST("/login", h.Login)
		auth.POST("/logout", h.Logout)
		auth.GET("/me", h.GetCurrentUser)
	}

	appointments := r.Group("/appointments")
	{
		appointments.POST("", h.CreateAppointment)
		appointments.GET("", h.GetAppointments)
		appointments.GET("/:id", h.GetAppointment)
		appointments.PATCH("/:id", h.UpdateAppointment)
	}

	users := r.Group("/users")
	{
		users.GET("", h.ListUsers)
		users.POST("", h.RegisterUser)
		users.PATCH("/:id", h.UpdateUserRole)
	}

	return r
}
