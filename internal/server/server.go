package server

import (
	"context"
	"net/http"
	"time"

	"studioslot/internal/auth"
	"studioslot/internal/booking"
	"studioslot/internal/config"
	"studioslot/internal/event"
	"studioslot/internal/plan"
	"studioslot/internal/schedule"
	"studioslot/internal/session"
	"studioslot/internal/ticket"
	"studioslot/internal/waitlist"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

type Server struct {
	router *gin.Engine
	db     *sqlx.DB
	config *config.Config
	http   *http.Server
}

func New(db *sqlx.DB, cfg *config.Config, publisher *event.Publisher) *Server {
	router := gin.Default()
	router.Use(corsMiddleware())
	router.Use(RequestLoggingMiddleware())
	router.Use(MetricsMiddleware())
	router.Use(RateLimitMiddleware(20, 40))

	ticketBuffer := time.Duration(cfg.TicketBufferHours) * time.Hour
	leadTime := time.Duration(cfg.BookingLeadMinutes) * time.Minute

	sessionRepo := session.NewRepository(db)
	planRepo := plan.NewRepository(db)
	ticketRepo := ticket.NewRepository(db)
	eventRepo := event.NewRepository(db)
	bookingRepo := booking.NewRepository(db)
	waitlistRepo := waitlist.NewRepository(db)

	sessionSvc := session.NewService(sessionRepo)
	planSvc := plan.NewService(planRepo)
	ticketSvc := ticket.NewService(ticketRepo)
	bookingSvc := booking.NewService(bookingRepo, sessionRepo, planSvc, ticketSvc, ticketBuffer, leadTime)
	waitlistSvc := waitlist.NewService(waitlistRepo, sessionRepo, bookingSvc)

	// Cyclic collaborators are attached after construction: the booking
	// service promotes waitlist entries when seats free up, the plan
	// service delegates fixed purchases to the scheduler saga.
	bookingSvc.SetPromoter(waitlistSvc)
	bookingSvc.SetPublisher(publisher)
	planSvc.SetScheduler(schedule.New(sessionRepo, bookingRepo, ticketBuffer))

	sessionHandler := session.NewHandler(sessionSvc)
	planHandler := plan.NewHandler(planSvc)
	ticketHandler := ticket.NewHandler(ticketSvc)
	eventHandler := event.NewHandler(eventRepo)
	bookingHandler := booking.NewHandler(bookingSvc)
	waitlistHandler := waitlist.NewHandler(waitlistSvc)

	router.GET("/health", Health)
	router.GET("/metrics", Metrics())
	router.GET("/sessions", sessionHandler.ListSessions)
	router.GET("/courses", sessionHandler.ListCourses)
	router.GET("/plan-types", planHandler.ListPlanTypes)
	router.GET("/ticket/:token", ticketHandler.Verify)

	authMiddleware := auth.AuthMiddleware(cfg.JWTSecret)
	protected := router.Group("/")
	protected.Use(authMiddleware)
	{
		protected.POST("/reserve", bookingHandler.Reserve)
		protected.POST("/cancel", bookingHandler.Cancel)
		protected.PATCH("/rebook", bookingHandler.Rebook)
		protected.GET("/bookings", bookingHandler.ListMyBookings)

		protected.POST("/waitlist/join", waitlistHandler.Join)
		protected.DELETE("/waitlist/leave", waitlistHandler.Leave)
		protected.GET("/waitlist/:sessionID", waitlistHandler.GetMyEntry)

		protected.POST("/plans/purchase", planHandler.Purchase)
		protected.POST("/plans/fixed-purchase", planHandler.FixedPurchase)
		protected.GET("/plans", planHandler.ListMyPlans)
	}

	staffMiddleware := auth.RequireRole(auth.RoleStaff, auth.RoleInstructor)
	staff := router.Group("/")
	staff.Use(authMiddleware, staffMiddleware)
	{
		staff.POST("/checkin", bookingHandler.CheckIn)
		staff.POST("/bookings/:bookingID/checkout", bookingHandler.CheckOut)
		staff.GET("/sessions/:sessionID/bookings", bookingHandler.ListBySession)
		staff.GET("/bookings/:bookingID/events", eventHandler.ListByBooking)
	}

	adminMiddleware := auth.RequireRole(auth.RoleStaff)
	admin := router.Group("/admin")
	admin.Use(authMiddleware, adminMiddleware)
	{
		admin.POST("/courses", sessionHandler.CreateCourse)
		admin.POST("/sessions", sessionHandler.CreateSession)
		admin.POST("/plan-types", planHandler.CreatePlanType)
	}

	return &Server{
		router: router,
		db:     db,
		config: cfg,
	}
}

func (s *Server) Start(port string) error {
	s.http = &http.Server{
		Addr:    ":" + port,
		Handler: s.router,
	}
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
