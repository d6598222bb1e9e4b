package app

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nekogravitycat/court-reservation-engine/internal/api"
	"github.com/nekogravitycat/court-reservation-engine/internal/auth"
	"github.com/nekogravitycat/court-reservation-engine/internal/clock"
	"github.com/nekogravitycat/court-reservation-engine/internal/config"
	"github.com/nekogravitycat/court-reservation-engine/internal/court"
	"github.com/nekogravitycat/court-reservation-engine/internal/discount"
	"github.com/nekogravitycat/court-reservation-engine/internal/events"
	"github.com/nekogravitycat/court-reservation-engine/internal/metrics"
	"github.com/nekogravitycat/court-reservation-engine/internal/pricing"
	"github.com/nekogravitycat/court-reservation-engine/internal/queuesession"
	"github.com/nekogravitycat/court-reservation-engine/internal/recurrence"
	"github.com/nekogravitycat/court-reservation-engine/internal/reservation"
	reservationHttp "github.com/nekogravitycat/court-reservation-engine/internal/reservation/http"
)

// Config holds the dependencies and settings required to start the application.
type Config struct {
	Settings *config.Config
	DBPool   *pgxpool.Pool
	// Redis enables the court cache. Nil reads straight from Postgres.
	Redis *redis.Client
	// Publisher receives reservation events. Nil drops them.
	Publisher events.Publisher
	Registry  *prometheus.Registry
	Logger    zerolog.Logger
}

// Container holds the initialized components that are needed externally.
type Container struct {
	Router             *gin.Engine
	JWTManager         *auth.JWTManager
	ReservationService reservation.Service
}

// NewContainer initializes all modules and returns the container.
func NewContainer(cfg Config) *Container {
	s := cfg.Settings
	logger := cfg.Logger

	// Init Components
	jwtManager := auth.NewJWTManager(s.JWT.Secret, s.JWT.Issuer, s.JWT.AccessTokenTTL)
	var m *metrics.Metrics
	if cfg.Registry != nil {
		m = metrics.New(cfg.Registry)
	}

	clk := clock.NewRealClock()
	if !s.IsProduction() {
		clk = clock.NewOffsetClock(clk, s.Booking.TimeOffset)
	}
	cal := clock.NewCalendar(s.Booking.TimeZone)

	// Court Module
	courtRepo := court.NewCachedRepository(court.NewPgxRepository(cfg.DBPool), cfg.Redis, s.Redis.TTL, logger)
	courtService := court.NewService(courtRepo)

	// Pricing Module
	catalog := discount.NewCatalog(discount.NewPgxRepository(cfg.DBPool))
	fees := pricing.NewPgxFeeSource(cfg.DBPool, pricing.FeePolicy{
		Enabled:    s.Pricing.FeeEnabled,
		Percentage: s.Pricing.FeePercentage,
	})
	resolver := pricing.NewResolver(catalog, fees, cal, clk, logger)

	// Reservation Module
	reservationRepo := reservation.NewPgxRepository(cfg.DBPool)
	validator := reservation.NewValidator(
		reservationRepo,
		queuesession.NewPgxRepository(cfg.DBPool),
		cal,
		clk,
		reservation.ValidatorConfig{
			PastGrace: s.Booking.PastGrace,
			SelfHold:  reservation.SelfHoldPolicy{AllowSingleReplace: s.Booking.AllowSelfReplace},
		},
		m,
		logger,
	)
	reservationService := reservation.NewService(reservation.Deps{
		Repo:         reservationRepo,
		Courts:       courtService,
		Expander:     recurrence.NewExpander(cal, s.Booking.MaxWeeks),
		Validator:    validator,
		Quoter:       resolver,
		Orchestrator: reservation.NewOrchestrator(cal, clk, m, logger),
		Publisher:    cfg.Publisher,
		Calendar:     cal,
		Clock:        clk,
		Metrics:      m,
		Logger:       logger,
	}, reservation.ServiceConfig{
		UseTx:              s.Booking.UseTx,
		RescheduleWindow:   s.Booking.RescheduleWindow,
		DownPaymentPercent: s.Booking.DownPaymentPercent,
	})

	routerConfig := api.Config{
		IsProduction:       s.IsProduction(),
		AllowOrigins:       s.CORS.AllowOrigins,
		Logger:             logger,
		JWTManager:         jwtManager,
		ReservationHandler: reservationHttp.NewHandler(reservationService),
		DB:                 cfg.DBPool,
		RateLimitPerMinute: s.RateLimit.PerMinute,
		RateLimitBurst:     s.RateLimit.Burst,
	}
	if cfg.Registry != nil {
		routerConfig.Gatherer = cfg.Registry
	}

	// Router
	router := api.NewRouter(routerConfig)

	return &Container{
		Router:             router,
		JWTManager:         jwtManager,
		ReservationService: reservationService,
	}
}
