package router

import (
	"time"

	"classroom-roster/internal/api/handlers"
	"classroom-roster/internal/api/middleware"
	"classroom-roster/internal/infrastructure/metrics"
	serviceInterfaces "classroom-roster/internal/interfaces/service"
	"classroom-roster/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies are the components the HTTP surface is built from.
type Dependencies struct {
	Store          serviceInterfaces.RosterStore
	Batches        *service.BatchOrchestrator
	Metrics        *metrics.Recorder
	HealthChecks   map[string]handlers.HealthCheckFunc
	Version        string
	AllowedOrigins []string
	GridColumns    int
	MaxRating      int
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", middleware.RequestIDHeader)
	cfg.ExposeHeaders = []string{middleware.RequestIDHeader}
	cfg.MaxAge = 12 * time.Hour

	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func NewRouter(deps Dependencies) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(cors.New(corsConfig(deps.AllowedOrigins)))
	r.Use(gin.Recovery())

	classHandler := handlers.NewClassHandler(deps.Store, deps.GridColumns, deps.MaxRating)
	studentHandler := handlers.NewStudentHandler(deps.Store)
	seatingHandler := handlers.NewSeatingHandler(deps.Store)
	ratingHandler := handlers.NewRatingHandler(deps.Store)
	healthHandler := handlers.NewHealthHandler(deps.Store, deps.Version, deps.HealthChecks)

	r.GET("/health", healthHandler.HealthCheck)
	r.GET("/ready", healthHandler.ReadinessCheck)
	r.GET("/live", healthHandler.LivenessCheck)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/api/v1")
	{
		classes := v1.Group("/classes")
		{
			classes.GET("", classHandler.ListClasses)
			classes.POST("", classHandler.CreateClass)
			classes.GET("/availability", classHandler.CheckAvailability)
			classes.GET("/:id", classHandler.GetClass)
			classes.PUT("/:id", classHandler.UpdateClass)
			classes.DELETE("/:id", classHandler.DeleteClass)
			classes.POST("/:id/archive", classHandler.ArchiveClass)
			classes.GET("/:id/students", classHandler.ListStudents)
			classes.GET("/:id/ratings", classHandler.ListRatings)
			classes.GET("/:id/seating", classHandler.ListSeating)
			classes.POST("/:id/seating/arrange", classHandler.ArrangeSeating)
		}

		students := v1.Group("/students")
		{
			students.POST("", studentHandler.CreateStudent)
			students.GET("/:id", studentHandler.GetStudent)
			students.PUT("/:id", studentHandler.UpdateStudent)
			students.DELETE("/:id", studentHandler.DeleteStudent)
			students.POST("/:id/archive", studentHandler.ArchiveStudent)
			students.POST("/:id/move", studentHandler.MoveStudent)
			students.GET("/:id/ratings", studentHandler.ListRatings)
		}

		seating := v1.Group("/seating")
		{
			seating.PUT("", seatingHandler.SavePosition)
			seating.DELETE("/:id", seatingHandler.DeletePosition)
		}

		ratings := v1.Group("/ratings")
		{
			ratings.POST("", ratingHandler.CreateRating)
			ratings.GET("/:id", ratingHandler.GetRating)
			ratings.PUT("/:id", ratingHandler.UpdateRating)
			ratings.DELETE("/:id", ratingHandler.DeleteRating)
			ratings.POST("/:id/archive", ratingHandler.ArchiveRating)
		}

		if deps.Batches != nil {
			batchHandler := handlers.NewBatchHandler(deps.Batches)
			batch := v1.Group("/batch")
			{
				batch.POST("/students/archive", batchHandler.ArchiveStudents)
				batch.POST("/students/delete", batchHandler.DeleteStudents)
				batch.POST("/students/move", batchHandler.MoveStudents)
				batch.POST("/classes/archive", batchHandler.ArchiveClasses)
				batch.POST("/classes/delete", batchHandler.DeleteClasses)
				batch.POST("/ratings/archive", batchHandler.ArchiveRatings)
			}
		}
	}

	return r
}
