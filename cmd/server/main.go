package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"workflows/internal/api/handler"
	"workflows/internal/builder"
	"workflows/internal/calendar"
	"workflows/internal/core/postgres/repository"
	"workflows/internal/notify"
	"workflows/internal/registry"
	"workflows/internal/service"
)

func main() {
	dsn := getenv("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=workflows port=5432 sslmode=disable")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := repository.AutoMigrate(db); err != nil {
		log.Fatal("Failed to migrate schema:", err)
	}
	store := repository.NewStore(db)

	loc, err := time.LoadLocation(getenv("TIMEZONE", "America/Sao_Paulo"))
	if err != nil {
		log.Fatal("Failed to load timezone:", err)
	}
	cal := calendar.New(loc, calendar.BrazilHolidays{},
		getenvInt("WORK_START_HOUR", 9), getenvInt("WORK_END_HOUR", 18))

	notifier := notify.NewNotifier()
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client, err := notify.NewRedisClient(addr)
		if err != nil {
			log.Fatal("Failed to connect to redis:", err)
		}
		notifier.Subscribe(notify.NewRedisPublisher(client))
		notifier.Subscribe(notify.NewSwimlaneQueue(client))
	}

	reg := registry.New()
	registerStates(reg)

	progression := service.NewProgression(reg, cal)
	taskSvc := service.NewTaskService(store, cal, progression, notifier)
	jobSvc := service.NewJobService(store, cal, notifier)
	workflowBuilder := builder.New(store, reg, cal)

	h := handler.New(workflowBuilder, jobSvc, taskSvc)

	router := gin.Default()
	h.Register(router.Group("/api/v1"))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := getenv("HTTP_ADDR", ":8080")
	log.Println("Server starting on", addr)
	if err := router.Run(addr); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Fatalf("%s must be an integer: %v", key, err)
	}
	return value
}
