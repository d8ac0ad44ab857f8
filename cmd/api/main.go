package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/studyline/studyline-api/internal/config"
	"github.com/studyline/studyline-api/internal/database"
	"github.com/studyline/studyline-api/internal/handler"
	"github.com/studyline/studyline-api/internal/middleware"
	"github.com/studyline/studyline-api/internal/models"
	"github.com/studyline/studyline-api/internal/repository"
	"github.com/studyline/studyline-api/internal/router"
	"github.com/studyline/studyline-api/internal/scheduler"
	"github.com/studyline/studyline-api/internal/service"
	cloud "github.com/studyline/studyline-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Course{},
		&models.Enrollment{},
		&models.Exam{},
		&models.Question{},
		&models.ExamAttempt{},
		&models.Assignment{},
		&models.AssignmentAttempt{},
		&models.Answer{},
		&models.Comment{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		logger.Warn().Err(err).Msg("nats unavailable, cross-node event fanout disabled")
		natsConn = nil
	} else {
		defer natsConn.Close()
	}

	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	grading := service.GradingOptions{NormalizeAnswers: cfg.NormalizeAnswers}

	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	examRepo := repository.NewExamRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	attemptRepo := repository.NewExamAttemptRepository(db)
	answerRepo := repository.NewAnswerRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	commentRepo := repository.NewCommentRepository(db)

	events := service.NewExamEventPublisher(redisClient, cfg.EventChannelBase, natsConn, logger)

	courseService := service.NewCourseService(courseRepo, enrollmentRepo, validate, logger)
	examService := service.NewExamService(examRepo, questionRepo, validate, logger)
	attemptService := service.NewAttemptService(examRepo, attemptRepo, questionRepo, answerRepo, events, grading, validate, logger)
	assignmentService := service.NewAssignmentService(assignmentRepo, questionRepo, answerRepo, uploader, grading, validate, logger)
	commentService := service.NewCommentService(commentRepo, validate, logger)
	analyticsService := service.NewAnalyticsService(examRepo, attemptRepo, questionRepo, courseRepo, enrollmentRepo, assignmentRepo, redisClient, cfg.AnalyticsCacheTTL, logger)

	courseHandler := handler.NewCourseHandler(courseService, validate, logger)
	examHandler := handler.NewExamHandler(examService, validate, logger)
	attemptHandler := handler.NewAttemptHandler(attemptService, validate, logger)
	assignmentHandler := handler.NewAssignmentHandler(assignmentService, validate, logger)
	commentHandler := handler.NewCommentHandler(commentService, validate, logger)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsService, logger)
	liveFeedHandler := handler.NewLiveFeedHandler(examRepo, events, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		CourseHandler:     courseHandler,
		ExamHandler:       examHandler,
		AttemptHandler:    attemptHandler,
		AssignmentHandler: assignmentHandler,
		CommentHandler:    commentHandler,
		AnalyticsHandler:  analyticsHandler,
		LiveFeedHandler:   liveFeedHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events.Start(runCtx)

	sweeper := scheduler.NewSweeper(examRepo, events, logger)
	go sweeper.Run(runCtx, cfg.SweepInterval)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, cancel)
}

func waitForShutdown(app *fiber.App, cancel context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	cancel()

	ctx, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer timeoutCancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
