package bootstrap

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	appControllers "github.com/advisehq/advising/internal/app/controllers"
	appMigrations "github.com/advisehq/advising/internal/app/migrations"
	appRepos "github.com/advisehq/advising/internal/app/repositories"
	appRoutes "github.com/advisehq/advising/internal/app/routes"
	appServices "github.com/advisehq/advising/internal/app/services"
	"github.com/advisehq/advising/internal/config"
	"github.com/advisehq/advising/internal/db"
	appMiddleware "github.com/advisehq/advising/internal/middleware"
	pkgAuth "github.com/advisehq/advising/internal/pkg/auth"
	"github.com/advisehq/advising/internal/pkg/filestorage"
	"github.com/advisehq/advising/internal/pkg/logger"
)

// Dependencies holds all the application dependencies
type Dependencies struct {
	AppointmentService    *appServices.AppointmentService
	NoteService           *appServices.NoteService
	StudentSetResolver    *appServices.StudentSetResolver
	AppointmentController *appControllers.AppointmentController
	NoteController        *appControllers.NoteController
	AuthMiddleware        *appMiddleware.AuthMiddleware
	Repos                 *appRepos.Repositories
	JWTService            *pkgAuth.JWTService
	Logger                zerolog.Logger
	FileStorage           *filestorage.LocalStorage
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger() (*config.Config, zerolog.Logger, error) {
	configPath := filepath.Join("configs", "config.yaml")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	logLevel := logger.LogLevel(strings.ToLower(cfg.Logging.Level))

	logger.Configure(logger.Config{
		Level:  logLevel,
		Format: cfg.Logging.Format,
	})

	lgr := log.Logger
	lgr.Info().Str("logLevel", string(logLevel)).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupDatabase establishes the database connection and runs migrations.
func SetupDatabase(cfg *config.Config, lgr zerolog.Logger) (*pgxpool.Pool, error) {
	lgr.Info().Msg("Establishing database connection...")
	dbPool, err := db.Connect(cfg)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}
	lgr.Info().Msg("Database connection successfully established.")

	lgr.Info().Msg("Running database migrations...")
	migrator := appMigrations.NewMigrator(dbPool)

	migrationsDir := "migrations"
	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		lgr.Error().Str("path", migrationsDir).Msg("Migrations directory not found")
		return nil, fmt.Errorf("migrations directory not found at %s: %w", migrationsDir, err)
	}

	if err := migrator.MigrateFromDirectory(migrationsDir); err != nil {
		lgr.Error().Err(err).Msg("Database migration error")
		return nil, fmt.Errorf("database migrations failed: %w", err)
	}

	lgr.Info().Msg("Database migrations successfully applied.")
	return dbPool, nil
}

// BuildDependencies initializes application repositories, services, and controllers.
func BuildDependencies(cfg *config.Config, dbPool *pgxpool.Pool, lgr zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Logger: lgr}

	deps.Repos = appRepos.NewRepositories(dbPool)

	var err error
	deps.FileStorage, err = filestorage.NewLocalStorage(cfg.Storage.Path)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to initialize file storage")
		return nil, fmt.Errorf("failed to initialize file storage: %w", err)
	}

	accessTokenExp, err := time.ParseDuration(cfg.JWT.AccessTokenExpiration)
	if err != nil {
		accessTokenExp = time.Hour
	}
	deps.JWTService = pkgAuth.NewJWTService(pkgAuth.JWTConfig{
		SecretKey:      cfg.JWT.Secret,
		AccessTokenExp: accessTokenExp,
		TokenIssuer:    cfg.JWT.Issuer,
	})

	deps.StudentSetResolver = appServices.NewStudentSetResolver(
		deps.Repos.StudentGroupRepository,
	)
	deps.AppointmentService = appServices.NewAppointmentService(
		deps.Repos.AppointmentRepository,
		deps.Repos.DirectoryRepository,
		deps.Repos.StudentRepository,
		deps.Repos.ReadReceiptRepository,
	)
	deps.NoteService = appServices.NewNoteService(
		deps.Repos.NoteRepository,
		deps.Repos.ReadReceiptRepository,
		deps.StudentSetResolver,
		deps.FileStorage,
		cfg.Advising.MaxAttachmentsPerNote,
	)

	deps.AuthMiddleware = appMiddleware.NewAuthMiddleware(deps.JWTService, deps.Repos.DirectoryRepository)

	deps.AppointmentController = appControllers.NewAppointmentController(deps.AppointmentService)
	deps.NoteController = appControllers.NewNoteController(deps.NoteService)

	return deps, nil
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) *gin.Engine {
	if strings.ToLower(cfg.Server.Mode) == "production" {
		gin.SetMode(gin.ReleaseMode)
		lgr.Info().Msg("Setting Gin mode to release")
	} else {
		gin.SetMode(gin.DebugMode)
		lgr.Info().Msg("Setting Gin mode to debug")
	}

	router := gin.Default()

	appRoutes.SetupSwagger(router)

	appRoutes.SetupRouter(router,
		deps.AppointmentController,
		deps.NoteController,
		deps.AuthMiddleware,
	)

	// Test endpoint
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong", "status": "success"})
	})

	return router
}
