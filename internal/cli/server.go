package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"rapid-trivia-service/internal/announce"
	"rapid-trivia-service/internal/app"
	"rapid-trivia-service/internal/config"
	"rapid-trivia-service/internal/infra/memory"
	"rapid-trivia-service/internal/infra/opentdb"
	"rapid-trivia-service/internal/infra/postgres"
	redisstore "rapid-trivia-service/internal/infra/redis"
	"rapid-trivia-service/internal/logging"
	"rapid-trivia-service/internal/matching"
	"rapid-trivia-service/internal/metrics"
	transport "rapid-trivia-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia server and game loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := logging.New(cfg.Log.Level)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,

			// per-call deadlines, e.g. liveness markers, apply to the socket too
			ContextTimeoutEnabled: true,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	matcher, err := matching.NewMatcher(cfg.Matching.Config)
	if err != nil {
		return err
	}
	factory := func(channel string) *app.Coordinator {
		return app.NewCoordinator(channel, matcher,
			app.WithNearMissFloor(cfg.Matching.NearMissFloor),
			app.WithNearMissLimit(cfg.Game.NearMissLimit),
		)
	}

	var rounds app.CoordinatorRepository
	if redisClient != nil {
		rounds = redisstore.NewCoordinatorStore(redisClient, redisTTL, factory)
	} else {
		rounds = memory.NewCoordinatorStore(factory)
	}

	loader := questionLoader(cfg, pool, logger)
	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var questions app.QuestionRepository
	if redisClient != nil {
		questions = redisstore.NewQuestionRepository(redisClient, loader, quizTTL, cfg.Quiz.BatchSize)
	} else {
		questions = memory.NewQuestionRepository(loader, quizTTL, cfg.Quiz.BatchSize)
	}

	var players app.PlayerStore
	switch {
	case pool != nil:
		players = postgres.NewPlayerStore(pool)
	case redisClient != nil:
		players = redisstore.NewPlayerStore(redisClient)
	default:
		players = memory.NewPlayerStore()
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	gameCfg := cfg.GameConfig()
	formatter := announce.NewFormatter(gameCfg.Interlude, nil)
	game := app.NewGameService(rounds, questions, players, gameCfg,
		app.WithLogger(logger),
		app.WithMetrics(m),
		app.WithSinks(announce.NewLogSink(formatter, logger)),
	)

	wsHandler := transport.NewWSHandler(game, formatter, transport.WithLogger(logger), transport.WithMetrics(m))
	leaderboard := transport.NewLeaderboardHandler(game, logger)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(wsHandler, leaderboard, prometheus.DefaultGatherer),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = game.Run(loopCtx, cfg.Game.Channel, time.Now)
	}()

	go func() {
		logger.Info().Str("port", finalPort).Str("channel", cfg.Game.Channel).Msg("starting trivia service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info().Msg("shutting down server...")
	case <-ctx.Done():
		logger.Info().Msg("context canceled, shutting down server...")
	}

	stopLoop()
	<-loopDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// questionLoader chains the configured question sources. Questions fetched from Open
// Trivia DB are archived to Postgres so the database can serve them when the API is down.
func questionLoader(cfg config.Config, pool *pgxpool.Pool, logger zerolog.Logger) app.QuestionLoader {
	var loaders []app.QuestionLoader
	var archive *postgres.QuestionLoader
	if pool != nil {
		archive = postgres.NewQuestionLoader(pool)
	}

	if cfg.OpenTDB.Enabled {
		var remote app.QuestionLoader = opentdb.NewClient(cfg.OpenTDB.BaseURL, config.TTLDuration(cfg.OpenTDB.Timeout, 10*time.Second))
		if archive != nil {
			remote = postgres.NewArchivingLoader(remote, archive, func(err error) {
				logger.Warn().Err(err).Msg("archive questions failed")
			})
		}
		loaders = append(loaders, remote)
	}
	if archive != nil {
		loaders = append(loaders, archive)
	}
	loaders = append(loaders, memory.NewStaticQuestionLoader(memory.BuiltinQuestions()))
	return memory.NewFallbackLoader(logger, loaders...)
}
