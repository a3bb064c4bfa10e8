package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"couple-quiz-service/internal/app"
	"couple-quiz-service/internal/calendar"
	"couple-quiz-service/internal/config"
	"couple-quiz-service/internal/domain"
	"couple-quiz-service/internal/infra/memory"
	pginfra "couple-quiz-service/internal/infra/postgres"
	redisinfra "couple-quiz-service/internal/infra/redis"
	"couple-quiz-service/internal/quizbank"
	transport "couple-quiz-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the couple quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	couple, err := coupleFromConfig(cfg)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
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
		})
	}

	var pool *pgxpool.Pool
	var bunDB *bun.DB
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		bunDB = bun.NewDB(sqldb, pgdialect.New())
	}

	var loader quizbank.Loader
	switch {
	case cfg.Bank.Path != "":
		loader = quizbank.NewFileLoader(cfg.Bank.Path)
	case pool != nil:
		loader = pginfra.NewBankLoader(pool, couple.CoupleID)
	default:
		loader = memory.NewStaticBankLoader(sampleBank(couple))
	}

	bankTTL := config.TTLDuration(cfg.Bank.TTL, 10*time.Minute)
	var banks app.BankRepository
	if redisClient != nil {
		banks = redisinfra.NewBankCache(redisClient, loader, bankTTL)
	} else {
		banks = memory.NewBankCache(loader, bankTTL)
	}

	var store app.AnswerStore
	switch {
	case bunDB != nil:
		store = pginfra.NewAnswerStore(bunDB)
	case redisClient != nil:
		store = redisinfra.NewAnswerStore(redisClient)
	default:
		store = memory.NewAnswerStore()
	}

	service := app.NewQuizService(store, banks, couple)
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting couple quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func coupleFromConfig(cfg config.Config) (app.CoupleConfig, error) {
	start, err := calendar.ParseKey(cfg.Couple.StartDate)
	if err != nil {
		return app.CoupleConfig{}, fmt.Errorf("couple.startDate: %w", err)
	}
	names := make(map[domain.Role]string, len(cfg.Couple.DisplayNames))
	for role, name := range cfg.Couple.DisplayNames {
		names[domain.Role(role)] = name
	}
	return app.CoupleConfig{
		CoupleID:       cfg.Couple.ID,
		Pair:           domain.RolePair{A: domain.Role(cfg.Couple.RoleA), B: domain.Role(cfg.Couple.RoleB)},
		DisplayNames:   names,
		Timezone:       cfg.Couple.Timezone,
		Start:          start,
		AnniversaryDay: cfg.Couple.AnniversaryDay,
		DailyQuestions: cfg.Couple.DailyQuestions,
	}, nil
}

// sampleBank provides a minimal demo day; point bank.path at a real
// quiz-bank.json in production.
func sampleBank(couple app.CoupleConfig) domain.Bank {
	today := calendar.Date{Year: 2025, Month: 1, Day: 1}
	return domain.Bank{Days: map[string][]domain.Question{
		today.Key(): {
			{Text: "i cannot believe you ate the whole thing", Answer: couple.Pair.A, Timestamp: "9:14 PM"},
			{Text: "come outside, look at the moon", Answer: couple.Pair.B, Timestamp: "11:02 PM"},
			{Text: "ok but who is going to tell the cat", Answer: couple.Pair.A},
		},
	}}
}
