package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"Idea_Portal/internal/config"
	"Idea_Portal/internal/middleware"
	"Idea_Portal/internal/pkg"
	"Idea_Portal/internal/repository/rdb"
	"Idea_Portal/internal/repository/redis"
	"Idea_Portal/internal/router"
	"Idea_Portal/internal/service"
)

func runServe(parent context.Context, cfgPath string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, err := bootstrap(cfgPath)
	if err != nil {
		return err
	}
	gin.SetMode(cfg.Server.Mode)

	if cfg.Trace.Enabled {
		shutdown, err := pkg.SetupTracing(ctx, cfg.Trace.Endpoint, appName, Version)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warn("tracer shutdown failed", "err", err)
			}
		}()
	}

	db, err := rdb.Open(cfg.Database, log)
	if err != nil {
		return err
	}
	if err := rdb.Migrate(db); err != nil {
		return err
	}
	rdbClient, err := redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdbClient.Close()

	deps, workers, closeFn := wire(cfg, db, rdbClient, log)
	defer closeFn()

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router.InitRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var wg sync.WaitGroup
	for _, run := range workers {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(ctx)
		}(run)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", cfg.Server.Addr, "version", Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			stop()
			wg.Wait()
			return err
		}
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	wg.Wait()
	return err
}

// wire 组装仓储、服务和后台任务
func wire(cfg config.Config, db *gorm.DB, rdbClient *goredis.Client, log *slog.Logger) (router.Deps, []func(context.Context), func()) {
	sender := newSender(cfg.Mail, log)
	jwt := pkg.NewJWTManager(cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	listing := service.NewListingCache(cfg.Cache.ListingSize, cfg.Cache.ListingTTL)

	ideaRepo := rdb.NewIdeaRepository(db)
	userRepo := rdb.NewUserRepository(db)
	sessions := redis.NewSessionRepository(rdbClient, cfg.JWT.AccessTTL)
	identity := service.NewLocalIdentity(rdb.NewCredentialRepository(db), 0)
	verify := service.NewVerificationService(
		rdb.NewVerificationRepository(db),
		redis.NewCooldownRepository(rdbClient),
		sender,
		cfg.Mail.AppURL,
		cfg.Mail.ResendCooldown,
		log,
	)
	notifier := service.NewNotifier(sender, cfg.Mail.NotifyAddress, cfg.Mail.AppURL, log)

	deps := router.Deps{
		Ideas:        service.NewIdeaService(ideaRepo, listing, notifier, log),
		Votes:        service.NewVoteService(ideaRepo, rdb.NewVoteRepository(db), redis.NewVoteCacheRepository(rdbClient), listing, log),
		Moderation:   service.NewModerationService(ideaRepo, userRepo, listing, log),
		Comments:     service.NewCommentService(ideaRepo, rdb.NewCommentRepository(db), listing, log),
		Verification: verify,
		Users:        service.NewUserService(userRepo, identity, verify, sessions, jwt, listing, log),
		Auth:         middleware.NewAuth(jwt, sessions, userRepo.FindByID, cfg.Cache.ProfileTTL),
		Health: func(ctx context.Context) error {
			if err := rdb.Ping(ctx, db); err != nil {
				return err
			}
			return rdbClient.Ping(ctx).Err()
		},
	}

	eventSender := service.LogSender(log)
	closeFn := func() {}
	if cfg.Kafka.Enabled {
		producer := pkg.NewKafkaProducer(pkg.KafkaConfig{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
		eventSender = service.KafkaSender(producer)
		closeFn = func() {
			if err := producer.Close(); err != nil {
				log.Warn("kafka producer close failed", "err", err)
			}
		}
	}
	relayer := service.NewOutboxRelayer(rdb.NewOutboxRepository(db), eventSender, cfg.Workers.OutboxInterval, cfg.Workers.OutboxBatch, log)
	reconciler := service.NewVoteCountReconciler(rdb.NewVoteCountReconcilerRepo(db), redis.NewDistLock(rdbClient), listing, cfg.Workers.ReconcileInterval, cfg.Workers.ReconcileBatch, log)

	return deps, []func(context.Context){relayer.Run, reconciler.Run}, closeFn
}

// newSender 按配置选择邮件通道，未配置时只打日志
func newSender(cfg config.MailConfig, log *slog.Logger) pkg.Sender {
	switch cfg.Provider {
	case "smtp":
		return pkg.NewSMTPSender(pkg.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.From,
		})
	case "sendgrid":
		return pkg.NewSendGridSender(cfg.SendGridAPIKey, cfg.From)
	default:
		return pkg.LogSender{Logger: log}
	}
}
