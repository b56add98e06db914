package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"audiovault/cache"
	"audiovault/config"
	"audiovault/core/audio"
	"audiovault/core/auth"
	"audiovault/db"
	"audiovault/logger"
	"audiovault/model"
	"audiovault/repository"
	"audiovault/storage"
)

// Start initializes all dependencies and runs the HTTP server until SIGINT/SIGTERM.
func Start(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.ConnectGormDB(cfg)
	if err != nil {
		return err
	}
	defer db.CloseGormDB(gdb)

	if err := db.AutoMigrateModels(gdb, &model.User{}, &model.Audio{}); err != nil {
		return err
	}

	redisClient, err := db.ConnectRedis(ctx, cfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	logger.Info("[Server] Redis 连接成功")

	blobs, err := storage.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	if err != nil {
		return fmt.Errorf("init token manager: %w", err)
	}
	verifier := auth.NewVerifier(tokens, cache.NewSessionCache(redisClient))

	audioRepo := repository.NewGormAudioRepository(gdb)
	userRepo := repository.NewGormUserRepository(gdb)

	if local, ok := blobs.(*storage.LocalStore); ok && cfg.BlobWatch {
		watcher, err := storage.NewBlobWatcher(local.Dir(), integrityCheck(ctx, audioRepo))
		if err != nil {
			return err
		}
		go watcher.Run(ctx)
		logger.Info("[Server] blob 目录监听已启动", logger.String("dir", local.Dir()))
	}

	apiHandler := NewAPIHandler(
		userRepo,
		audio.NewLibrary(audioRepo, blobs),
		audio.NewUploader(audioRepo, blobs, cfg.AllowedAudioTypes, cfg.MaxUploadBytes),
		tokens,
		verifier,
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(apiHandler),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("[Server] HTTP 服务启动", logger.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("[Server] 正在关闭服务...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("[Server] 服务已停止")
	return nil
}

// integrityCheck 带外删除的 blob 若仍被记录引用，记为数据一致性异常
func integrityCheck(ctx context.Context, repo repository.AudioRepository) func(key string) {
	return func(key string) {
		referenced, err := repo.ExistsByStorageKey(ctx, key)
		if err != nil {
			logger.Error("[BlobWatch] 查询记录失败", logger.String("key", key), logger.ErrorField(err))
			return
		}
		if referenced {
			logger.Warn("[BlobWatch] 仍被记录引用的 blob 被移除", logger.String("key", key))
		}
	}
}
