package service

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/pilotvoice-api/internal/config"
	"github.com/yourusername/pilotvoice-api/internal/domain/repository"
	"github.com/yourusername/pilotvoice-api/pkg/openrouter"
)

// NewAnonymizer выбирает стратегию анонимизации один раз при старте приложения.
// cache может быть nil - тогда вердикты не кешируются.
func NewAnonymizer(cfg *config.Config, cache repository.CacheRepository, logger *zap.Logger) (Anonymizer, error) {
	var anonymizer Anonymizer

	if cfg.Anonymization.Mock {
		anonymizer = NewMockAnonymizationService(cfg.Anonymization.MockDelay, 400*time.Millisecond, nil)
		logger.Info("Using MOCK AnonymizationService")
	} else {
		client, err := openrouter.NewClient(openrouter.Config{
			APIKey:            cfg.OpenRouter.APIKey,
			Endpoint:          cfg.OpenRouter.Endpoint,
			SiteURL:           cfg.Server.PublicURL,
			AppName:           cfg.OpenRouter.AppName,
			Timeout:           cfg.OpenRouter.Timeout,
			RequestsPerSecond: cfg.OpenRouter.RequestsPerSecond,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenRouter client: %w", err)
		}
		anonymizer = NewAnonymizationService(client, cfg.OpenRouter.Model, logger)
		logger.Info("Using REAL AnonymizationService", zap.String("model", cfg.OpenRouter.Model))

		if cache != nil && cfg.Anonymization.CacheTTL > 0 {
			anonymizer = NewCachedAnonymizer(anonymizer, cache, cfg.Anonymization.CacheTTL, logger)
		}
	}

	return anonymizer, nil
}
