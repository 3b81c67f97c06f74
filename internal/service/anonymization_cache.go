package service

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/yourusername/pilotvoice-api/internal/domain/repository"
	apperrors "github.com/yourusername/pilotvoice-api/internal/pkg/errors"
)

const verdictCachePrefix = "gdpr:verdict:"

// cachedVerdict - то, что хранится в кеше. Исходный текст не сохраняется.
type cachedVerdict struct {
	ContainsPersonalData bool     `json:"c"`
	Confidence           float64  `json:"p"`
	AnonymizedText       *string  `json:"a,omitempty"`
	DetectedDataTypes    []string `json:"t,omitempty"`
}

// CachedAnonymizer кеширует вердикты в Redis по хешу текста.
// Ошибки кеша не влияют на результат проверки.
type CachedAnonymizer struct {
	next   Anonymizer
	cache  repository.CacheRepository
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedAnonymizer оборачивает Anonymizer кешем
func NewCachedAnonymizer(next Anonymizer, cache repository.CacheRepository, ttl time.Duration, logger *zap.Logger) *CachedAnonymizer {
	return &CachedAnonymizer{next: next, cache: cache, ttl: ttl, logger: logger}
}

// verdictCacheKey строит ключ кеша из BLAKE2b-хеша текста
func verdictCacheKey(text string) string {
	sum := blake2b.Sum256([]byte(text))
	return verdictCachePrefix + hex.EncodeToString(sum[:])
}

// CheckAndAnonymize реализует Anonymizer
func (a *CachedAnonymizer) CheckAndAnonymize(ctx context.Context, text string) (*GdprCheckResult, error) {
	if strings.TrimSpace(text) == "" {
		return cleanVerdict(text), nil
	}

	key := verdictCacheKey(text)

	var cached cachedVerdict
	err := a.cache.GetJSON(ctx, key, &cached)
	switch {
	case err == nil:
		return &GdprCheckResult{
			ContainsPersonalData: cached.ContainsPersonalData,
			Confidence:           cached.Confidence,
			OriginalText:         text,
			AnonymizedText:       cached.AnonymizedText,
			DetectedDataTypes:    cached.DetectedDataTypes,
		}, nil
	case !errors.Is(err, apperrors.ErrNotFound):
		a.logger.Warn("GDPR verdict cache read failed", zap.Error(err))
	}

	result, err := a.next.CheckAndAnonymize(ctx, text)
	if err != nil {
		return nil, err
	}

	toCache := cachedVerdict{
		ContainsPersonalData: result.ContainsPersonalData,
		Confidence:           result.Confidence,
		AnonymizedText:       result.AnonymizedText,
		DetectedDataTypes:    result.DetectedDataTypes,
	}
	if err := a.cache.SetJSON(ctx, key, toCache, a.ttl); err != nil {
		a.logger.Warn("GDPR verdict cache write failed", zap.Error(err))
	}
	return result, nil
}
