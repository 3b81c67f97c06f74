package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

type mockVerdict struct {
	containsPersonalData bool
	confidence           float64
	anonymizedText       string
	detectedDataTypes    []string
}

// Больше половины заготовок не содержит персональных данных
var mockVerdicts = []mockVerdict{
	{containsPersonalData: false, confidence: 0.99},
	{containsPersonalData: false, confidence: 0.95},
	{containsPersonalData: false, confidence: 0.92},
	{containsPersonalData: false, confidence: 0.88},
	{containsPersonalData: false, confidence: 0.96},
	{containsPersonalData: false, confidence: 0.99},
	{containsPersonalData: false, confidence: 0.94},
	{containsPersonalData: true, confidence: 0.85, anonymizedText: "The organizer did a great job.", detectedDataTypes: []string{"full_name"}},
	{containsPersonalData: true, confidence: 0.95, anonymizedText: "Please contact me at the provided email.", detectedDataTypes: []string{"email"}},
	{containsPersonalData: true, confidence: 0.75, anonymizedText: "A participant mentioned an issue with the landing zone.", detectedDataTypes: []string{"full_name", "location"}},
	{containsPersonalData: true, confidence: 0.91, anonymizedText: "My phone number was called by mistake.", detectedDataTypes: []string{"phone"}},
	{containsPersonalData: true, confidence: 0.88, anonymizedText: "The pilot had excellent flight skills.", detectedDataTypes: []string{"full_name"}},
}

// MockAnonymizationService возвращает заготовленные вердикты без обращения к LLM.
// Используется в разработке и e2e-окружении (MOCK_AI_SERVICE=true).
type MockAnonymizationService struct {
	minDelay time.Duration
	jitter   time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewMockAnonymizationService создает мок с задержкой в диапазоне [minDelay, minDelay+jitter)
func NewMockAnonymizationService(minDelay, jitter time.Duration, rnd *rand.Rand) *MockAnonymizationService {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &MockAnonymizationService{minDelay: minDelay, jitter: jitter, rnd: rnd}
}

// CheckAndAnonymize реализует Anonymizer
func (s *MockAnonymizationService) CheckAndAnonymize(ctx context.Context, text string) (*GdprCheckResult, error) {
	if strings.TrimSpace(text) == "" {
		return cleanVerdict(text), nil
	}

	s.mu.Lock()
	delay := s.minDelay
	if s.jitter > 0 {
		delay += time.Duration(s.rnd.Int63n(int64(s.jitter)))
	}
	verdict := mockVerdicts[s.rnd.Intn(len(mockVerdicts))]
	s.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, wrapAnonymizationError(ctx.Err())
		case <-timer.C:
		}
	}

	result := &GdprCheckResult{
		ContainsPersonalData: verdict.containsPersonalData,
		Confidence:           verdict.confidence,
		OriginalText:         text,
	}
	if verdict.containsPersonalData {
		// Подсказка содержит только длину исходного текста, сам текст не попадает в результат
		anonymized := fmt.Sprintf("%s (anonymized from %d characters)", verdict.anonymizedText, len([]rune(text)))
		result.AnonymizedText = &anonymized
		result.DetectedDataTypes = append([]string(nil), verdict.detectedDataTypes...)
	}
	return result, nil
}
