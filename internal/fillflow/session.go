package fillflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/yourusername/pilotvoice-api/internal/pkg/errors"
	"github.com/yourusername/pilotvoice-api/internal/pkg/nullable"
)

// Phase - этап сессии заполнения
type Phase string

const (
	PhaseInitializing Phase = "initializing"
	PhaseReady        Phase = "ready"
	PhaseCompleting   Phase = "completing"
	PhaseReview       Phase = "review"
	PhaseDone         Phase = "done"
	PhaseError        Phase = "error"
)

// SaveStatus - индикатор сохранения черновика
type SaveStatus string

const (
	SaveIdle   SaveStatus = "idle"
	SaveTyping SaveStatus = "typing"
	SaveSaving SaveStatus = "saving"
	SaveSaved  SaveStatus = "saved"
	SaveError  SaveStatus = "error"
)

// Outcome - результат попытки завершить опрос
type Outcome string

const (
	// OutcomeSubmitted - ответ отправлен, можно переходить на страницу благодарности
	OutcomeSubmitted Outcome = "submitted"
	// OutcomeReview - отзыв содержит персональные данные, нужен выбор пользователя
	OutcomeReview Outcome = "review"
)

// Допустимый диапазон оценки в форме
const (
	MinRating = 1
	MaxRating = 5
)

// Значения по умолчанию
const (
	DefaultDebounce     = 5 * time.Second
	DefaultSavedDisplay = 2 * time.Second
	DefaultErrorDisplay = 3 * time.Second
)

// State - наблюдаемое состояние сессии
type State struct {
	Phase       Phase      `json:"phase"`
	SaveStatus  SaveStatus `json:"saveStatus"`
	Response    Response   `json:"response"`
	Review      *Verdict   `json:"review,omitempty"`
	Error       string     `json:"error,omitempty"`
	RedirectURL string     `json:"redirectUrl,omitempty"`
}

// Config - настройки сессии
type Config struct {
	SurveyID     int64
	Slug         string
	Debounce     time.Duration
	SavedDisplay time.Duration
	ErrorDisplay time.Duration
	// OnChange вызывается из цикла сессии при каждом изменении состояния.
	// Вызывать методы Session из OnChange нельзя.
	OnChange func(State)
	// OnAutosave вызывается после каждого сохранения черновика
	OnAutosave func(err error)
	Now        func() time.Time
}

func (c *Config) applyDefaults() {
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if c.SavedDisplay <= 0 {
		c.SavedDisplay = DefaultSavedDisplay
	}
	if c.ErrorDisplay <= 0 {
		c.ErrorDisplay = DefaultErrorDisplay
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// autosave - состояние автосохранения: Idle | PendingSave(deadline) | Saving
type autosave int

const (
	autosaveIdle autosave = iota
	autosavePending
	autosaveSaving
)

// snapshot - сравнимое по значению содержимое черновика
type snapshot struct {
	hasRating   bool
	rating      int
	hasFeedback bool
	feedback    string
}

func snapshotOf(r Response) snapshot {
	var s snapshot
	if r.OverallRating != nil {
		s.hasRating, s.rating = true, *r.OverallRating
	}
	if r.OpenFeedback != nil {
		s.hasFeedback, s.feedback = true, *r.OpenFeedback
	}
	return s
}

func (s snapshot) patch() Patch {
	p := Patch{OverallRating: nullable.Null[int](), OpenFeedback: nullable.Null[string]()}
	if s.hasRating {
		p.OverallRating = nullable.Of(s.rating)
	}
	if s.hasFeedback {
		p.OpenFeedback = nullable.Of(s.feedback)
	}
	return p
}

// Session - сессия заполнения одного ответа.
// Все состояние принадлежит одной горутине; методы обмениваются с ней сообщениями.
type Session struct {
	api    API
	cfg    Config
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	events    chan event
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// Поля ниже доступны только из run
	state       State
	saved       snapshot
	autosave    autosave
	deadline    time.Time
	saveTimer   *time.Timer
	saveGen     uint64
	statusTimer *time.Timer
	statusGen   uint64
	verdict     *Verdict
	completion  chan completeReply
}

// NewSession создает сессию и запускает ее цикл. Ответ загружается вызовом Start.
func NewSession(api API, cfg Config, logger *zap.Logger) *Session {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		api:    api,
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		events: make(chan event),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		state:  State{Phase: PhaseInitializing, SaveStatus: SaveIdle},
	}
	go s.run()
	return s
}

// Start находит ответ пользователя или создает его.
// Если ответ уже создан параллельно (Conflict), сессия перечитывает и использует его.
func (s *Session) Start(ctx context.Context) error {
	reply := make(chan error, 1)
	return s.request(ctx, startEvent{reply: reply}, reply)
}

// SetRating меняет оценку и планирует автосохранение
func (s *Session) SetRating(ctx context.Context, rating int) error {
	if rating < MinRating || rating > MaxRating {
		return ErrInvalidRating
	}
	reply := make(chan error, 1)
	return s.request(ctx, editEvent{rating: &rating, reply: reply}, reply)
}

// SetFeedback меняет текст отзыва. Пустая строка очищает отзыв.
func (s *Session) SetFeedback(ctx context.Context, text string) error {
	reply := make(chan error, 1)
	return s.request(ctx, editEvent{feedback: &text, reply: reply}, reply)
}

// Save сохраняет черновик немедленно, без проверки персональных данных
func (s *Session) Save(ctx context.Context) error {
	reply := make(chan error, 1)
	return s.request(ctx, manualSaveEvent{reply: reply}, reply)
}

// Complete завершает опрос. При обнаружении персональных данных возвращает OutcomeReview
// и ждет AcceptAnonymized или EditFeedback.
func (s *Session) Complete(ctx context.Context) (Outcome, error) {
	return s.completeRequest(ctx, completeEvent{})
}

// AcceptAnonymized заменяет отзыв анонимизированным текстом и отправляет ответ
func (s *Session) AcceptAnonymized(ctx context.Context) (Outcome, error) {
	return s.completeRequest(ctx, completeEvent{accept: true})
}

// EditFeedback отклоняет анонимизированный текст и возвращает форму к редактированию
func (s *Session) EditFeedback(ctx context.Context) error {
	reply := make(chan error, 1)
	return s.request(ctx, editReviewEvent{reply: reply}, reply)
}

// State возвращает копию текущего состояния
func (s *Session) State(ctx context.Context) (State, error) {
	reply := make(chan State, 1)
	select {
	case s.events <- stateEvent{reply: reply}:
	case <-s.done:
		return State{}, ErrSessionClosed
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
	select {
	case st := <-reply:
		return st, nil
	case <-s.done:
		return State{}, ErrSessionClosed
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

// Close останавливает сессию: отменяет таймеры и незавершенные запросы
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		close(s.quit)
	})
	<-s.done
}

// ============================================================================
// События цикла
// ============================================================================

type event interface{}

type startEvent struct{ reply chan error }

type initDoneEvent struct {
	response *Response
	err      error
	reply    chan error
}

type editEvent struct {
	rating   *int
	feedback *string
	reply    chan error
}

type manualSaveEvent struct{ reply chan error }

type saveTimerEvent struct{ gen uint64 }

type saveDoneEvent struct {
	snap     snapshot
	response *Response
	err      error
	reply    chan error
}

type statusResetEvent struct{ gen uint64 }

type completeEvent struct {
	accept bool
	reply  chan completeReply
}

type completeReply struct {
	outcome Outcome
	err     error
}

type checkDoneEvent struct {
	verdict *Verdict
	err     error
}

type submitDoneEvent struct {
	response *Response
	err      error
}

type editReviewEvent struct{ reply chan error }

type stateEvent struct{ reply chan State }

func (s *Session) request(ctx context.Context, ev event, reply chan error) error {
	select {
	case s.events <- ev:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) completeRequest(ctx context.Context, ev completeEvent) (Outcome, error) {
	ev.reply = make(chan completeReply, 1)
	select {
	case s.events <- ev:
	case <-s.done:
		return "", ErrSessionClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case r := <-ev.reply:
		return r.outcome, r.err
	case <-s.done:
		return "", ErrSessionClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// post доставляет событие из фоновой горутины или таймера
func (s *Session) post(ev event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *Session) run() {
	defer close(s.done)
	defer s.stopTimers()

	for {
		select {
		case <-s.quit:
			if s.completion != nil {
				s.completion <- completeReply{err: ErrSessionClosed}
				s.completion = nil
			}
			return
		case ev := <-s.events:
			s.handle(ev)
		}
	}
}

func (s *Session) handle(ev event) {
	switch e := ev.(type) {
	case startEvent:
		s.onStart(e)
	case initDoneEvent:
		s.onInitDone(e)
	case editEvent:
		e.reply <- s.onEdit(e)
	case manualSaveEvent:
		s.onManualSave(e)
	case saveTimerEvent:
		if e.gen == s.saveGen && s.autosave == autosavePending {
			s.startSave(nil)
		}
	case saveDoneEvent:
		s.onSaveDone(e)
	case statusResetEvent:
		if e.gen == s.statusGen && (s.state.SaveStatus == SaveSaved || s.state.SaveStatus == SaveError) {
			s.state.SaveStatus = SaveIdle
			s.emit()
		}
	case completeEvent:
		s.onComplete(e)
	case checkDoneEvent:
		s.onCheckDone(e)
	case submitDoneEvent:
		s.onSubmitDone(e)
	case editReviewEvent:
		e.reply <- s.onEditReview()
	case stateEvent:
		e.reply <- s.state
	}
}

// ============================================================================
// Инициализация
// ============================================================================

func (s *Session) onStart(e startEvent) {
	if s.state.Phase != PhaseInitializing {
		e.reply <- ErrAlreadyStarted
		return
	}
	go func() {
		response, err := s.resolveResponse(s.ctx)
		s.post(initDoneEvent{response: response, err: err, reply: e.reply})
	}()
}

func (s *Session) resolveResponse(ctx context.Context) (*Response, error) {
	response, err := s.api.GetMyResponse(ctx, s.cfg.SurveyID)
	if err != nil {
		return nil, err
	}
	if response != nil {
		return response, nil
	}

	response, err = s.api.CreateResponse(ctx, s.cfg.SurveyID)
	if err == nil {
		return response, nil
	}
	if !errors.Is(err, apperrors.ErrConflict) {
		return nil, err
	}

	// Ответ создан в другой вкладке: используем существующий
	s.logger.Debug("Survey response created concurrently, adopting existing row", zap.Int64("survey_id", s.cfg.SurveyID))
	response, err = s.api.GetMyResponse(ctx, s.cfg.SurveyID)
	if err != nil {
		return nil, err
	}
	if response == nil {
		return nil, ErrResponseNotFound
	}
	return response, nil
}

func (s *Session) onInitDone(e initDoneEvent) {
	if e.err != nil {
		s.logger.Warn("Failed to initialize fill session", zap.Int64("survey_id", s.cfg.SurveyID), zap.Error(e.err))
		s.state.Phase = PhaseError
		s.state.Error = msgInitFailed
		s.emit()
		e.reply <- e.err
		return
	}

	s.state.Response = *e.response
	s.saved = snapshotOf(*e.response)
	if e.response.IsCompleted() {
		s.state.Phase = PhaseDone
		s.state.RedirectURL = ThanksPath(s.cfg.Slug)
	} else {
		s.state.Phase = PhaseReady
	}
	s.emit()
	e.reply <- nil
}

// ============================================================================
// Редактирование и автосохранение
// ============================================================================

func (s *Session) editable() error {
	switch s.state.Phase {
	case PhaseReady:
		return nil
	case PhaseReview:
		return ErrReviewPending
	case PhaseDone:
		return ErrSurveyCompleted
	case PhaseError:
		return ErrSessionClosed
	}
	return ErrNotReady
}

func (s *Session) onEdit(e editEvent) error {
	if err := s.editable(); err != nil {
		return err
	}

	if e.rating != nil {
		rating := *e.rating
		s.state.Response.OverallRating = &rating
	}
	if e.feedback != nil {
		if *e.feedback == "" {
			s.state.Response.OpenFeedback = nil
		} else {
			text := *e.feedback
			s.state.Response.OpenFeedback = &text
		}
		// Вердикт относится только к тексту, для которого он получен
		if s.verdict != nil && (s.state.Response.OpenFeedback == nil || *s.state.Response.OpenFeedback != s.verdict.OriginalText) {
			s.verdict = nil
		}
	}
	s.state.Error = ""

	s.reconcile()
	s.emit()
	return nil
}

// reconcile сравнивает черновик с последним сохраненным и планирует или отменяет сохранение
func (s *Session) reconcile() {
	if s.autosave == autosaveSaving {
		// Изменения подхватит следующий цикл после завершения сохранения
		return
	}
	if snapshotOf(s.state.Response) == s.saved {
		if s.autosave == autosavePending {
			s.cancelPendingSave()
			if s.state.SaveStatus == SaveTyping {
				s.state.SaveStatus = SaveIdle
			}
		}
		return
	}
	s.schedulePendingSave()
	s.state.SaveStatus = SaveTyping
}

func (s *Session) schedulePendingSave() {
	if s.saveTimer != nil {
		s.saveTimer.Stop()
	}
	s.saveGen++
	gen := s.saveGen
	s.autosave = autosavePending
	s.deadline = s.cfg.Now().Add(s.cfg.Debounce)
	s.saveTimer = time.AfterFunc(s.cfg.Debounce, func() {
		s.post(saveTimerEvent{gen: gen})
	})
}

func (s *Session) cancelPendingSave() {
	if s.saveTimer != nil {
		s.saveTimer.Stop()
		s.saveTimer = nil
	}
	s.saveGen++
	s.autosave = autosaveIdle
	s.deadline = time.Time{}
}

func (s *Session) onManualSave(e manualSaveEvent) {
	if err := s.editable(); err != nil {
		e.reply <- err
		return
	}
	if s.autosave == autosaveSaving {
		e.reply <- ErrSaveInProgress
		return
	}
	s.cancelPendingSave()
	s.startSave(e.reply)
}

// startSave отправляет черновик. Поле completed_at в запрос не попадает.
func (s *Session) startSave(reply chan error) {
	snap := snapshotOf(s.state.Response)
	responseID := s.state.Response.ID

	s.autosave = autosaveSaving
	s.saveTimer = nil
	s.state.SaveStatus = SaveSaving
	s.emit()

	go func() {
		response, err := s.api.UpdateResponse(s.ctx, responseID, snap.patch())
		s.post(saveDoneEvent{snap: snap, response: response, err: err, reply: reply})
	}()
}

func (s *Session) onSaveDone(e saveDoneEvent) {
	s.autosave = autosaveIdle

	if s.cfg.OnAutosave != nil {
		s.cfg.OnAutosave(e.err)
	}

	if e.err != nil {
		s.logger.Warn("Failed to save survey draft", zap.Int64("response_id", s.state.Response.ID), zap.Error(e.err))
		s.setTransientStatus(SaveError, s.cfg.ErrorDisplay)
		if e.reply != nil {
			s.state.Error = msgSaveFailed
			e.reply <- e.err
		}
		s.emit()
		return
	}

	s.saved = e.snap
	if e.response != nil {
		s.state.Response.UpdatedAt = e.response.UpdatedAt
	}
	s.setTransientStatus(SaveSaved, s.cfg.SavedDisplay)
	if e.reply != nil {
		e.reply <- nil
	}

	// Правки, сделанные во время сохранения, уходят в следующий цикл
	if s.state.Phase == PhaseReady && snapshotOf(s.state.Response) != s.saved {
		s.schedulePendingSave()
	}
	s.emit()
}

func (s *Session) setTransientStatus(status SaveStatus, display time.Duration) {
	if s.statusTimer != nil {
		s.statusTimer.Stop()
	}
	s.statusGen++
	gen := s.statusGen
	s.state.SaveStatus = status
	s.statusTimer = time.AfterFunc(display, func() {
		s.post(statusResetEvent{gen: gen})
	})
}

// ============================================================================
// Завершение
// ============================================================================

func (s *Session) onComplete(e completeEvent) {
	if e.accept {
		if s.state.Phase != PhaseReview || s.verdict == nil {
			e.reply <- completeReply{err: ErrNoPendingReview}
			return
		}
		text := s.verdict.OriginalText
		if s.verdict.AnonymizedText != nil {
			text = *s.verdict.AnonymizedText
		}
		s.state.Response.OpenFeedback = &text
		s.verdict = nil
		s.state.Review = nil
		s.beginCompletion(e.reply)
		s.submit()
		return
	}

	if err := s.editable(); err != nil {
		e.reply <- completeReply{err: err}
		return
	}
	if s.state.Response.OverallRating == nil {
		e.reply <- completeReply{err: ErrRatingRequired}
		return
	}

	s.beginCompletion(e.reply)

	feedback := s.state.Response.OpenFeedback
	if feedback != nil && strings.TrimSpace(*feedback) != "" && (s.verdict == nil || s.verdict.OriginalText != *feedback) {
		text := *feedback
		go func() {
			verdict, err := s.api.CheckGDPR(s.ctx, text)
			s.post(checkDoneEvent{verdict: verdict, err: err})
		}()
		return
	}
	s.submit()
}

func (s *Session) beginCompletion(reply chan completeReply) {
	// Автосохранение не должно конкурировать с отправкой
	if s.autosave == autosavePending {
		s.cancelPendingSave()
	}
	s.completion = reply
	s.state.Phase = PhaseCompleting
	s.state.Error = ""
	s.emit()
}

func (s *Session) onCheckDone(e checkDoneEvent) {
	if e.err != nil {
		s.logger.Warn("Personal data check failed", zap.Int64("response_id", s.state.Response.ID), zap.Error(e.err))
		s.state.Phase = PhaseReady
		s.state.Error = msgCheckFailed
		s.reconcile()
		s.finishCompletion(completeReply{err: e.err})
		return
	}

	s.verdict = e.verdict
	if e.verdict.ContainsPersonalData {
		s.state.Phase = PhaseReview
		s.state.Review = e.verdict
		s.finishCompletion(completeReply{outcome: OutcomeReview})
		return
	}
	s.submit()
}

func (s *Session) submit() {
	responseID := s.state.Response.ID
	patch := snapshotOf(s.state.Response).patch()
	patch.CompletedAt = nullable.Of(s.cfg.Now().UTC())

	go func() {
		response, err := s.api.UpdateResponse(s.ctx, responseID, patch)
		s.post(submitDoneEvent{response: response, err: err})
	}()
}

func (s *Session) onSubmitDone(e submitDoneEvent) {
	if e.err != nil {
		s.logger.Warn("Failed to complete survey", zap.Int64("response_id", s.state.Response.ID), zap.Error(e.err))
		s.state.Phase = PhaseReady
		s.state.Error = msgCompleteFailed
		s.reconcile()
		s.finishCompletion(completeReply{err: e.err})
		return
	}

	s.cancelPendingSave()
	s.state.Response = *e.response
	s.saved = snapshotOf(*e.response)
	s.state.Phase = PhaseDone
	s.state.SaveStatus = SaveIdle
	s.state.RedirectURL = ThanksPath(s.cfg.Slug)
	s.finishCompletion(completeReply{outcome: OutcomeSubmitted})
}

func (s *Session) finishCompletion(r completeReply) {
	s.emit()
	if s.completion != nil {
		s.completion <- r
		s.completion = nil
	}
}

func (s *Session) onEditReview() error {
	if s.state.Phase != PhaseReview {
		return ErrNoPendingReview
	}
	s.verdict = nil
	s.state.Review = nil
	s.state.Phase = PhaseReady
	s.reconcile()
	s.emit()
	return nil
}

func (s *Session) stopTimers() {
	if s.saveTimer != nil {
		s.saveTimer.Stop()
	}
	if s.statusTimer != nil {
		s.statusTimer.Stop()
	}
}

func (s *Session) emit() {
	if s.cfg.OnChange != nil {
		s.cfg.OnChange(s.state)
	}
}
