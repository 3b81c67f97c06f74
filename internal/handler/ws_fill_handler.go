package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/pilotvoice-api/internal/fillflow"
	"github.com/yourusername/pilotvoice-api/internal/middleware"
	"github.com/yourusername/pilotvoice-api/internal/service"
	"github.com/yourusername/pilotvoice-api/pkg/monitoring"
)

const (
	// Время, отведенное на запись сообщения клиенту
	writeWait = 10 * time.Second
	// Время ожидания pong от клиента
	pongWait = 60 * time.Second
	// Период отправки ping, должен быть меньше pongWait
	pingPeriod = (pongWait * 9) / 10
	// Максимальный размер входящего сообщения: отзыв до 10000 символов в UTF-8
	maxMessageSize = 64 * 1024
	// Таймаут обработки одной команды клиента
	commandTimeout = 45 * time.Second
)

// Типы входящих сообщений
const (
	msgSetRating        = "set_rating"
	msgSetFeedback      = "set_feedback"
	msgSave             = "save"
	msgComplete         = "complete"
	msgAcceptAnonymized = "accept_anonymized"
	msgEditFeedback     = "edit_feedback"
)

// fillCommand - сообщение клиента
type fillCommand struct {
	Type string `json:"type"`
	Data struct {
		Rating *int    `json:"rating"`
		Text   *string `json:"text"`
	} `json:"data"`
}

// fillEvent - сообщение сервера: "state" с fillflow.State или "error" с текстом
type fillEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// FillSessionHandler связывает WebSocket-соединение с серверной сессией заполнения опроса
type FillSessionHandler struct {
	surveys    *service.SurveyService
	responses  *service.SurveyResponseService
	metrics    *monitoring.Metrics
	upgrader   gorillaws.Upgrader
	debounce   time.Duration
	checkLimit CheckLimiter
	logger     *zap.Logger
}

// NewFillSessionHandler создает обработчик live-заполнения
func NewFillSessionHandler(
	surveys *service.SurveyService,
	responses *service.SurveyResponseService,
	metrics *monitoring.Metrics,
	allowedOrigins []string,
	debounce time.Duration,
	logger *zap.Logger,
) *FillSessionHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return &FillSessionHandler{
		surveys:   surveys,
		responses: responses,
		metrics:   metrics,
		debounce:  debounce,
		logger:    logger,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Пустой Origin - не браузерный клиент
				if origin == "" || allowed[origin] {
					return true
				}
				logger.Warn("WebSocket: rejected origin", zap.String("origin", origin))
				return false
			},
		},
	}
}

// WithCheckLimit применяет к проверке текста в сессии тот же лимит, что и к POST /check-gdpr
func (h *FillSessionHandler) WithCheckLimit(limit CheckLimiter) *FillSessionHandler {
	h.checkLimit = limit
	return h
}

// HandleConnection открывает сессию заполнения для текущего пользователя
// GET /ws/surveys/:surveyId/fill
func (h *FillSessionHandler) HandleConnection(c *gin.Context) {
	surveyID := c.MustGet(ctxSurveyID).(int64)
	userID, _ := middleware.UserIDFromContext(c)

	survey, err := h.surveys.GetSurvey(c.Request.Context(), surveyID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch survey")
		return
	}
	slug := ""
	if survey.Slug != nil {
		slug = *survey.Slug
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	log := h.logger.With(zap.Int64("survey_id", surveyID), zap.String("user_id", userID.String()))
	log.Info("Fill session connected")

	// Слот последнего состояния: медленный клиент получает только актуальное состояние
	states := make(chan fillflow.State, 1)
	errorsOut := make(chan string, 8)
	done := make(chan struct{})

	api := NewServiceAPI(h.responses, userID, middleware.EmailFromContext(c)).WithCheckLimit(h.checkLimit)
	session := fillflow.NewSession(api, fillflow.Config{
		SurveyID: surveyID,
		Slug:     slug,
		Debounce: h.debounce,
		OnChange: func(st fillflow.State) {
			select {
			case <-states:
			default:
			}
			states <- st
		},
		OnAutosave: func(err error) {
			if err != nil {
				h.metrics.ObserveAutosave("error")
				return
			}
			h.metrics.ObserveAutosave("ok")
		},
	}, log)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writePump(conn, states, errorsOut, done, log)
	}()

	defer func() {
		session.Close()
		close(done)
		<-writerDone
		log.Info("Fill session disconnected")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	err = session.Start(ctx)
	cancel()
	if err != nil {
		pushError(errorsOut, err)
	}

	h.readPump(conn, session, errorsOut, log)
}

func (h *FillSessionHandler) readPump(conn *gorillaws.Conn, session *fillflow.Session, errorsOut chan<- string, log *zap.Logger) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if gorillaws.IsUnexpectedCloseError(err, gorillaws.CloseGoingAway, gorillaws.CloseNormalClosure) {
				log.Warn("Fill session read error", zap.Error(err))
			}
			return
		}

		var cmd fillCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			pushError(errorsOut, errors.New("invalid message format"))
			continue
		}

		if err := h.dispatch(session, cmd); err != nil {
			log.Debug("Fill command rejected", zap.String("type", cmd.Type), zap.Error(err))
			pushError(errorsOut, err)
		}
	}
}

func (h *FillSessionHandler) dispatch(session *fillflow.Session, cmd fillCommand) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch cmd.Type {
	case msgSetRating:
		if cmd.Data.Rating == nil {
			return errors.New("data.rating is required")
		}
		return session.SetRating(ctx, *cmd.Data.Rating)
	case msgSetFeedback:
		text := ""
		if cmd.Data.Text != nil {
			text = *cmd.Data.Text
		}
		return session.SetFeedback(ctx, text)
	case msgSave:
		return session.Save(ctx)
	case msgComplete:
		_, err := session.Complete(ctx)
		return err
	case msgAcceptAnonymized:
		_, err := session.AcceptAnonymized(ctx)
		return err
	case msgEditFeedback:
		return session.EditFeedback(ctx)
	default:
		return errors.New("unknown message type: " + cmd.Type)
	}
}

// writePump - единственный писатель в соединение
func (h *FillSessionHandler) writePump(conn *gorillaws.Conn, states <-chan fillflow.State, errorsOut <-chan string, done <-chan struct{}, log *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	write := func(ev fillEvent) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(ev); err != nil {
			log.Debug("Fill session write failed", zap.Error(err))
			return false
		}
		return true
	}

	for {
		select {
		case st := <-states:
			if !write(fillEvent{Type: "state", Data: st}) {
				return
			}
		case msg := <-errorsOut:
			if !write(fillEvent{Type: "error", Data: gin.H{"message": msg}}) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(gorillaws.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(gorillaws.CloseMessage, gorillaws.FormatCloseMessage(gorillaws.CloseNormalClosure, ""))
			return
		}
	}
}

// pushError не блокирует цикл чтения, если клиент не успевает забирать ошибки
func pushError(out chan<- string, err error) {
	select {
	case out <- err.Error():
	default:
	}
}
