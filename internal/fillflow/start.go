package fillflow

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	apperrors "github.com/yourusername/pilotvoice-api/internal/pkg/errors"
)

// Надписи кнопки на странице опроса
const (
	LabelSignIn   = "Sign In to Start"
	LabelStart    = "Start Survey"
	LabelContinue = "Continue Survey"
	LabelView     = "View Response"
)

// StartAction - действие, доступное посетителю страницы опроса
type StartAction struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

// FillPath возвращает адрес формы заполнения опроса
func FillPath(slug string) string {
	return fmt.Sprintf("/surveys/%s/fill", url.PathEscape(slug))
}

// ThanksPath возвращает адрес страницы благодарности
func ThanksPath(slug string) string {
	return fmt.Sprintf("/surveys/%s/thanks", url.PathEscape(slug))
}

// LoginRedirect возвращает адрес входа, после которого пользователь попадет в форму опроса
func LoginRedirect(loginPath, slug string) string {
	// Разделители пути оставляем читаемыми, как и в 401 от auth middleware
	return loginPath + "?redirect_to=" + strings.ReplaceAll(url.QueryEscape(FillPath(slug)), "%2F", "/")
}

// ResolveStartAction определяет действие по состоянию ответа пользователя.
// Анонимный пользователь (API отвечает ErrUnauthorized) получает ссылку на вход.
func ResolveStartAction(ctx context.Context, api API, surveyID int64, slug, loginPath string) (StartAction, error) {
	response, err := api.GetMyResponse(ctx, surveyID)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) {
			return StartAction{Label: LabelSignIn, Href: LoginRedirect(loginPath, slug)}, nil
		}
		return StartAction{}, err
	}

	switch {
	case response == nil:
		return StartAction{Label: LabelStart, Href: FillPath(slug)}, nil
	case response.IsCompleted():
		return StartAction{Label: LabelView, Href: ThanksPath(slug)}, nil
	default:
		return StartAction{Label: LabelContinue, Href: FillPath(slug)}, nil
	}
}
