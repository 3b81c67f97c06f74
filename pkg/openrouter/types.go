package openrouter

import "encoding/json"

// Message - одно сообщение диалога
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// JSONSchema описывает именованную схему ответа
type JSONSchema struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

// ResponseFormat задает структурированный формат ответа модели
type ResponseFormat struct {
	Type       string     `json:"type"`
	JSONSchema JSONSchema `json:"json_schema"`
}

// CompletionParams - параметры запроса структурированного ответа
type CompletionParams struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	SchemaName   string
	Schema       map[string]any
	Temperature  *float64
	MaxTokens    *int
}

type requestBody struct {
	Model          string         `json:"model"`
	Messages       []Message      `json:"messages"`
	ResponseFormat ResponseFormat `json:"response_format"`
	Temperature    *float64       `json:"temperature,omitempty"`
	MaxTokens      *int           `json:"max_tokens,omitempty"`
}

type choice struct {
	Index   int `json:"index"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type responseBody struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
	Usage   *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Float и Int упрощают заполнение необязательных параметров
func Float(v float64) *float64 { return &v }
func Int(v int) *int           { return &v }

// decodeObject разбирает JSON-объект ответа. Ключи из required должны присутствовать и быть не null:
// иначе пропущенное поле молча превратилось бы в нулевое значение.
func decodeObject(content string, required []string, dest any) error {
	var probe any
	if err := json.Unmarshal([]byte(content), &probe); err != nil {
		return &ValidationError{Message: "Failed to parse API response as JSON", Cause: err}
	}
	object, ok := probe.(map[string]any)
	if !ok {
		return &ValidationError{Message: "Parsed response is not a valid object"}
	}
	for _, key := range required {
		if value, present := object[key]; !present || value == nil {
			return &ValidationError{Message: "API response is missing required field: " + key}
		}
	}
	if err := json.Unmarshal([]byte(content), dest); err != nil {
		return &ValidationError{Message: "API response does not match the requested schema", Cause: err}
	}
	return nil
}

// requiredKeys извлекает список "required" из JSON-схемы
func requiredKeys(schema map[string]any) []string {
	switch keys := schema["required"].(type) {
	case []string:
		return keys
	case []any:
		out := make([]string, 0, len(keys))
		for _, k := range keys {
			if name, ok := k.(string); ok {
				out = append(out, name)
			}
		}
		return out
	default:
		return nil
	}
}
