// Package nullable содержит тип для полей JSON с тремя состояниями:
// поле отсутствует, поле равно null, поле содержит значение.
package nullable

import (
	"bytes"
	"encoding/json"
)

var jsonNull = []byte("null")

// Field хранит значение необязательного поля запроса.
// Нулевое значение Field означает "поле не передано".
type Field[T any] struct {
	Set   bool
	Value *T
}

// Of возвращает заданное поле со значением v.
func Of[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: &v}
}

// Null возвращает заданное поле со значением null.
func Null[T any]() Field[T] {
	return Field[T]{Set: true}
}

// IsNull сообщает, что поле передано явно со значением null.
func (f Field[T]) IsNull() bool {
	return f.Set && f.Value == nil
}

// UnmarshalJSON вызывается только для присутствующих ключей, поэтому Set всегда true.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		f.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	f.Value = &v
	return nil
}

// MarshalJSON кодирует отсутствующее и null-поле как null.
// Для пропуска ключа используйте omitempty-совместимую обертку на уровне структуры.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if f.Value == nil {
		return jsonNull, nil
	}
	return json.Marshal(*f.Value)
}
