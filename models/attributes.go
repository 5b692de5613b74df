package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Attributes открытый набор телеметрии позиции.
// Порядок ключей сохраняется в том виде, в котором их прислал сервер.
type Attributes struct {
	keys   []string
	values map[string]interface{}
}

// NewAttributes создает набор атрибутов из пар ключ-значение
func NewAttributes(pairs ...interface{}) Attributes {
	var a Attributes
	for i := 0; i+1 < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			continue
		}
		a.Set(key, pairs[i+1])
	}
	return a
}

// Get возвращает значение атрибута и признак его наличия
func (a Attributes) Get(key string) (interface{}, bool) {
	v, ok := a.values[key]
	return v, ok
}

// Set добавляет или заменяет атрибут. Повторная запись не меняет позицию ключа.
func (a *Attributes) Set(key string, value interface{}) {
	if a.values == nil {
		a.values = make(map[string]interface{})
	}
	if _, exists := a.values[key]; !exists {
		a.keys = append(a.keys, key)
	}
	a.values[key] = value
}

// Keys возвращает ключи в порядке вставки
func (a Attributes) Keys() []string {
	keys := make([]string, len(a.keys))
	copy(keys, a.keys)
	return keys
}

// Len количество атрибутов
func (a Attributes) Len() int {
	return len(a.keys)
}

// MarshalJSON сериализует атрибуты, сохраняя порядок ключей
func (a Attributes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range a.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(a.values[key])
		if err != nil {
			return nil, fmt.Errorf("ошибка сериализации атрибута %q: %w", key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON читает JSON объект, запоминая порядок ключей
func (a *Attributes) UnmarshalJSON(data []byte) error {
	*a = Attributes{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("attributes: ожидался JSON объект")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("attributes: неверный ключ %v", tok)
		}
		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("attributes: ошибка чтения значения %q: %w", key, err)
		}
		a.Set(key, value)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
