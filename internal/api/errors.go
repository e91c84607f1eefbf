package api

import (
	"errors"
	"fmt"
)

// ErrAuthExpired возвращается при ответе 401: сессия недействительна.
// Получив эту ошибку, вызывающий код не должен повторять запрос —
// клиент уже сбросил токен и кэш через зарегистрированный обработчик.
var ErrAuthExpired = errors.New("сессия недействительна, требуется повторная аутентификация")

// APIError представляет ошибку, которую вернул сервер (не-2xx ответ).
type APIError struct {
	Status  int
	Message string
}

// Error реализует интерфейс error.
func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// NetworkError представляет сбой на транспортном уровне:
// запрос не дошел до сервера или ответ не был получен.
type NetworkError struct {
	Err error
}

// Error реализует интерфейс error.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

// Unwrap возвращает исходную ошибку транспорта.
func (e *NetworkError) Unwrap() error {
	return e.Err
}
