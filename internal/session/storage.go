package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TokenStorage — долговременное хранилище токена сессии,
// аналог local storage в браузерном клиенте.
type TokenStorage interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// FileTokenStorage хранит токен в файле с правами 0600.
type FileTokenStorage struct {
	path string
}

// NewFileTokenStorage создает хранилище токена по указанному пути.
func NewFileTokenStorage(path string) *FileTokenStorage {
	return &FileTokenStorage{path: path}
}

// Load возвращает сохраненный токен. Отсутствие файла — не ошибка:
// возвращается пустая строка.
func (s *FileTokenStorage) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("не удалось прочитать файл токена: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save записывает токен на диск.
func (s *FileTokenStorage) Save(token string) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("не удалось создать директорию для токена: %w", err)
		}
	}
	if err := os.WriteFile(s.path, []byte(token), 0o600); err != nil {
		return fmt.Errorf("не удалось сохранить токен: %w", err)
	}
	return nil
}

// Clear удаляет сохраненный токен. Отсутствие файла — не ошибка.
func (s *FileTokenStorage) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("не удалось удалить файл токена: %w", err)
	}
	return nil
}
