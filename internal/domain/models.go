package domain

import (
	"fmt"
	"strings"
	"time"
)

// TicketPriority представляет приоритет тикета поддержки.
type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityNormal TicketPriority = "normal"
	PriorityHigh   TicketPriority = "high"
)

// Valid сообщает, является ли значение приоритета допустимым.
func (p TicketPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return true
	}
	return false
}

// TicketStatus представляет статус тикета поддержки.
// Переходы между статусами выполняет бэкенд, клиент их только отображает.
type TicketStatus string

const (
	StatusOpen       TicketStatus = "open"
	StatusInProgress TicketStatus = "in_progress"
	StatusResolved   TicketStatus = "resolved"
	StatusClosed     TicketStatus = "closed"
)

// Valid сообщает, является ли значение статуса допустимым.
func (s TicketStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// Role представляет роль пользователя.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Model представляет модель изделия из каталога.
type Model struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Code        string     `json:"code,omitempty"`
	Brand       string     `json:"brand,omitempty"`
	Category    string     `json:"category,omitempty"`
	YearFrom    int        `json:"year_from,omitempty"`
	YearTo      int        `json:"year_to,omitempty"`
	Description string     `json:"description,omitempty"`
	ImageURL    string     `json:"image_url,omitempty"`
	IsActive    bool       `json:"is_active"`
	HasFiles    bool       `json:"has_files"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// YearRange возвращает диапазон годов выпуска в человекочитаемом виде.
// Пустая строка означает, что годы не заданы.
func (m Model) YearRange() string {
	switch {
	case m.YearFrom > 0 && m.YearTo > 0:
		return fmt.Sprintf("%d-%d", m.YearFrom, m.YearTo)
	case m.YearFrom > 0:
		return fmt.Sprintf("с %d", m.YearFrom)
	case m.YearTo > 0:
		return fmt.Sprintf("до %d", m.YearTo)
	}
	return ""
}

// ModelFile представляет файл (инструкцию, схему), прикрепленный к модели.
type ModelFile struct {
	ID          int64     `json:"id"`
	ModelID     int64     `json:"model_id"`
	Filename    string    `json:"filename"`
	FileType    string    `json:"file_type,omitempty"`
	SizeBytes   int64     `json:"size_bytes"`
	Comment     string    `json:"comment,omitempty"`
	DownloadURL string    `json:"download_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Ticket представляет тикет поддержки.
type Ticket struct {
	ID          int64          `json:"id"`
	UserID      int64          `json:"user_id"`
	ModelID     *int64         `json:"model_id,omitempty"`
	Subject     string         `json:"subject"`
	Description string         `json:"description"`
	Priority    TicketPriority `json:"priority"`
	Status      TicketStatus   `json:"status"`
	AssigneeID  *int64         `json:"assignee_id,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   *time.Time     `json:"updated_at,omitempty"`
	ClosedAt    *time.Time     `json:"closed_at,omitempty"`
}

// IsOpen сообщает, находится ли тикет в работе.
func (t Ticket) IsOpen() bool {
	return t.Status == StatusOpen || t.Status == StatusInProgress
}

// IsClosed сообщает, завершен ли тикет.
func (t Ticket) IsClosed() bool {
	return t.Status == StatusResolved || t.Status == StatusClosed
}

// MessageAuthor представляет краткую сводку об авторе сообщения,
// встроенную в само сообщение.
type MessageAuthor struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
}

// TicketMessage представляет одно сообщение в переписке по тикету.
// Список сообщений append-only: сообщения не редактируются и не удаляются.
type TicketMessage struct {
	ID             int64         `json:"id"`
	TicketID       int64         `json:"ticket_id"`
	AuthorID       int64         `json:"author_id"`
	Body           string        `json:"body"`
	Attachments    []string      `json:"attachments,omitempty"`
	IsInternalNote bool          `json:"is_internal_note"`
	CreatedAt      time.Time     `json:"created_at"`
	Author         MessageAuthor `json:"author"`
}

// User представляет пользователя приложения.
// Создается бэкендом при первой аутентификации.
type User struct {
	ID             int64      `json:"id"`
	TelegramUserID int64      `json:"telegram_user_id"`
	Username       string     `json:"username,omitempty"`
	FirstName      string     `json:"first_name,omitempty"`
	LastName       string     `json:"last_name,omitempty"`
	LanguageCode   string     `json:"language_code,omitempty"`
	Role           Role       `json:"role"`
	IsBlocked      bool       `json:"is_blocked"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// FullName возвращает отображаемое имя пользователя.
// При отсутствии имени и фамилии используется username.
func (u User) FullName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name != "" {
		return name
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return fmt.Sprintf("user %d", u.TelegramUserID)
}

// IsAdmin сообщает, имеет ли пользователь роль администратора.
// Роль проверяется сервером, клиентских обходных путей нет.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Session представляет аутентифицированную сессию: токен и его владельца.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// TicketStats представляет агрегированную статистику по тикетам.
type TicketStats struct {
	Total      int `json:"total"`
	Open       int `json:"open"`
	InProgress int `json:"in_progress"`
	Resolved   int `json:"resolved"`
	Closed     int `json:"closed"`
}

// AdminStats представляет сводку для админ-панели.
type AdminStats struct {
	UsersTotal    int `json:"users_total"`
	UsersBlocked  int `json:"users_blocked"`
	ModelsTotal   int `json:"models_total"`
	ModelsActive  int `json:"models_active"`
	TicketsTotal  int `json:"tickets_total"`
	TicketsOpen   int `json:"tickets_open"`
	FilesTotal    int `json:"files_total"`
	MessagesTotal int `json:"messages_total"`
}

// Page представляет канонический результат любого списочного запроса.
// Любая форма ответа бэкенда нормализуется именно к этому виду.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}
