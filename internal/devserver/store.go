package devserver

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"telegram-miniapp-client/internal/domain"
)

// Store — потокобезопасное хранилище данных dev-сервера в памяти.
// Его жизнь ограничена процессом, персистентности нет.
type Store struct {
	mutex sync.RWMutex

	users    map[int64]*domain.User
	models   map[int64]*domain.Model
	files    map[int64]*domain.ModelFile
	tickets  map[int64]*domain.Ticket
	messages map[int64]*domain.TicketMessage
	tokens   map[string]int64 // токен -> ID пользователя

	nextUserID    int64
	nextModelID   int64
	nextFileID    int64
	nextTicketID  int64
	nextMessageID int64

	// Telegram ID, получающие роль администратора при первом входе
	adminTelegramIDs map[int64]bool
}

// NewStore создает хранилище с демонстрационным каталогом.
func NewStore(adminTelegramIDs []int64) *Store {
	s := &Store{
		users:            make(map[int64]*domain.User),
		models:           make(map[int64]*domain.Model),
		files:            make(map[int64]*domain.ModelFile),
		tickets:          make(map[int64]*domain.Ticket),
		messages:         make(map[int64]*domain.TicketMessage),
		tokens:           make(map[string]int64),
		adminTelegramIDs: make(map[int64]bool),
	}
	for _, id := range adminTelegramIDs {
		s.adminTelegramIDs[id] = true
	}
	s.seed()
	return s
}

// seed наполняет каталог демонстрационными моделями.
func (s *Store) seed() {
	now := time.Now()
	demo := []domain.Model{
		{Name: "ProDrill 2000", Code: "pd-2000", Brand: "Bosch", Category: "drills", YearFrom: 2015, YearTo: 2020, Description: "Ударная дрель для бытовых работ", IsActive: true},
		{Name: "SawMaster X", Code: "smx-1", Brand: "Makita", Category: "saws", YearFrom: 2018, Description: "Циркулярная пила", IsActive: true},
		{Name: "GrindPro 500", Code: "gp-500", Brand: "DeWalt", Category: "grinders", YearTo: 2019, IsActive: false},
	}
	for i := range demo {
		s.nextModelID++
		m := demo[i]
		m.ID = s.nextModelID
		m.CreatedAt = now
		s.models[m.ID] = &m
	}
}

// initDataUser — профиль пользователя внутри initData Mini App.
type initDataUser struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Username     string `json:"username"`
	LanguageCode string `json:"language_code"`
}

// Authenticate разбирает initData, создает пользователя при первом входе
// и выдает токен сессии. Заблокированный пользователь вход не получает.
func (s *Store) Authenticate(initData string) (*domain.User, string, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, "", fmt.Errorf("не удалось разобрать init data: %w", err)
	}
	rawUser := values.Get("user")
	if rawUser == "" {
		return nil, "", fmt.Errorf("init data не содержит профиля пользователя")
	}
	var profile initDataUser
	if err := json.Unmarshal([]byte(rawUser), &profile); err != nil {
		return nil, "", fmt.Errorf("не удалось декодировать профиль пользователя: %w", err)
	}
	if profile.ID == 0 {
		return nil, "", fmt.Errorf("профиль пользователя не содержит идентификатора")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	var user *domain.User
	for _, u := range s.users {
		if u.TelegramUserID == profile.ID {
			user = u
			break
		}
	}
	if user == nil {
		s.nextUserID++
		role := domain.RoleUser
		if s.adminTelegramIDs[profile.ID] {
			role = domain.RoleAdmin
		}
		user = &domain.User{
			ID:             s.nextUserID,
			TelegramUserID: profile.ID,
			Username:       profile.Username,
			FirstName:      profile.FirstName,
			LastName:       profile.LastName,
			LanguageCode:   profile.LanguageCode,
			Role:           role,
			CreatedAt:      time.Now(),
		}
		s.users[user.ID] = user
	}

	if user.IsBlocked {
		return nil, "", ErrBlocked
	}

	token := uuid.NewString()
	s.tokens[token] = user.ID

	u := *user
	return &u, token, nil
}

// UserByToken возвращает владельца токена сессии.
func (s *Store) UserByToken(token string) (*domain.User, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	userID, ok := s.tokens[token]
	if !ok {
		return nil, false
	}
	user, ok := s.users[userID]
	if !ok || user.IsBlocked {
		return nil, false
	}
	u := *user
	return &u, true
}

// RevokeUserTokens отзывает все токены пользователя (например, при блокировке).
func (s *Store) revokeUserTokensLocked(userID int64) {
	for token, id := range s.tokens {
		if id == userID {
			delete(s.tokens, token)
		}
	}
}

// ModelFilter — фильтры списка моделей.
type ModelFilter struct {
	Query      string
	Brand      string
	Category   string
	ActiveOnly bool
}

// ListModels возвращает отфильтрованный и отсортированный по ID список моделей.
func (s *Store) ListModels(f ModelFilter) []domain.Model {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]domain.Model, 0, len(s.models))
	for _, m := range s.models {
		if f.ActiveOnly && !m.IsActive {
			continue
		}
		if f.Brand != "" && !strings.EqualFold(m.Brand, f.Brand) {
			continue
		}
		if f.Category != "" && !strings.EqualFold(m.Category, f.Category) {
			continue
		}
		if f.Query != "" {
			q := strings.ToLower(f.Query)
			if !strings.Contains(strings.ToLower(m.Name), q) &&
				!strings.Contains(strings.ToLower(m.Code), q) &&
				!strings.Contains(strings.ToLower(m.Brand), q) {
				continue
			}
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetModel возвращает модель по ID.
func (s *Store) GetModel(id int64) (*domain.Model, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	m, ok := s.models[id]
	if !ok {
		return nil, false
	}
	copy := *m
	return &copy, true
}

// CreateModel добавляет модель в каталог.
func (s *Store) CreateModel(m domain.Model) domain.Model {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.nextModelID++
	m.ID = s.nextModelID
	m.CreatedAt = time.Now()
	s.models[m.ID] = &m
	return m
}

// UpdateModel обновляет модель.
func (s *Store) UpdateModel(id int64, update domain.Model) (*domain.Model, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	m, ok := s.models[id]
	if !ok {
		return nil, false
	}
	now := time.Now()
	update.ID = m.ID
	update.CreatedAt = m.CreatedAt
	update.HasFiles = m.HasFiles
	update.UpdatedAt = &now
	s.models[id] = &update
	copy := update
	return &copy, true
}

// DeleteModel удаляет модель вместе с файлами.
func (s *Store) DeleteModel(id int64) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.models[id]; !ok {
		return false
	}
	delete(s.models, id)
	for fileID, f := range s.files {
		if f.ModelID == id {
			delete(s.files, fileID)
		}
	}
	return true
}

// ListModelFiles возвращает файлы модели.
func (s *Store) ListModelFiles(modelID int64) []domain.ModelFile {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]domain.ModelFile, 0)
	for _, f := range s.files {
		if f.ModelID == modelID {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AddModelFile прикрепляет файл к модели.
func (s *Store) AddModelFile(modelID int64, filename, comment string, size int64) (*domain.ModelFile, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	m, ok := s.models[modelID]
	if !ok {
		return nil, false
	}

	s.nextFileID++
	f := &domain.ModelFile{
		ID:          s.nextFileID,
		ModelID:     modelID,
		Filename:    filename,
		FileType:    strings.TrimPrefix(strings.ToLower(filepathExt(filename)), "."),
		SizeBytes:   size,
		Comment:     comment,
		DownloadURL: fmt.Sprintf("/api/v1/models/%d/files/%d/download", modelID, s.nextFileID),
		CreatedAt:   time.Now(),
	}
	s.files[f.ID] = f
	m.HasFiles = true

	copy := *f
	return &copy, true
}

// DeleteModelFile удаляет файл модели.
func (s *Store) DeleteModelFile(modelID, fileID int64) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	f, ok := s.files[fileID]
	if !ok || f.ModelID != modelID {
		return false
	}
	delete(s.files, fileID)

	hasFiles := false
	for _, other := range s.files {
		if other.ModelID == modelID {
			hasFiles = true
			break
		}
	}
	if m, ok := s.models[modelID]; ok {
		m.HasFiles = hasFiles
	}
	return true
}

// TicketFilter — фильтры списка тикетов.
type TicketFilter struct {
	// UserID ограничивает выборку тикетами одного пользователя.
	// Ноль означает все тикеты (админ-консоль).
	UserID   int64
	Status   domain.TicketStatus
	Priority domain.TicketPriority
}

// ListTickets возвращает тикеты, новые сверху.
func (s *Store) ListTickets(f TicketFilter) []domain.Ticket {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]domain.Ticket, 0)
	for _, t := range s.tickets {
		if f.UserID != 0 && t.UserID != f.UserID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Priority != "" && t.Priority != f.Priority {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// GetTicket возвращает тикет по ID.
func (s *Store) GetTicket(id int64) (*domain.Ticket, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	t, ok := s.tickets[id]
	if !ok {
		return nil, false
	}
	copy := *t
	return &copy, true
}

// CreateTicket создает тикет от имени пользователя.
func (s *Store) CreateTicket(userID int64, subject, description string, priority domain.TicketPriority, modelID *int64) domain.Ticket {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.nextTicketID++
	t := &domain.Ticket{
		ID:          s.nextTicketID,
		UserID:      userID,
		ModelID:     modelID,
		Subject:     subject,
		Description: description,
		Priority:    priority,
		Status:      domain.StatusOpen,
		CreatedAt:   time.Now(),
	}
	s.tickets[t.ID] = t
	return *t
}

// UpdateTicketStatus меняет статус тикета.
func (s *Store) UpdateTicketStatus(id int64, status domain.TicketStatus) (*domain.Ticket, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	t, ok := s.tickets[id]
	if !ok {
		return nil, false
	}
	now := time.Now()
	t.Status = status
	t.UpdatedAt = &now
	if t.IsClosed() {
		t.ClosedAt = &now
	} else {
		t.ClosedAt = nil
	}
	copy := *t
	return &copy, true
}

// ListTicketMessages возвращает переписку тикета по возрастанию времени.
func (s *Store) ListTicketMessages(ticketID int64) []domain.TicketMessage {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]domain.TicketMessage, 0)
	for _, m := range s.messages {
		if m.TicketID == ticketID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AddTicketMessage добавляет сообщение в переписку.
func (s *Store) AddTicketMessage(ticketID int64, author *domain.User, body string, internal bool) (*domain.TicketMessage, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	t, ok := s.tickets[ticketID]
	if !ok {
		return nil, false
	}

	s.nextMessageID++
	msg := &domain.TicketMessage{
		ID:             s.nextMessageID,
		TicketID:       ticketID,
		AuthorID:       author.ID,
		Body:           body,
		IsInternalNote: internal,
		CreatedAt:      time.Now(),
		Author: domain.MessageAuthor{
			ID:       author.ID,
			FullName: author.FullName(),
			Role:     author.Role,
		},
	}
	s.messages[msg.ID] = msg

	now := time.Now()
	t.UpdatedAt = &now

	copy := *msg
	return &copy, true
}

// TicketStats считает статистику тикетов пользователя.
// Нулевой userID означает все тикеты.
func (s *Store) TicketStats(userID int64) domain.TicketStats {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var stats domain.TicketStats
	for _, t := range s.tickets {
		if userID != 0 && t.UserID != userID {
			continue
		}
		stats.Total++
		switch t.Status {
		case domain.StatusOpen:
			stats.Open++
		case domain.StatusInProgress:
			stats.InProgress++
		case domain.StatusResolved:
			stats.Resolved++
		case domain.StatusClosed:
			stats.Closed++
		}
	}
	return stats
}

// ListUsers возвращает пользователей с поиском по имени и username.
func (s *Store) ListUsers(query string) []domain.User {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		if query != "" {
			q := strings.ToLower(query)
			if !strings.Contains(strings.ToLower(u.Username), q) &&
				!strings.Contains(strings.ToLower(u.FullName()), q) {
				continue
			}
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpdateUser меняет блокировку и роль пользователя.
// При блокировке все его токены отзываются.
func (s *Store) UpdateUser(id int64, isBlocked *bool, role *domain.Role) (*domain.User, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, false
	}
	now := time.Now()
	if isBlocked != nil {
		u.IsBlocked = *isBlocked
		if *isBlocked {
			s.revokeUserTokensLocked(id)
		}
	}
	if role != nil {
		u.Role = *role
	}
	u.UpdatedAt = &now
	copy := *u
	return &copy, true
}

// AdminStats считает сводку по всему хранилищу.
func (s *Store) AdminStats() domain.AdminStats {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var stats domain.AdminStats
	stats.UsersTotal = len(s.users)
	for _, u := range s.users {
		if u.IsBlocked {
			stats.UsersBlocked++
		}
	}
	stats.ModelsTotal = len(s.models)
	for _, m := range s.models {
		if m.IsActive {
			stats.ModelsActive++
		}
	}
	stats.TicketsTotal = len(s.tickets)
	for _, t := range s.tickets {
		if t.IsOpen() {
			stats.TicketsOpen++
		}
	}
	stats.FilesTotal = len(s.files)
	stats.MessagesTotal = len(s.messages)
	return stats
}

// filepathExt возвращает расширение имени файла вместе с точкой.
func filepathExt(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}
