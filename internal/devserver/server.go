// Package devserver реализует локальный бэкенд для разработки клиента:
// тот же REST-контракт, что у продакшен-бэкенда, но поверх хранилища
// в памяти.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"telegram-miniapp-client/internal/domain"
	"telegram-miniapp-client/internal/pkg/config"
)

// ErrBlocked возвращается при попытке входа заблокированного пользователя.
var ErrBlocked = errors.New("пользователь заблокирован")

type ctxKey int

const userKey ctxKey = 0

// Server — HTTP-сервер разработки.
type Server struct {
	HTTPServer *http.Server
	store      *Store
	logger     *slog.Logger

	// legacyShapes включает чередование исторических форм списочных
	// ответов: голый массив, конверт items, конверт models.
	legacyShapes bool
	shapeCounter atomic.Uint64
}

// New создает сервер разработки поверх хранилища.
func New(cfg *config.Config, store *Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		store:        store,
		logger:       logger,
		legacyShapes: cfg.DevServer.LegacyShapes,
	}

	chiRouter := chi.NewRouter()
	chiRouter.Use(middleware.Logger)
	chiRouter.Use(middleware.Recoverer)

	chiRouter.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	chiRouter.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/verify", s.handleVerify)

		// Всё остальное требует токена сессии
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleMe)

			r.Get("/models", s.handleListModels)
			r.Get("/models/{modelID}", s.handleGetModel)
			r.Get("/models/{modelID}/files", s.handleListModelFiles)

			r.Get("/tickets", s.handleListTickets)
			r.Get("/tickets/stats", s.handleTicketStats)
			r.Post("/tickets", s.handleCreateTicket)
			r.Get("/tickets/{ticketID}", s.handleGetTicket)
			r.Put("/tickets/{ticketID}", s.handleUpdateTicket)
			r.Get("/tickets/{ticketID}/messages", s.handleListMessages)
			r.Post("/tickets/{ticketID}/messages", s.handleCreateMessage)

			// Мутации каталога и админ-консоль — только для администраторов
			r.Group(func(r chi.Router) {
				r.Use(s.adminMiddleware)

				r.Post("/models", s.handleCreateModel)
				r.Put("/models/{modelID}", s.handleUpdateModel)
				r.Delete("/models/{modelID}", s.handleDeleteModel)
				r.Post("/models/{modelID}/files", s.handleUploadModelFile)
				r.Delete("/models/{modelID}/files/{fileID}", s.handleDeleteModelFile)

				r.Get("/admin/users", s.handleAdminListUsers)
				r.Put("/admin/users/{userID}", s.handleAdminUpdateUser)
				r.Get("/admin/stats", s.handleAdminStats)
			})
		})
	})

	s.HTTPServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      chiRouter,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler возвращает корневой обработчик (для httptest).
func (s *Server) Handler() http.Handler {
	return s.HTTPServer.Handler
}

// ListenAndServe запускает HTTP-сервер.
func (s *Server) ListenAndServe() error {
	return s.HTTPServer.ListenAndServe()
}

// Shutdown корректно завершает работу HTTP-сервера.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Завершение работы dev-сервера")
	return s.HTTPServer.Shutdown(ctx)
}

// writeJSON сериализует ответ.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeDetail отвечает ошибкой в формате {"detail": "..."}.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// authMiddleware проверяет bearer-токен и кладет пользователя в контекст.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeDetail(w, http.StatusUnauthorized, "Не авторизован")
			return
		}
		user, ok := s.store.UserByToken(token)
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Недействительный токен")
			return
		}
		ctx := context.WithValue(r.Context(), userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// adminMiddleware пропускает только администраторов.
func (s *Server) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)
		if user == nil || !user.IsAdmin() {
			writeDetail(w, http.StatusForbidden, "Требуются права администратора")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// currentUser достает пользователя из контекста запроса.
func currentUser(r *http.Request) *domain.User {
	user, _ := r.Context().Value(userKey).(*domain.User)
	return user
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InitData string `json:"init_data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Не удалось декодировать тело запроса")
		return
	}
	if req.InitData == "" {
		writeDetail(w, http.StatusBadRequest, "init_data обязателен")
		return
	}

	user, token, err := s.store.Authenticate(req.InitData)
	if err != nil {
		if errors.Is(err, ErrBlocked) {
			writeDetail(w, http.StatusForbidden, "Пользователь заблокирован")
			return
		}
		writeDetail(w, http.StatusUnauthorized, err.Error())
		return
	}

	s.logger.Info("пользователь аутентифицирован",
		slog.Int64("user_id", user.ID),
		slog.String("role", string(user.Role)))

	writeJSON(w, http.StatusOK, map[string]any{
		"token": map[string]string{
			"access_token": token,
			"token_type":   "bearer",
		},
		"user": user,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r))
}

// pagination разбирает параметры страницы из запроса.
func pagination(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

// slicePage вырезает страницу из полного списка.
func slicePage[T any](items []T, page, pageSize int) (pageItems []T, total, pages int) {
	total = len(items)
	pages = (total + pageSize - 1) / pageSize
	if pages < 1 {
		pages = 1
	}
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return items[start:end], total, pages
}

// writeList отвечает списком. При включенных legacy-формах ответы
// по очереди принимают все три исторические формы, которые обязан
// понимать клиент.
func (s *Server) writeList(w http.ResponseWriter, items any, total, pages int, modelsShape bool) {
	if s.legacyShapes {
		switch s.shapeCounter.Add(1) % 3 {
		case 0:
			writeJSON(w, http.StatusOK, items)
			return
		case 1:
			if modelsShape {
				writeJSON(w, http.StatusOK, map[string]any{"models": items, "total": total})
				return
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": total,
		"pages": pages,
	})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ModelFilter{
		Query:      q.Get("q"),
		Brand:      q.Get("brand"),
		Category:   q.Get("category"),
		ActiveOnly: q.Get("is_active") == "true",
	}
	page, pageSize := pagination(r)
	items, total, pages := slicePage(s.store.ListModels(filter), page, pageSize)
	s.writeList(w, items, total, pages, true)
}

// modelParam извлекает ID модели из URL.
func modelParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "modelID"), 10, 64)
}

func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	id, err := modelParam(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Недопустимый идентификатор модели")
		return
	}
	m, ok := s.store.GetModel(id)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Модель не найдена")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// modelInput — тело создания/обновления модели.
type modelInput struct {
	Name        string `json:"name"`
	Code        string `json:"code"`
	Brand       string `json:"brand"`
	Category    string `json:"category"`
	YearFrom    *int   `json:"year_from"`
	YearTo      *int   `json:"year_to"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	IsActive    bool   `json:"is_active"`
}

func (in modelInput) toModel() domain.Model {
	m := domain.Model{
		Name:        in.Name,
		Code:        in.Code,
		Brand:       in.Brand,
		Category:    in.Category,
		Description: in.Description,
		ImageURL:    in.ImageURL,
		IsActive:    in.IsActive,
	}
	if in.YearFrom != nil {
		m.YearFrom = *in.YearFrom
	}
	if in.YearTo != nil {
		m.YearTo = *in.YearTo
	}
	return m
}

func (s *Server) handleCreateModel(w http.ResponseWriter, r *http.Request) {
	var in modelInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusBadRequest, "Не удалось декодировать тело запроса")
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "Название обязательно")
		return
	}
	m := s.store.CreateModel(in.toModel())
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleUpdateModel(w http.ResponseWriter, r *http.Request) {
	id, err := modelParam(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Недопустимый идентификатор модели")
		return
	}
	var in modelInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusBadRequest, "Не удалось декодировать тело запроса")
		return
	}
	m, ok := s.store.UpdateModel(id, in.toModel())
	if !ok {
		writeDetail(w, http.StatusNotFound, "Модель не найдена")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleDeleteModel(w http.ResponseWriter, r *http.Request) {
	id, err := modelParam(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Недопустимый идентификатор модели")
		return
	}
	if !s.store.DeleteModel(id) {
		writeDetail(w, http.StatusNotFound, "Модель не найдена")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleListModelFiles(w http.ResponseWriter, r *http.Request) {
	id, err := modelParam(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Недопустимый идентификатор модели")
		return
	}
	files := s.store.ListModelFiles(id)
	s.writeList(w, files, len(files), 1, false)
}

func (s *Server) handleUploadModelFile(w http.ResponseWriter, r *http.Request) {
	id, err := modelParam(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Недопустимый идентификатор модели")
		return
	}
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeDetail(w, http.StatusBadRequest, "Не удалось разобрать форму")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Не удалось получить файл из формы")
		return
	}
	defer file.Close()

	// Содержимое не сохраняется, важен только размер
	size, err := io.Copy(io.Discard, file)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Не удалось прочитать файл")
		return
	}

	f, ok := s.store.AddModelFile(id, header.Filename, r.FormValue("comment"), size)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Модель не найдена")
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleDeleteModelFile(w http.ResponseWriter, r *http.Request) {
	modelID, err := modelParam(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Недопустимый идентификатор модели")
		return
	}
	fileID, err := strconv.ParseInt(chi.URLParam(r, "fileID"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Недопустимый идентификатор файла")
		return
	}
	if !s.store.DeleteModelFile(modelID, fileID) {
		writeDetail(w, http.StatusNotFound, "Файл не найден")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ticketParam извлекает ID тикета из URL.
func ticketParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "ticketID"), 10, 64)
}

// ticketVisible сообщает, виден ли тикет пользователю:
// владельцу и администратору — да, остальным — нет.
func ticketVisible(t *domain.Ticket, user *domain.User) bool {
	return user.IsAdmin() || t.UserID == user.ID
}

func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	q := r.URL.Query()

	filter := TicketFilter{
		Status:   domain.TicketStatus(q.Get("status")),
		Priority: domain.TicketPriority(q.Get("priority")),
	}
	// Обычный пользователь видит только свои тикеты
	if !user.IsAdmin() {
		filter.UserID = user.ID
	}

	page, pageSize := pagination(r)
	items, total, pages := slicePage(s.store.ListTickets(filter), page, pageSize)
	s.writeList(w, items, total, pages, false)
}

func (s *Server) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	id, err := ticketParam(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Недопустимый идентификатор тикета")
		return
	}
	t, ok := s.store.GetTicket(id)
	if !ok || !ticketVisible(t, currentUser(r)) {
		writeDetail(w, http.StatusNotFound, "Тикет не найден")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Subject     string                `json:"subject"`
		Description string                `json:"description"`
		Priority    domain.TicketPriority `json:"priority"`
		ModelID     *int64                `json:"model_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusBadRequest, "Не удалось декодировать тело запроса")
		return
	}
	if strings.TrimSpace(in.Subject) == "" || strings.TrimSpace(in.Description) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "Тема и описание обязательны")
		return
	}
	if in.Priority == "" {
		in.Priority = domain.PriorityNormal
	}
	if !in.Priority.Valid() {
		writeDetail(w, http.StatusUnprocessableEntity, "Недопустимый приоритет")
		return
	}

	t := s.store.CreateTicket(currentUser(r).ID, in.Subject, in.Description, in.Priority, in.ModelID)
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleUpdateTicket(w http.ResponseWriter, r *http.Request) {
	id, err := ticketParam(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Недопустимый идентификатор тикета")
		return
	}
	user := currentUser(r)
	t, ok := s.store.GetTicket(id)
	if !ok || !ticketVisible(t, user) {
		writeDetail(w, http.StatusNotFound, "Тикет не найден")
		return
	}

	var in struct {
		Status *domain.TicketStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusBadRequest, "Не удалось декодировать тело запроса")
		return
	}
	if in.Status == nil || !in.Status.Valid() {
		writeDetail(w, http.StatusUnprocessableEntity, "Недопустимый статус")
		return
	}
	// Смена статуса доступна только администратору
	if !user.IsAdmin() {
		writeDetail(w, http.StatusForbidden, "Требуются права администратора")
		return
	}

	updated, _ := s.store.UpdateTicketStatus(id, *in.Status)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id, err := ticketParam(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Недопустимый идентификатор тикета")
		return
	}
	user := currentUser(r)
	t, ok := s.store.GetTicket(id)
	if !ok || !ticketVisible(t, user) {
		writeDetail(w, http.StatusNotFound, "Тикет не найден")
		return
	}

	msgs := s.store.ListTicketMessages(id)
	// Внутренние заметки видны только администраторам
	if !user.IsAdmin() {
		visible := msgs[:0]
		for _, m := range msgs {
			if !m.IsInternalNote {
				visible = append(visible, m)
			}
		}
		msgs = visible
	}
	s.writeList(w, msgs, len(msgs), 1, false)
}

func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	id, err := ticketParam(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Недопустимый идентификатор тикета")
		return
	}
	user := currentUser(r)
	t, ok := s.store.GetTicket(id)
	if !ok || !ticketVisible(t, user) {
		writeDetail(w, http.StatusNotFound, "Тикет не найден")
		return
	}

	var in struct {
		Body           string `json:"body"`
		IsInternalNote bool   `json:"is_internal_note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusBadRequest, "Не удалось декодировать тело запроса")
		return
	}
	if strings.TrimSpace(in.Body) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "Сообщение не может быть пустым")
		return
	}
	if in.IsInternalNote && !user.IsAdmin() {
		writeDetail(w, http.StatusForbidden, "Внутренние заметки доступны только администраторам")
		return
	}

	msg, _ := s.store.AddTicketMessage(id, user, in.Body, in.IsInternalNote)
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleTicketStats(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	userID := user.ID
	if user.IsAdmin() {
		userID = 0 // администратор видит общую статистику
	}
	writeJSON(w, http.StatusOK, s.store.TicketStats(userID))
}

func (s *Server) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)
	items, total, pages := slicePage(s.store.ListUsers(r.URL.Query().Get("q")), page, pageSize)
	s.writeList(w, items, total, pages, false)
}

func (s *Server) handleAdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Недопустимый идентификатор пользователя")
		return
	}

	var in struct {
		IsBlocked *bool        `json:"is_blocked"`
		Role      *domain.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusBadRequest, "Не удалось декодировать тело запроса")
		return
	}
	if in.Role != nil && *in.Role != domain.RoleUser && *in.Role != domain.RoleAdmin {
		writeDetail(w, http.StatusUnprocessableEntity, fmt.Sprintf("Недопустимая роль: %s", *in.Role))
		return
	}

	u, ok := s.store.UpdateUser(id, in.IsBlocked, in.Role)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Пользователь не найден")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.AdminStats())
}
