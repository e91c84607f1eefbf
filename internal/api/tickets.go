package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"telegram-miniapp-client/internal/domain"
)

// TicketListParams — параметры фильтрации и пагинации списка тикетов.
type TicketListParams struct {
	Page     int
	PageSize int
	Status   domain.TicketStatus
	Priority domain.TicketPriority
}

// Values преобразует параметры в query string.
func (p TicketListParams) Values() url.Values {
	v := url.Values{}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(p.PageSize))
	}
	if p.Status != "" {
		v.Set("status", string(p.Status))
	}
	if p.Priority != "" {
		v.Set("priority", string(p.Priority))
	}
	return v
}

// TicketInput — данные формы создания тикета.
type TicketInput struct {
	Subject     string                `json:"subject"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
	ModelID     *int64                `json:"model_id,omitempty"`
}

// TicketUpdateInput — частичное обновление тикета (статус, исполнитель).
type TicketUpdateInput struct {
	Status     *domain.TicketStatus `json:"status,omitempty"`
	AssigneeID *int64               `json:"assignee_id,omitempty"`
}

// MessageInput — данные формы отправки сообщения в тикет.
type MessageInput struct {
	Body           string `json:"body"`
	IsInternalNote bool   `json:"is_internal_note,omitempty"`
}

// ListTickets возвращает страницу тикетов текущего пользователя.
func (c *Client) ListTickets(ctx context.Context, p TicketListParams) (domain.Page[domain.Ticket], error) {
	raw, err := c.Request(ctx, http.MethodGet, "/tickets", nil, p.Values())
	if err != nil {
		return domain.Page[domain.Ticket]{}, err
	}
	return DecodeList[domain.Ticket](raw)
}

// GetTicket возвращает один тикет по идентификатору.
func (c *Client) GetTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	raw, err := c.Request(ctx, http.MethodGet, fmt.Sprintf("/tickets/%d", id), nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.Ticket](raw)
}

// CreateTicket создает новый тикет.
func (c *Client) CreateTicket(ctx context.Context, in TicketInput) (*domain.Ticket, error) {
	raw, err := c.Request(ctx, http.MethodPost, "/tickets", in, nil)
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.Ticket](raw)
}

// UpdateTicket обновляет тикет (статус, исполнителя).
func (c *Client) UpdateTicket(ctx context.Context, id int64, in TicketUpdateInput) (*domain.Ticket, error) {
	raw, err := c.Request(ctx, http.MethodPut, fmt.Sprintf("/tickets/%d", id), in, nil)
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.Ticket](raw)
}

// ListTicketMessages возвращает переписку по тикету.
// Сообщения всегда отсортированы по времени создания по возрастанию;
// порядок фиксируется здесь, на границе приема данных, и дальше не меняется.
func (c *Client) ListTicketMessages(ctx context.Context, ticketID int64) ([]domain.TicketMessage, error) {
	raw, err := c.Request(ctx, http.MethodGet, fmt.Sprintf("/tickets/%d/messages", ticketID), nil, nil)
	if err != nil {
		return nil, err
	}
	page, err := DecodeList[domain.TicketMessage](raw)
	if err != nil {
		return nil, err
	}
	msgs := page.Items
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}

// CreateTicketMessage отправляет сообщение в переписку тикета.
func (c *Client) CreateTicketMessage(ctx context.Context, ticketID int64, in MessageInput) (*domain.TicketMessage, error) {
	raw, err := c.Request(ctx, http.MethodPost, fmt.Sprintf("/tickets/%d/messages", ticketID), in, nil)
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.TicketMessage](raw)
}

// TicketStats возвращает статистику тикетов текущего пользователя.
func (c *Client) TicketStats(ctx context.Context) (*domain.TicketStats, error) {
	raw, err := c.Request(ctx, http.MethodGet, "/tickets/stats", nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeOne[domain.TicketStats](raw)
}
