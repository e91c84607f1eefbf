package query

import (
	"fmt"
	"net/url"
)

// Префиксы ключей кэша. Инвалидация по префиксу накрывает все страницы
// и комбинации фильтров одного типа сущности.
const (
	PrefixModels     = "models:"
	PrefixTickets    = "tickets:"
	PrefixAdminUsers = "admin-users:"
)

// ModelsKey — ключ страницы каталога моделей с данными параметрами.
func ModelsKey(params url.Values) Key {
	return Key(PrefixModels + params.Encode())
}

// ModelKey — ключ одной модели.
func ModelKey(id int64) Key {
	return Key(fmt.Sprintf("model:%d", id))
}

// ModelFilesKey — ключ списка файлов модели.
func ModelFilesKey(modelID int64) Key {
	return Key(fmt.Sprintf("model-files:%d", modelID))
}

// TicketsKey — ключ страницы списка тикетов с данными параметрами.
func TicketsKey(params url.Values) Key {
	return Key(PrefixTickets + params.Encode())
}

// TicketKey — ключ одного тикета.
func TicketKey(id int64) Key {
	return Key(fmt.Sprintf("ticket:%d", id))
}

// TicketMessagesKey — ключ переписки по тикету.
func TicketMessagesKey(ticketID int64) Key {
	return Key(fmt.Sprintf("ticket-messages:%d", ticketID))
}

// TicketStatsKey — ключ статистики тикетов пользователя.
func TicketStatsKey() Key {
	return Key("ticket-stats")
}

// AdminStatsKey — ключ сводки админ-панели.
func AdminStatsKey() Key {
	return Key("admin-stats")
}

// AdminUsersKey — ключ страницы пользователей в админ-консоли.
func AdminUsersKey(params url.Values) Key {
	return Key(PrefixAdminUsers + params.Encode())
}

// AdminModelsKey — ключ списка последних моделей на админ-панели.
func AdminModelsKey() Key {
	return Key("admin-models")
}

// AdminTicketsKey — ключ списка последних тикетов на админ-панели.
func AdminTicketsKey() Key {
	return Key("admin-tickets")
}

// CurrentUserKey — ключ профиля текущего пользователя.
func CurrentUserKey() Key {
	return Key("user")
}
