// Package controllers реализует контроллеры состояния представлений.
// Каждый контроллер выводит параметры фильтров и пагинации из query string
// URL (единственный источник истины), строит по ним ключ кэша и выполняет
// запросы и мутации через общий кэш сущностей.
package controllers

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"telegram-miniapp-client/internal/domain"
)

// ErrSuperseded возвращается, когда результат загрузки пришел после того,
// как параметры представления успели измениться. Такой результат
// не применяется: логическая отмена вместо физического прерывания запроса.
var ErrSuperseded = errors.New("результат запроса устарел: параметры представления изменились")

// ErrAccessDenied возвращается при попытке открыть админ-консоль без роли
// администратора, подтвержденной сервером.
var ErrAccessDenied = errors.New("доступ только для администраторов")

// ErrDeclined возвращается, когда пользователь не подтвердил
// разрушительное действие; мутация при этом не выполняется.
var ErrDeclined = errors.New("действие отменено пользователем")

// Confirmer запрашивает у пользователя явное подтверждение
// разрушительного действия до запуска мутации.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// SessionInfo — срез состояния сессии, нужный контроллерам.
type SessionInfo interface {
	CurrentUser() *domain.User
	IsAuthenticated() bool
}

// ValidationError — ошибки клиентской валидации формы: поле -> сообщение.
// Ловится на границе формы и отображается рядом с полями;
// до сетевого запроса и кэша такие ошибки не доходят.
type ValidationError map[string]string

// Error реализует интерфейс error.
func (e ValidationError) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, e[f]))
	}
	return "форма заполнена с ошибками: " + strings.Join(parts, "; ")
}
