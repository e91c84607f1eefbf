// Package view форматирует доменные сущности для вывода в Telegram:
// моноширинные таблицы внутри <pre><code> с переносом слов.
package view

import (
	"fmt"
	"html"
	"strings"
	"unicode"

	"github.com/mattn/go-runewidth"

	"telegram-miniapp-client/internal/domain"
)

// Column описывает одну колонку таблицы.
type Column struct {
	Header string
	Width  int
}

// RenderTable собирает таблицу из колонок и строк. Значения длиннее
// ширины колонки переносятся по словам на следующие строки.
func RenderTable(cols []Column, rows [][]string) string {
	var sb strings.Builder
	sb.WriteString("<pre><code>")

	// Заголовок
	for _, col := range cols {
		sb.WriteString(fmt.Sprintf("| %s%s ", col.Header, strings.Repeat(" ", col.Width-len(col.Header))))
	}
	sb.WriteString("|\n")

	// Разделитель
	for _, col := range cols {
		sb.WriteString(fmt.Sprintf("|%s", strings.Repeat("-", col.Width+2)))
	}
	sb.WriteString("|\n")

	for _, row := range rows {
		// Очищаем и переносим ячейки
		wrapped := make([][]string, len(cols))
		maxLines := 1
		for i, col := range cols {
			value := ""
			if i < len(row) {
				value = row[i]
			}
			value = strings.ToValidUTF8(value, "")
			value = html.EscapeString(value)
			value = strings.ReplaceAll(value, "\n", " ")
			wrapped[i] = wrapString(value, col.Width)
			if len(wrapped[i]) > maxLines {
				maxLines = len(wrapped[i])
			}
		}

		for line := 0; line < maxLines; line++ {
			for i, col := range cols {
				part := ""
				if line < len(wrapped[i]) {
					part = wrapped[i][line]
				}
				sb.WriteString(fmt.Sprintf("| %s%s ", part, generatePadding(part, col.Width)))
			}
			sb.WriteString("|\n")
		}
	}

	sb.WriteString("</code></pre>")
	return sb.String()
}

// ModelsTable форматирует список моделей каталога.
func ModelsTable(models []domain.Model) string {
	cols := []Column{
		{Header: "Name", Width: 20},
		{Header: "Brand", Width: 12},
		{Header: "Years", Width: 10},
	}
	rows := make([][]string, 0, len(models))
	for _, m := range models {
		rows = append(rows, []string{m.Name, m.Brand, m.YearRange()})
	}
	return RenderTable(cols, rows)
}

// TicketsTable форматирует список тикетов.
func TicketsTable(tickets []domain.Ticket) string {
	cols := []Column{
		{Header: "#", Width: 6},
		{Header: "Subject", Width: 24},
		{Header: "Status", Width: 11},
		{Header: "Priority", Width: 8},
	}
	rows := make([][]string, 0, len(tickets))
	for _, t := range tickets {
		rows = append(rows, []string{
			fmt.Sprintf("%d", t.ID),
			t.Subject,
			string(t.Status),
			string(t.Priority),
		})
	}
	return RenderTable(cols, rows)
}

// generatePadding вычисляет отступ для строки с учетом поправки на CJK-символы.
func generatePadding(s string, colWidth int) string {
	paddingNeeded := colWidth - runewidth.StringWidth(s)

	// Прагматическая поправка: если в строке есть CJK-символы, добавляем один пробел,
	// чтобы компенсировать ошибку рендеринга в некоторых клиентах.
	hasCJK := false
	for _, r := range s {
		if unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hangul, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r) {
			hasCJK = true
			break
		}
	}

	if hasCJK && paddingNeeded >= 0 {
		paddingNeeded++
	}

	if paddingNeeded > 0 {
		return strings.Repeat(" ", paddingNeeded)
	}
	return ""
}

// wrapString переносит строку по ширине с приоритетом границ слов.
// Слово длиннее ширины разрезается посередине.
func wrapString(s string, width int) []string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return []string{s}
	}

	var lines []string
	words := strings.Fields(s)

	if len(words) == 0 {
		runes := []rune(s)
		for len(runes) > 0 {
			i := 0
			currentWidth := 0
			for i < len(runes) {
				runeWidth := runewidth.RuneWidth(runes[i])
				if currentWidth+runeWidth > width {
					break
				}
				currentWidth += runeWidth
				i++
			}
			lines = append(lines, string(runes[:i]))
			runes = runes[i:]
		}
		if len(lines) == 0 {
			return []string{""}
		}
		return lines
	}

	var currentLine strings.Builder
	for _, word := range words {
		wordWidth := runewidth.StringWidth(word)

		if wordWidth > width {
			if currentLine.Len() > 0 {
				lines = append(lines, currentLine.String())
				currentLine.Reset()
			}

			runes := []rune(word)
			for len(runes) > 0 {
				i := 0
				currentWidth := 0
				for i < len(runes) {
					runeWidth := runewidth.RuneWidth(runes[i])
					if currentWidth+runeWidth > width {
						break
					}
					currentWidth += runeWidth
					i++
				}
				lines = append(lines, string(runes[:i]))
				runes = runes[i:]
			}
			continue
		}

		lineLen := runewidth.StringWidth(currentLine.String())
		if lineLen > 0 && lineLen+1+wordWidth > width {
			lines = append(lines, currentLine.String())
			currentLine.Reset()
		}

		if currentLine.Len() > 0 {
			currentLine.WriteString(" ")
		}
		currentLine.WriteString(word)
	}

	if currentLine.Len() > 0 {
		lines = append(lines, currentLine.String())
	}

	return lines
}
