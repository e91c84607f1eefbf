// Package export формирует Excel-отчеты для администраторов.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"telegram-miniapp-client/internal/domain"
)

// ModelsReport формирует xlsx-файл со списком моделей каталога.
func ModelsReport(models []domain.Model) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Модели"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать лист: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"Дата экспорта", "ID", "Название", "Код", "Бренд", "Категория", "Годы выпуска", "Активна"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, h)
	}

	exportDate := time.Now().Format(time.RFC3339)
	for i, m := range models {
		row := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), exportDate)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), m.ID)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), m.Name)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), m.Code)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), m.Brand)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), m.Category)
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), m.YearRange())
		f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), m.IsActive)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("не удалось записать xlsx: %w", err)
	}
	return &buf, nil
}

// TicketsReport формирует xlsx-файл со списком тикетов.
func TicketsReport(tickets []domain.Ticket) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Тикеты"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать лист: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"Дата экспорта", "ID", "Тема", "Статус", "Приоритет", "Создан"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, h)
	}

	exportDate := time.Now().Format(time.RFC3339)
	for i, t := range tickets {
		row := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), exportDate)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), t.ID)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), t.Subject)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), string(t.Status))
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), string(t.Priority))
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), t.CreatedAt.Format(time.RFC3339))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("не удалось записать xlsx: %w", err)
	}
	return &buf, nil
}

// ReportFileName возвращает имя файла отчета с отметкой времени.
func ReportFileName(prefix string) string {
	return fmt.Sprintf("%s_%s.xlsx", prefix, time.Now().Format("2006-01-02_15-04-05"))
}
