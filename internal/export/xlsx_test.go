package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"telegram-miniapp-client/internal/domain"
)

func TestModelsReport(t *testing.T) {
	buf, err := ModelsReport([]domain.Model{
		{ID: 1, Name: "ProDrill 2000", Code: "pd-2000", Brand: "Bosch", Category: "drills", YearFrom: 2015, YearTo: 2020, IsActive: true},
		{ID: 2, Name: "SawMaster", Code: "sm-1", Brand: "Makita", IsActive: false},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Модели")
	require.NoError(t, err)
	require.Len(t, rows, 3, "заголовок и две строки данных")

	assert.Equal(t, "Название", rows[0][2])
	assert.Equal(t, "ProDrill 2000", rows[1][2])
	assert.Equal(t, "2015-2020", rows[1][6])
	assert.Equal(t, "SawMaster", rows[2][2])
}

func TestTicketsReport(t *testing.T) {
	buf, err := TicketsReport([]domain.Ticket{
		{ID: 42, Subject: "Не включается", Status: domain.StatusOpen, Priority: domain.PriorityHigh, CreatedAt: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Тикеты")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Не включается", rows[1][2])
	assert.Equal(t, "open", rows[1][3])
	assert.Equal(t, "high", rows[1][4])
}

func TestReportFileName(t *testing.T) {
	name := ReportFileName("models")
	assert.Contains(t, name, "models_")
	assert.Contains(t, name, ".xlsx")
}
