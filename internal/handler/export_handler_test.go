package handler

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/train-schedule-api/internal/models"
	"github.com/noah-isme/train-schedule-api/internal/service"
)

func newExportHandler(repo *stubTrainRepo) *ExportHandler {
	svc := service.NewExportService(repo, zap.NewNop(), 100)
	return NewExportHandler(svc)
}

func TestExportHandlerTimetableCSV(t *testing.T) {
	repo := &stubTrainRepo{
		listResp:  []models.Train{{ID: "id-1", TrainNumber: "IT044", DepartureStation: "Kyiv", ArrivalStation: "Lviv"}},
		listTotal: 1,
	}
	handler := newExportHandler(repo)

	c, w := testContext(t, http.MethodGet, "/trains/export?format=csv", nil)
	asAdmin(c)
	handler.Timetable(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "timetable.csv")
	assert.True(t, strings.Contains(w.Body.String(), "IT044"))
}

func TestExportHandlerTimetableDefaultsToCSV(t *testing.T) {
	handler := newExportHandler(&stubTrainRepo{})

	c, w := testContext(t, http.MethodGet, "/trains/export", nil)
	asAdmin(c)
	handler.Timetable(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
}

func TestExportHandlerTimetableForbiddenForNonAdmin(t *testing.T) {
	handler := newExportHandler(&stubTrainRepo{})

	c, w := testContext(t, http.MethodGet, "/trains/export", nil)
	asViewer(c)
	handler.Timetable(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestExportHandlerTimetableUnknownFormat(t *testing.T) {
	handler := newExportHandler(&stubTrainRepo{})

	c, w := testContext(t, http.MethodGet, "/trains/export?format=xlsx", nil)
	asAdmin(c)
	handler.Timetable(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
