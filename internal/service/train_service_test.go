package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/train-schedule-api/internal/models"
	"github.com/noah-isme/train-schedule-api/internal/repository"
	appErrors "github.com/noah-isme/train-schedule-api/pkg/errors"
)

type mockTrainRepo struct {
	trains     map[string]models.Train
	listResp   []models.Train
	listTotal  int
	listErr    error
	lastFilter models.TrainFilter
	listCalls  int
	createErr  error
	updateErr  error
	deleted    []string
}

func (m *mockTrainRepo) List(ctx context.Context, filter models.TrainFilter) ([]models.Train, int, error) {
	m.listCalls++
	m.lastFilter = filter
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.listResp, m.listTotal, nil
}

func (m *mockTrainRepo) FindByID(ctx context.Context, id string) (*models.Train, error) {
	if train, ok := m.trains[id]; ok {
		return &train, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTrainRepo) Create(ctx context.Context, train *models.Train) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.trains == nil {
		m.trains = make(map[string]models.Train)
	}
	if train.ID == "" {
		train.ID = "generated"
	}
	m.trains[train.ID] = *train
	return nil
}

func (m *mockTrainRepo) Update(ctx context.Context, train *models.Train) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.trains[train.ID] = *train
	return nil
}

func (m *mockTrainRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.trains, id)
	return nil
}

type mockListingCache struct {
	pages    map[string]*models.TrainPage
	setKeys  []string
	patterns []string
}

func (m *mockListingCache) Get(ctx context.Context, key string, dest interface{}) error {
	if page, ok := m.pages[key]; ok {
		*dest.(*models.TrainPage) = *page
		return nil
	}
	return appErrors.ErrCacheMiss
}

func (m *mockListingCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.pages == nil {
		m.pages = make(map[string]*models.TrainPage)
	}
	m.pages[key] = value.(*models.TrainPage)
	m.setKeys = append(m.setKeys, key)
	return nil
}

func (m *mockListingCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	m.pages = nil
	return nil
}

type mockMetrics struct {
	hits      int
	misses    int
	dbQueries []string
}

func (m *mockMetrics) RecordCacheOperation(hit bool, duration time.Duration) {
	if hit {
		m.hits++
	} else {
		m.misses++
	}
}

func (m *mockMetrics) ObserveDBQuery(label string, duration time.Duration) {
	m.dbQueries = append(m.dbQueries, label)
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "u-1", Username: "admin", IsAdmin: true}
}

func viewerClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "u-2", Username: "viewer", IsAdmin: false}
}

func sampleTrain(id, number string) models.Train {
	return models.Train{
		ID:               id,
		TrainNumber:      number,
		DepartureStation: "Kyiv",
		ArrivalStation:   "Lviv",
		DepartureTime:    time.Date(2023, 10, 1, 12, 0, 0, 0, time.UTC),
		ArrivalTime:      time.Date(2023, 10, 1, 17, 0, 0, 0, time.UTC),
		Platform:         "Platform 1",
		Status:           models.TrainStatusScheduled,
		Type:             models.TrainTypePassenger,
	}
}

func errCode(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	return appErrors.FromError(err).Code
}

func TestTrainServiceListAppliesDefaults(t *testing.T) {
	repo := &mockTrainRepo{listResp: []models.Train{sampleTrain("id-1", "IT044")}, listTotal: 1}
	svc := NewTrainService(repo, nil, nil, validator.New(), zap.NewNop(), 0)

	page, err := svc.List(context.Background(), models.TrainFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.lastFilter.Page)
	assert.Equal(t, 10, repo.lastFilter.Limit)
	assert.Equal(t, "departure_time", repo.lastFilter.SortBy)
	assert.Equal(t, "asc", repo.lastFilter.SortOrder)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 10, page.Limit)
	assert.Len(t, page.Data, 1)
}

func TestTrainServiceListRejectsInvalidFilterBeforeStore(t *testing.T) {
	repo := &mockTrainRepo{}
	svc := NewTrainService(repo, nil, nil, validator.New(), zap.NewNop(), 0)

	_, err := svc.List(context.Background(), models.TrainFilter{Page: -1})
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(t, err))
	assert.Zero(t, repo.listCalls)

	_, err = svc.List(context.Background(), models.TrainFilter{SortBy: "password"})
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(t, err))
	assert.Zero(t, repo.listCalls)
}

func TestTrainServiceListPageBeyondEnd(t *testing.T) {
	repo := &mockTrainRepo{listResp: nil, listTotal: 3}
	svc := NewTrainService(repo, nil, nil, validator.New(), zap.NewNop(), 0)

	page, err := svc.List(context.Background(), models.TrainFilter{Page: 9, Limit: 10})
	require.NoError(t, err)
	assert.NotNil(t, page.Data)
	assert.Empty(t, page.Data)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 9, page.Page)
}

func TestTrainServiceListUsesCache(t *testing.T) {
	repo := &mockTrainRepo{listResp: []models.Train{sampleTrain("id-1", "IT044")}, listTotal: 1}
	cache := &mockListingCache{}
	svc := NewTrainService(repo, cache, nil, validator.New(), zap.NewNop(), time.Minute)

	first, err := svc.List(context.Background(), models.TrainFilter{Search: "Kyiv"})
	require.NoError(t, err)
	require.Len(t, cache.setKeys, 1)

	second, err := svc.List(context.Background(), models.TrainFilter{Search: "Kyiv"})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.listCalls)
	assert.Equal(t, first.Total, second.Total)
}

func TestTrainServiceListRecordsMetrics(t *testing.T) {
	repo := &mockTrainRepo{listResp: []models.Train{sampleTrain("id-1", "IT044")}, listTotal: 1}
	cache := &mockListingCache{}
	metrics := &mockMetrics{}
	svc := NewTrainService(repo, cache, metrics, validator.New(), zap.NewNop(), time.Minute)

	_, err := svc.List(context.Background(), models.TrainFilter{})
	require.NoError(t, err)
	_, err = svc.List(context.Background(), models.TrainFilter{})
	require.NoError(t, err)

	assert.Equal(t, 1, metrics.misses)
	assert.Equal(t, 1, metrics.hits)
	assert.Equal(t, []string{"train_list"}, metrics.dbQueries)
}

func TestTrainServiceListCacheKeyUnambiguousAcrossFields(t *testing.T) {
	a := models.TrainFilter{Search: "a|b", TrainNumber: "c"}
	b := models.TrainFilter{Search: "a", TrainNumber: "b|c"}
	require.NoError(t, a.Normalize())
	require.NoError(t, b.Normalize())
	assert.NotEqual(t, listCacheKey(a), listCacheKey(b))

	repo := &mockTrainRepo{listResp: []models.Train{sampleTrain("id-1", "IT044")}, listTotal: 1}
	cache := &mockListingCache{}
	svc := NewTrainService(repo, cache, nil, validator.New(), zap.NewNop(), time.Minute)

	first, err := svc.List(context.Background(), models.TrainFilter{Search: "a|b", TrainNumber: "c"})
	require.NoError(t, err)
	require.Len(t, first.Data, 1)

	repo.listResp = []models.Train{sampleTrain("id-2", "IC102")}
	second, err := svc.List(context.Background(), models.TrainFilter{Search: "a", TrainNumber: "b|c"})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls)
	require.Len(t, second.Data, 1)
	assert.Equal(t, "IC102", second.Data[0].TrainNumber)
}

func TestTrainServiceListCacheKeyVariesWithFilter(t *testing.T) {
	repo := &mockTrainRepo{listResp: []models.Train{sampleTrain("id-1", "IT044")}, listTotal: 1}
	cache := &mockListingCache{}
	svc := NewTrainService(repo, cache, nil, validator.New(), zap.NewNop(), time.Minute)

	_, err := svc.List(context.Background(), models.TrainFilter{Search: "Kyiv"})
	require.NoError(t, err)
	_, err = svc.List(context.Background(), models.TrainFilter{Search: "Lviv"})
	require.NoError(t, err)

	assert.Equal(t, 2, repo.listCalls)
	require.Len(t, cache.setKeys, 2)
	assert.NotEqual(t, cache.setKeys[0], cache.setKeys[1])
}

func TestTrainServiceCreateRequiresAdmin(t *testing.T) {
	svc := NewTrainService(&mockTrainRepo{}, nil, nil, validator.New(), zap.NewNop(), 0)

	req := CreateTrainRequest{
		TrainNumber:      "IT044",
		DepartureStation: "Kyiv",
		ArrivalStation:   "Lviv",
		DepartureTime:    time.Now(),
		ArrivalTime:      time.Now().Add(time.Hour),
		Platform:         "Platform 1",
	}

	_, err := svc.Create(context.Background(), req, nil)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, errCode(t, err))

	_, err = svc.Create(context.Background(), req, viewerClaims())
	assert.Equal(t, appErrors.ErrForbidden.Code, errCode(t, err))
}

func TestTrainServiceCreateAppliesDefaults(t *testing.T) {
	repo := &mockTrainRepo{}
	svc := NewTrainService(repo, nil, nil, validator.New(), zap.NewNop(), 0)

	train, err := svc.Create(context.Background(), CreateTrainRequest{
		TrainNumber:      "IT044",
		DepartureStation: "Kyiv",
		ArrivalStation:   "Lviv",
		DepartureTime:    time.Now(),
		ArrivalTime:      time.Now().Add(time.Hour),
		Platform:         "Platform 1",
	}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, models.TrainStatusScheduled, train.Status)
	assert.Equal(t, models.TrainTypePassenger, train.Type)
	assert.NotEmpty(t, train.ID)
}

func TestTrainServiceCreateRejectsInvalidPayload(t *testing.T) {
	repo := &mockTrainRepo{}
	svc := NewTrainService(repo, nil, nil, validator.New(), zap.NewNop(), 0)

	_, err := svc.Create(context.Background(), CreateTrainRequest{TrainNumber: "IT044"}, adminClaims())
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(t, err))

	_, err = svc.Create(context.Background(), CreateTrainRequest{
		TrainNumber:      "IT044",
		DepartureStation: "Kyiv",
		ArrivalStation:   "Lviv",
		DepartureTime:    time.Now(),
		ArrivalTime:      time.Now(),
		Platform:         "Platform 1",
		Status:           "parked",
	}, adminClaims())
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(t, err))
}

func TestTrainServiceCreateDuplicateNumberConflicts(t *testing.T) {
	repo := &mockTrainRepo{createErr: repository.ErrDuplicateTrainNumber}
	svc := NewTrainService(repo, nil, nil, validator.New(), zap.NewNop(), 0)

	_, err := svc.Create(context.Background(), CreateTrainRequest{
		TrainNumber:      "IT044",
		DepartureStation: "Kyiv",
		ArrivalStation:   "Lviv",
		DepartureTime:    time.Now(),
		ArrivalTime:      time.Now().Add(time.Hour),
		Platform:         "Platform 1",
	}, adminClaims())
	assert.Equal(t, appErrors.ErrConflict.Code, errCode(t, err))
}

func TestTrainServiceCreateInvalidatesListingCache(t *testing.T) {
	repo := &mockTrainRepo{}
	cache := &mockListingCache{}
	svc := NewTrainService(repo, cache, nil, validator.New(), zap.NewNop(), 0)

	_, err := svc.Create(context.Background(), CreateTrainRequest{
		TrainNumber:      "IT044",
		DepartureStation: "Kyiv",
		ArrivalStation:   "Lviv",
		DepartureTime:    time.Now(),
		ArrivalTime:      time.Now().Add(time.Hour),
		Platform:         "Platform 1",
	}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, []string{"trains:list:*"}, cache.patterns)
}

func TestTrainServiceGetNotFound(t *testing.T) {
	svc := NewTrainService(&mockTrainRepo{}, nil, nil, validator.New(), zap.NewNop(), 0)

	_, err := svc.Get(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(t, err))
}

func TestTrainServiceUpdateMergesOnlySuppliedFields(t *testing.T) {
	stored := sampleTrain("id-1", "IT044")
	repo := &mockTrainRepo{trains: map[string]models.Train{"id-1": stored}}
	svc := NewTrainService(repo, nil, nil, validator.New(), zap.NewNop(), 0)

	delayed := models.TrainStatusDelayed
	updated, err := svc.Update(context.Background(), "id-1", UpdateTrainRequest{Status: &delayed}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, models.TrainStatusDelayed, updated.Status)
	assert.Equal(t, stored.TrainNumber, updated.TrainNumber)
	assert.Equal(t, stored.DepartureStation, updated.DepartureStation)
	assert.Equal(t, stored.ArrivalStation, updated.ArrivalStation)
	assert.Equal(t, stored.DepartureTime, updated.DepartureTime)
	assert.Equal(t, stored.ArrivalTime, updated.ArrivalTime)
	assert.Equal(t, stored.Platform, updated.Platform)
	assert.Equal(t, stored.Type, updated.Type)
}

func TestTrainServiceUpdateNotFound(t *testing.T) {
	svc := NewTrainService(&mockTrainRepo{}, nil, nil, validator.New(), zap.NewNop(), 0)

	delayed := models.TrainStatusDelayed
	_, err := svc.Update(context.Background(), "missing", UpdateTrainRequest{Status: &delayed}, adminClaims())
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(t, err))
}

func TestTrainServiceUpdateDuplicateNumberConflicts(t *testing.T) {
	repo := &mockTrainRepo{
		trains:    map[string]models.Train{"id-1": sampleTrain("id-1", "IT044")},
		updateErr: repository.ErrDuplicateTrainNumber,
	}
	svc := NewTrainService(repo, nil, nil, validator.New(), zap.NewNop(), 0)

	number := "IT045"
	_, err := svc.Update(context.Background(), "id-1", UpdateTrainRequest{TrainNumber: &number}, adminClaims())
	assert.Equal(t, appErrors.ErrConflict.Code, errCode(t, err))
}

func TestTrainServiceDelete(t *testing.T) {
	repo := &mockTrainRepo{trains: map[string]models.Train{"id-1": sampleTrain("id-1", "IT044")}}
	svc := NewTrainService(repo, nil, nil, validator.New(), zap.NewNop(), 0)

	require.NoError(t, svc.Delete(context.Background(), "id-1", adminClaims()))
	assert.Equal(t, []string{"id-1"}, repo.deleted)

	err := svc.Delete(context.Background(), "id-1", adminClaims())
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(t, err))
}

func TestTrainServiceDeleteRequiresAdmin(t *testing.T) {
	repo := &mockTrainRepo{trains: map[string]models.Train{"id-1": sampleTrain("id-1", "IT044")}}
	svc := NewTrainService(repo, nil, nil, validator.New(), zap.NewNop(), 0)

	err := svc.Delete(context.Background(), "id-1", viewerClaims())
	assert.Equal(t, appErrors.ErrForbidden.Code, errCode(t, err))
	assert.Empty(t, repo.deleted)
}
