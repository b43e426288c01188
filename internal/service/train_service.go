package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/train-schedule-api/internal/models"
	"github.com/noah-isme/train-schedule-api/internal/repository"
	appErrors "github.com/noah-isme/train-schedule-api/pkg/errors"
)

type trainRepository interface {
	List(ctx context.Context, filter models.TrainFilter) ([]models.Train, int, error)
	FindByID(ctx context.Context, id string) (*models.Train, error)
	Create(ctx context.Context, train *models.Train) error
	Update(ctx context.Context, train *models.Train) error
	Delete(ctx context.Context, id string) error
}

type listingCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type metricsObserver interface {
	RecordCacheOperation(hit bool, duration time.Duration)
	ObserveDBQuery(label string, duration time.Duration)
}

// CreateTrainRequest holds payload for creating trains.
type CreateTrainRequest struct {
	TrainNumber      string             `json:"train_number" validate:"required"`
	DepartureStation string             `json:"departure_station" validate:"required"`
	ArrivalStation   string             `json:"arrival_station" validate:"required"`
	DepartureTime    time.Time          `json:"departure_time" validate:"required"`
	ArrivalTime      time.Time          `json:"arrival_time" validate:"required"`
	Platform         string             `json:"platform" validate:"required"`
	Status           models.TrainStatus `json:"status" validate:"omitempty,oneof=scheduled delayed cancelled arrived departed"`
	Type             models.TrainType   `json:"type" validate:"omitempty,oneof=passenger freight express"`
}

// UpdateTrainRequest holds a partial payload for updating trains. Nil fields
// leave the stored value unchanged.
type UpdateTrainRequest struct {
	TrainNumber      *string             `json:"train_number" validate:"omitempty,min=1"`
	DepartureStation *string             `json:"departure_station" validate:"omitempty,min=1"`
	ArrivalStation   *string             `json:"arrival_station" validate:"omitempty,min=1"`
	DepartureTime    *time.Time          `json:"departure_time"`
	ArrivalTime      *time.Time          `json:"arrival_time"`
	Platform         *string             `json:"platform" validate:"omitempty,min=1"`
	Status           *models.TrainStatus `json:"status" validate:"omitempty,oneof=scheduled delayed cancelled arrived departed"`
	Type             *models.TrainType   `json:"type" validate:"omitempty,oneof=passenger freight express"`
}

// TrainService handles train schedule use-cases. Mutations require the admin
// capability carried by the caller's claims; reads are unrestricted.
type TrainService struct {
	repo      trainRepository
	cache     listingCache
	metrics   metricsObserver
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// NewTrainService constructs the train service. Cache and metrics may be nil.
func NewTrainService(repo trainRepository, cache listingCache, metrics metricsObserver, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *TrainService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &TrainService{repo: repo, cache: cache, metrics: metrics, validator: validate, logger: logger, cacheTTL: cacheTTL}
}

// List returns one page of trains matching the filter. The filter is
// normalized and validated before any store access.
func (s *TrainService) List(ctx context.Context, filter models.TrainFilter) (*models.TrainPage, error) {
	if err := filter.Normalize(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	key := listCacheKey(filter)
	if s.cache != nil && key != "" {
		var cached models.TrainPage
		start := time.Now()
		err := s.cache.Get(ctx, key, &cached)
		if s.metrics != nil {
			s.metrics.RecordCacheOperation(err == nil, time.Since(start))
		}
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("train list cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	queryStart := time.Now()
	trains, total, err := s.repo.List(ctx, filter)
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("train_list", time.Since(queryStart))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list trains")
	}
	if trains == nil {
		trains = []models.Train{}
	}

	page := &models.TrainPage{Data: trains, Total: total, Page: filter.Page, Limit: filter.Limit}

	if s.cache != nil && key != "" {
		if err := s.cache.Set(ctx, key, page, s.cacheTTL); err != nil {
			s.logger.Warn("train list cache write failed", zap.String("key", key), zap.Error(err))
		}
	}

	return page, nil
}

// Get returns a single train by id.
func (s *TrainService) Get(ctx context.Context, id string) (*models.Train, error) {
	train, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "train not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load train")
	}
	return train, nil
}

// Create persists a new train record. Requires the admin capability.
func (s *TrainService) Create(ctx context.Context, req CreateTrainRequest, actor *models.JWTClaims) (*models.Train, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid train payload")
	}

	status := req.Status
	if status == "" {
		status = models.TrainStatusScheduled
	}
	trainType := req.Type
	if trainType == "" {
		trainType = models.TrainTypePassenger
	}

	train := &models.Train{
		TrainNumber:      req.TrainNumber,
		DepartureStation: req.DepartureStation,
		ArrivalStation:   req.ArrivalStation,
		DepartureTime:    req.DepartureTime,
		ArrivalTime:      req.ArrivalTime,
		Platform:         req.Platform,
		Status:           status,
		Type:             trainType,
	}
	if err := s.repo.Create(ctx, train); err != nil {
		if errors.Is(err, repository.ErrDuplicateTrainNumber) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "train number already in use")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create train")
	}

	s.invalidateListings(ctx)
	return train, nil
}

// Update merges the supplied fields onto the stored train and persists the
// result. Requires the admin capability.
func (s *TrainService) Update(ctx context.Context, id string, req UpdateTrainRequest, actor *models.JWTClaims) (*models.Train, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid train payload")
	}

	train, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "train not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load train")
	}

	if req.TrainNumber != nil {
		train.TrainNumber = *req.TrainNumber
	}
	if req.DepartureStation != nil {
		train.DepartureStation = *req.DepartureStation
	}
	if req.ArrivalStation != nil {
		train.ArrivalStation = *req.ArrivalStation
	}
	if req.DepartureTime != nil {
		train.DepartureTime = *req.DepartureTime
	}
	if req.ArrivalTime != nil {
		train.ArrivalTime = *req.ArrivalTime
	}
	if req.Platform != nil {
		train.Platform = *req.Platform
	}
	if req.Status != nil {
		train.Status = *req.Status
	}
	if req.Type != nil {
		train.Type = *req.Type
	}

	if err := s.repo.Update(ctx, train); err != nil {
		if errors.Is(err, repository.ErrDuplicateTrainNumber) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "train number already in use")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update train")
	}

	s.invalidateListings(ctx)
	return train, nil
}

// Delete removes a train after confirming it exists. Requires the admin
// capability.
func (s *TrainService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "train not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load train")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete train")
	}

	s.invalidateListings(ctx)
	return nil
}

func (s *TrainService) invalidateListings(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "trains:list:*"); err != nil {
		s.logger.Warn("train list cache invalidation failed", zap.Error(err))
	}
}

func requireAdmin(actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if !actor.IsAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "admin privileges required")
	}
	return nil
}

// listCacheKey hashes the JSON encoding of the filter so two distinct
// filters can never share a key, whatever characters their values contain.
func listCacheKey(f models.TrainFilter) string {
	raw, err := json.Marshal(f)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return "trains:list:" + hex.EncodeToString(sum[:8])
}
