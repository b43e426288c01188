package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/train-schedule-api/internal/models"
	"github.com/noah-isme/train-schedule-api/internal/query"
)

// ErrDuplicateTrainNumber reports a unique constraint violation on train_number.
var ErrDuplicateTrainNumber = errors.New("train number already exists")

const trainColumns = "id, train_number, departure_station, arrival_station, departure_time, arrival_time, platform, status, type, created_at, updated_at"

// TrainRepository manages persistence for train schedule records.
type TrainRepository struct {
	db *sqlx.DB
}

// NewTrainRepository constructs a TrainRepository.
func NewTrainRepository(db *sqlx.DB) *TrainRepository {
	return &TrainRepository{db: db}
}

// buildTrainPredicate assembles the conjunction of all present filter terms.
// The search group narrows results alongside per-field filters, it does not
// replace them. Absent criteria contribute no term.
func buildTrainPredicate(f models.TrainFilter) (query.Node, error) {
	var terms []query.Node

	if f.Search != "" {
		terms = append(terms, query.Or(
			query.Contains("train_number", f.Search),
			query.Contains("departure_station", f.Search),
			query.Contains("arrival_station", f.Search),
			query.Contains("platform", f.Search),
		))
	}

	if f.TrainNumber != "" {
		terms = append(terms, query.Contains("train_number", f.TrainNumber))
	}
	if f.DepartureStation != "" {
		terms = append(terms, query.Contains("departure_station", f.DepartureStation))
	}
	if f.ArrivalStation != "" {
		terms = append(terms, query.Contains("arrival_station", f.ArrivalStation))
	}
	if f.Platform != "" {
		terms = append(terms, query.Contains("platform", f.Platform))
	}
	if f.Status != "" {
		terms = append(terms, query.Equals("status", string(f.Status)))
	}
	if f.Type != "" {
		terms = append(terms, query.Equals("type", string(f.Type)))
	}

	if f.DepartureDate != "" {
		start, end, err := models.DayRange(f.DepartureDate)
		if err != nil {
			return nil, fmt.Errorf("departure date filter: %w", err)
		}
		terms = append(terms, query.Between("departure_time", start, end))
	}
	if f.ArrivalDate != "" {
		start, end, err := models.DayRange(f.ArrivalDate)
		if err != nil {
			return nil, fmt.Errorf("arrival date filter: %w", err)
		}
		terms = append(terms, query.Between("arrival_time", start, end))
	}

	return query.And(terms...), nil
}

// List returns one page of trains matching the filter plus the total count of
// matching rows. The count honors the predicate and ignores pagination.
func (r *TrainRepository) List(ctx context.Context, filter models.TrainFilter) ([]models.Train, int, error) {
	pred, err := buildTrainPredicate(filter)
	if err != nil {
		return nil, 0, err
	}

	base := "FROM trains"
	where, args := query.Compile(pred)
	if where != "" {
		base = base + " WHERE " + where
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"train_number":      "train_number",
		"departure_station": "departure_station",
		"arrival_station":   "arrival_station",
		"departure_time":    "departure_time",
		"arrival_time":      "arrival_time",
		"platform":          "platform",
		"status":            "status",
		"type":              "type",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "departure_time"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = models.DefaultLimit
	}
	offset := (page - 1) * limit

	// id is the secondary key so pages stay stable when the sort column ties.
	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, id ASC LIMIT %d OFFSET %d",
		trainColumns, base, column, order, limit, offset)

	var trains []models.Train
	if err := r.db.SelectContext(ctx, &trains, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list trains: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + base
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count trains: %w", err)
	}

	return trains, total, nil
}

// FindByID fetches a train by identifier.
func (r *TrainRepository) FindByID(ctx context.Context, id string) (*models.Train, error) {
	query := fmt.Sprintf("SELECT %s FROM trains WHERE id = $1 LIMIT 1", trainColumns)
	var train models.Train
	if err := r.db.GetContext(ctx, &train, query, id); err != nil {
		return nil, err
	}
	return &train, nil
}

// Create inserts a new train record.
func (r *TrainRepository) Create(ctx context.Context, train *models.Train) error {
	if train.ID == "" {
		train.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if train.CreatedAt.IsZero() {
		train.CreatedAt = now
	}
	train.UpdatedAt = now
	const query = `INSERT INTO trains (id, train_number, departure_station, arrival_station, departure_time, arrival_time, platform, status, type, created_at, updated_at)
        VALUES (:id, :train_number, :departure_station, :arrival_station, :departure_time, :arrival_time, :platform, :status, :type, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, train); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateTrainNumber
		}
		return fmt.Errorf("create train: %w", err)
	}
	return nil
}

// Update replaces all mutable fields of an existing train.
func (r *TrainRepository) Update(ctx context.Context, train *models.Train) error {
	train.UpdatedAt = time.Now().UTC()
	const query = `UPDATE trains SET train_number = :train_number, departure_station = :departure_station, arrival_station = :arrival_station, departure_time = :departure_time, arrival_time = :arrival_time, platform = :platform, status = :status, type = :type, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, train); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateTrainNumber
		}
		return fmt.Errorf("update train: %w", err)
	}
	return nil
}

// Delete removes a train record permanently.
func (r *TrainRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM trains WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete train: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
