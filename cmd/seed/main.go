package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/train-schedule-api/internal/models"
	"github.com/noah-isme/train-schedule-api/internal/repository"
	"github.com/noah-isme/train-schedule-api/pkg/config"
	"github.com/noah-isme/train-schedule-api/pkg/database"
	"github.com/noah-isme/train-schedule-api/pkg/logger"
)

var stations = []string{
	"Kyiv", "Lviv", "Kharkiv", "Odesa", "Dnipro",
	"Zaporizhzhia", "Vinnytsia", "Poltava", "Chernihiv", "Ivano-Frankivsk",
}

var statuses = []models.TrainStatus{
	models.TrainStatusScheduled,
	models.TrainStatusDelayed,
	models.TrainStatusCancelled,
	models.TrainStatusArrived,
	models.TrainStatusDeparted,
}

var types = []models.TrainType{
	models.TrainTypePassenger,
	models.TrainTypeFreight,
	models.TrainTypeExpress,
}

const trainCount = 10

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck
	sugar := logr.Sugar()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		sugar.Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	userRepo := repository.NewUserRepository(db)
	trainRepo := repository.NewTrainRepository(db)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	if _, err := userRepo.FindByUsername(ctx, "admin"); err == nil {
		sugar.Infow("admin user already present, skipping user seed")
	} else {
		hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
		if err != nil {
			sugar.Fatalw("failed to hash password", "error", err)
		}
		admin := &models.User{
			Username:     "admin",
			PasswordHash: string(hash),
			Email:        "admin@example.com",
			IsAdmin:      true,
		}
		if err := userRepo.Create(ctx, admin); err != nil {
			sugar.Fatalw("failed to seed admin user", "error", err)
		}
		sugar.Infow("seeded admin user", "username", admin.Username)
	}

	var total int
	if err := db.GetContext(ctx, &total, "SELECT COUNT(*) FROM trains"); err != nil {
		sugar.Fatalw("failed to count trains", "error", err)
	}
	if total > 0 {
		sugar.Infow("trains already present, skipping train seed", "count", total)
		return
	}

	for i := 0; i < trainCount; i++ {
		train := randomTrain(rng, i)
		if err := trainRepo.Create(ctx, train); err != nil {
			sugar.Fatalw("failed to seed train", "train_number", train.TrainNumber, "error", err)
		}
	}
	sugar.Infow("seeded trains", "count", trainCount)
}

func randomTrain(rng *rand.Rand, n int) *models.Train {
	from := rng.Intn(len(stations))
	to := rng.Intn(len(stations))
	for to == from {
		to = rng.Intn(len(stations))
	}

	departure := time.Now().Add(time.Duration(rng.Intn(14*24)) * time.Hour).Truncate(time.Minute)
	arrival := departure.Add(time.Duration(2+rng.Intn(10)) * time.Hour)

	return &models.Train{
		TrainNumber:      fmt.Sprintf("%03d%s", n+1, string(rune('A'+rng.Intn(26)))),
		DepartureStation: stations[from],
		ArrivalStation:   stations[to],
		DepartureTime:    departure,
		ArrivalTime:      arrival,
		Platform:         fmt.Sprintf("Platform %d", 1+rng.Intn(8)),
		Status:           statuses[rng.Intn(len(statuses))],
		Type:             types[rng.Intn(len(types))],
	}
}
