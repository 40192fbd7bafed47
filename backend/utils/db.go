package utils

import (
	"fmt"

	"examprep/backend/config"
	"examprep/backend/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// InitDB открывает соединение с Postgres и выполняет миграции
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.UserProgress{},
		&models.LoginHistory{},
		&models.Notification{},
		&models.MembershipPlan{},
		&models.Membership{},
		&models.Payment{},
		&models.WebhookEvent{},
		&models.Exam{},
		&models.Test{},
		&models.TestQuestion{},
		&models.TestAttempt{},
		&models.TestCompletion{},
		&models.ExamStats{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
