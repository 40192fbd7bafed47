package utils

import (
	"errors"

	"examprep/backend/models"

	"gorm.io/gorm"
)

// SeedPlans заполняет справочник тарифов при первом запуске
func SeedPlans(db *gorm.DB) error {
	plans := []models.MembershipPlan{
		{
			Name:         models.PlanFree,
			DisplayName:  "Free",
			Price:        0,
			Currency:     "INR",
			DurationDays: 0,
			MaxTests:     0,
		},
		{
			Name:         models.PlanPro,
			DisplayName:  "Pro",
			Price:        29900, // paise
			Currency:     "INR",
			DurationDays: 30,
			MaxTests:     11,
		},
		{
			Name:         models.PlanProPlus,
			DisplayName:  "Pro+",
			Price:        49900,
			Currency:     "INR",
			DurationDays: 30,
			MaxTests:     999999,
		},
	}

	for _, plan := range plans {
		var existing models.MembershipPlan
		err := db.Where("name = ?", plan.Name).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := db.Create(&plan).Error; err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
	}

	return nil
}
