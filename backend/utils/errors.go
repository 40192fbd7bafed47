package utils

import (
	"strings"
	"time"
)

// Категории ошибок, используемые во всём приложении
const (
	ErrValidation     = "validation"
	ErrAuthentication = "authentication"
	ErrAuthorization  = "authorization"
	ErrNetwork        = "network"
	ErrDatabase       = "database"
	ErrPayment        = "payment"
	ErrSystem         = "system"
)

var categoryMessages = map[string]string{
	ErrValidation:     "Please check the entered data and try again",
	ErrAuthentication: "Please sign in to continue",
	ErrAuthorization:  "You don't have permission to perform this action",
	ErrNetwork:        "Network problem. Please check your connection and try again",
	ErrDatabase:       "Something went wrong. Please try again",
	ErrPayment:        "Payment could not be processed. Please try again",
	ErrSystem:         "Something went wrong. Please try again",
}

// UserMessage сопоставляет ошибку с фиксированным сообщением для пользователя.
// Несколько частных случаев переопределяют общее сообщение категории.
func UserMessage(category string, err error) string {
	if err != nil {
		msg := strings.ToLower(err.Error())
		switch {
		case strings.Contains(msg, "already exists"), strings.Contains(msg, "duplicate key"):
			return "This record already exists"
		case strings.Contains(msg, "rate limit"):
			return "Too many requests. Please wait a moment and try again"
		}
	}

	if m, ok := categoryMessages[category]; ok {
		return m
	}
	return categoryMessages[ErrSystem]
}

// Retry выполняет fn до maxAttempts раз с экспоненциальной задержкой
func Retry(maxAttempts int, baseDelay time.Duration, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt < maxAttempts-1 {
			time.Sleep(baseDelay * (1 << attempt))
		}
	}
	return err
}
