package controllers

import (
	"encoding/json"
	"errors"
	"strconv"

	"examprep/backend/config"
	"examprep/backend/models"
	"examprep/backend/services"
	"examprep/backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TestsController struct {
	DB         *gorm.DB
	Cfg        *config.Config
	Gatekeeper *services.GatekeeperService
	Attempts   *services.AttemptService
}

func NewTestsController(db *gorm.DB, cfg *config.Config, gatekeeper *services.GatekeeperService, attempts *services.AttemptService) *TestsController {
	return &TestsController{DB: db, Cfg: cfg, Gatekeeper: gatekeeper, Attempts: attempts}
}

func (tc *TestsController) GetAvailableTests(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, tc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	// Get query parameters
	examID := c.Query("exam_id")
	testType := c.Query("type")

	query := tc.DB.Model(&models.Test{})
	if examID != "" {
		query = query.Where("exam_id = ?", examID)
	}
	if testType != "" {
		query = query.Where("test_type = ?", testType)
	}

	var tests []models.Test
	if err := query.Order("created_at DESC").Find(&tests).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	var result []fiber.Map
	for _, test := range tests {
		var completion models.TestCompletion
		completed := tc.DB.Where("user_id = ? AND test_id = ? AND test_type = ?",
			userID, test.ID, test.TestType).First(&completion).Error == nil

		result = append(result, fiber.Map{
			"id":           test.ID,
			"exam_id":      test.ExamID,
			"title":        test.Title,
			"type":         test.TestType,
			"description":  test.ShortDesc,
			"year":         test.Year,
			"duration":     test.DurationMins,
			"questions":    test.TotalQuestions,
			"is_premium":   test.IsPremium,
			"is_completed": completed,
			"best_score":   completion.BestScore,
			"rank":         completion.Rank,
		})
	}

	return c.JSON(result)
}

func (tc *TestsController) GetTestDetails(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, tc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	testID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid test ID",
		})
	}

	var test models.Test
	if err := tc.DB.Preload("Questions").First(&test, testID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Test not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	// Premium details are gated the same way as starting the test
	decision := tc.Gatekeeper.CanUserTakeTest(userID, test.TestType, &test)

	// Parse question options from JSON string to array, correct answers
	// are not exposed before submission
	var questions []map[string]interface{}
	for _, q := range test.Questions {
		var options []string
		json.Unmarshal([]byte(q.Options), &options)

		questions = append(questions, map[string]interface{}{
			"id":       q.ID,
			"question": q.Question,
			"options":  options,
			"marks":    q.Marks,
			"order":    q.SequenceOrder,
		})
	}

	return c.JSON(fiber.Map{
		"test": fiber.Map{
			"id":          test.ID,
			"exam_id":     test.ExamID,
			"title":       test.Title,
			"type":        test.TestType,
			"description": test.ShortDesc,
			"year":        test.Year,
			"duration":    test.DurationMins,
			"is_premium":  test.IsPremium,
			"questions":   questions,
		},
		"access": decision,
	})
}

func (tc *TestsController) StartTest(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, tc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	testID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid test ID",
		})
	}

	var test models.Test
	if err := tc.DB.First(&test, testID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Test not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	decision := tc.Gatekeeper.CanUserTakeTest(userID, test.TestType, &test)
	if !decision.CanTake {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":    decision.Reason,
			"is_retry": decision.IsRetry,
		})
	}

	attempt, err := tc.Attempts.RecordTestAttempt(userID, test.ID, test.ExamID, test.TestType, test.TotalQuestions)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not start test",
		})
	}

	return c.JSON(fiber.Map{
		"message":  "Test started",
		"is_retry": decision.IsRetry,
		"attempt": fiber.Map{
			"id":         attempt.ID,
			"status":     attempt.Status,
			"started_at": attempt.StartedAt,
		},
	})
}

func (tc *TestsController) SubmitTest(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, tc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	testID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid test ID",
		})
	}

	type AnswerInput struct {
		QuestionID uint `json:"question_id"`
		Answer     int  `json:"answer"`
	}

	type SubmitInput struct {
		Answers   []AnswerInput `json:"answers"`
		TimeTaken int           `json:"time_taken"`
	}

	var input SubmitInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	var test models.Test
	if err := tc.DB.Preload("Questions").First(&test, testID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Test not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	// Score answers against the question bank
	correctAnswers := 0
	var score float64
	var totalMarks float64
	answerByQuestion := make(map[uint]int, len(input.Answers))
	for _, a := range input.Answers {
		answerByQuestion[a.QuestionID] = a.Answer
	}
	for _, q := range test.Questions {
		totalMarks += q.Marks
		if answer, ok := answerByQuestion[q.ID]; ok && answer == q.CorrectAnswer {
			correctAnswers++
			score += q.Marks
		}
	}
	if totalMarks > 0 {
		score = score / totalMarks * 100
	}

	answersJSON, _ := json.Marshal(input.Answers)

	attempt, err := tc.Attempts.SubmitTestAttempt(services.TestSubmission{
		UserID:         userID,
		TestID:         test.ID,
		TestType:       test.TestType,
		Score:          score,
		TotalQuestions: len(test.Questions),
		CorrectAnswers: correctAnswers,
		TimeTaken:      input.TimeTaken,
		Answers:        datatypes.JSON(answersJSON),
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "No test in progress",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not save submission",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Test submitted",
		"result": fiber.Map{
			"score":           attempt.Score,
			"total_questions": attempt.TotalQuestions,
			"correct_answers": attempt.CorrectAnswers,
			"time_taken":      attempt.TimeTaken,
			"completed_at":    attempt.CompletedAt,
		},
	})
}

func (tc *TestsController) GetTestResult(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, tc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	testID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid test ID",
		})
	}

	var test models.Test
	if err := tc.DB.Preload("Questions").First(&test, testID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Test not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	attempts, err := tc.Attempts.GetAttemptHistory(userID, test.ID, test.TestType)
	if err != nil || len(attempts) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Test not attempted",
		})
	}

	var latest *models.TestAttempt
	for i := range attempts {
		if attempts[i].Status == models.AttemptCompleted {
			latest = &attempts[i]
			break
		}
	}
	if latest == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Test not completed",
		})
	}

	var completion models.TestCompletion
	tc.DB.Where("user_id = ? AND test_id = ? AND test_type = ?", userID, test.ID, test.TestType).
		First(&completion)

	// Prepare questions with correct answers
	var questions []map[string]interface{}
	for _, q := range test.Questions {
		var options []string
		json.Unmarshal([]byte(q.Options), &options)

		questions = append(questions, map[string]interface{}{
			"id":             q.ID,
			"question":       q.Question,
			"options":        options,
			"correct_answer": q.CorrectAnswer,
			"marks":          q.Marks,
			"order":          q.SequenceOrder,
		})
	}

	return c.JSON(fiber.Map{
		"test": fiber.Map{
			"id":        test.ID,
			"title":     test.Title,
			"questions": questions,
		},
		"result": fiber.Map{
			"score":           latest.Score,
			"total_questions": latest.TotalQuestions,
			"correct_answers": latest.CorrectAnswers,
			"time_taken":      latest.TimeTaken,
			"completed_at":    latest.CompletedAt,
			"best_score":      completion.BestScore,
			"attempt_count":   completion.AttemptCount,
			"rank":            completion.Rank,
		},
		"history": attempts,
	})
}

func (tc *TestsController) CreateTest(c *fiber.Ctx) error {
	var test models.Test
	if err := c.BodyParser(&test); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	if test.TestType != models.TestTypeMock && test.TestType != models.TestTypePYQ && test.TestType != models.TestTypePractice {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid test type",
		})
	}

	if err := tc.DB.Create(&test).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create test",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Test created",
		"test":    test,
	})
}

func (tc *TestsController) AddQuestion(c *fiber.Ctx) error {
	testID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid test ID",
		})
	}

	var input struct {
		Question      string   `json:"question"`
		Options       []string `json:"options"`
		CorrectAnswer int      `json:"correct_answer"`
		Marks         float64  `json:"marks"`
	}

	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	var test models.Test
	if err := tc.DB.First(&test, testID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Test not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	// Validate correct answer index
	if input.CorrectAnswer < 0 || input.CorrectAnswer >= len(input.Options) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid correct answer index",
		})
	}

	// Convert options to JSON
	optionsJson, err := json.Marshal(input.Options)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not encode options",
		})
	}

	// Get current question count to set sequence order
	var questionCount int64
	tc.DB.Model(&models.TestQuestion{}).Where("test_id = ?", testID).Count(&questionCount)

	marks := input.Marks
	if marks <= 0 {
		marks = 1
	}

	question := models.TestQuestion{
		TestID:        uint(testID),
		Question:      input.Question,
		Options:       string(optionsJson),
		CorrectAnswer: input.CorrectAnswer,
		Marks:         marks,
		SequenceOrder: int(questionCount) + 1,
	}

	if err := tc.DB.Create(&question).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create question",
		})
	}

	tc.DB.Model(&test).Update("total_questions", int(questionCount)+1)

	return c.JSON(fiber.Map{
		"message":  "Question added",
		"question": question,
	})
}

// UpdateQuestionInput carries a partial question update. Pointer fields
// distinguish "set to zero" from "not sent": correct_answer 0 is a valid
// first option, so its absence cannot share a representation with it.
type UpdateQuestionInput struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer *int     `json:"correct_answer"`
	Marks         *float64 `json:"marks"`
	SequenceOrder *int     `json:"sequence_order"`
}

// applyQuestionUpdate mutates only the fields present in the input.
func applyQuestionUpdate(question *models.TestQuestion, input UpdateQuestionInput) error {
	if input.Question != "" {
		question.Question = input.Question
	}
	if input.Options != nil {
		optionsJson, err := json.Marshal(input.Options)
		if err != nil {
			return errors.New("could not encode options")
		}
		question.Options = string(optionsJson)
	}
	if input.CorrectAnswer != nil {
		if *input.CorrectAnswer < 0 {
			return errors.New("correct_answer must not be negative")
		}
		question.CorrectAnswer = *input.CorrectAnswer
	}
	if input.Marks != nil {
		question.Marks = *input.Marks
	}
	if input.SequenceOrder != nil {
		question.SequenceOrder = *input.SequenceOrder
	}
	return nil
}

func (tc *TestsController) UpdateQuestion(c *fiber.Ctx) error {
	testID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid test ID",
		})
	}

	questionID, err := strconv.Atoi(c.Params("questionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid question ID",
		})
	}

	var input UpdateQuestionInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	var question models.TestQuestion
	if err := tc.DB.Where("id = ? AND test_id = ?", questionID, testID).First(&question).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Question not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	if err := applyQuestionUpdate(&question, input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := tc.DB.Save(&question).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not update question",
		})
	}

	return c.JSON(fiber.Map{
		"message":  "Question updated",
		"question": question,
	})
}
