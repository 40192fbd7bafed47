package controllers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"examprep/backend/models"
)

func sampleQuestion() models.TestQuestion {
	return models.TestQuestion{
		TestID:        1,
		Question:      "Which article abolishes untouchability?",
		Options:       `["Article 15","Article 17","Article 19","Article 21"]`,
		CorrectAnswer: 1,
		Marks:         2,
		SequenceOrder: 3,
	}
}

func TestApplyQuestionUpdatePartialBody(t *testing.T) {
	question := sampleQuestion()

	// Only the text is sent; everything else stays untouched.
	var input UpdateQuestionInput
	err := json.Unmarshal([]byte(`{"question":"Reworded question"}`), &input)
	assert.NoError(t, err)

	err = applyQuestionUpdate(&question, input)
	assert.NoError(t, err)
	assert.Equal(t, "Reworded question", question.Question)
	assert.Equal(t, 1, question.CorrectAnswer, "absent correct_answer must not be reset")
	assert.Equal(t, float64(2), question.Marks)
	assert.Equal(t, 3, question.SequenceOrder)
}

func TestApplyQuestionUpdateExplicitZeroAnswer(t *testing.T) {
	question := sampleQuestion()

	var input UpdateQuestionInput
	err := json.Unmarshal([]byte(`{"correct_answer":0}`), &input)
	assert.NoError(t, err)

	err = applyQuestionUpdate(&question, input)
	assert.NoError(t, err)
	assert.Equal(t, 0, question.CorrectAnswer, "option 0 is a legal answer")
}

func TestApplyQuestionUpdateRejectsNegativeAnswer(t *testing.T) {
	question := sampleQuestion()

	var input UpdateQuestionInput
	err := json.Unmarshal([]byte(`{"correct_answer":-1}`), &input)
	assert.NoError(t, err)

	err = applyQuestionUpdate(&question, input)
	assert.Error(t, err)
	assert.Equal(t, 1, question.CorrectAnswer)
}

func TestApplyQuestionUpdateReplacesOptions(t *testing.T) {
	question := sampleQuestion()

	var input UpdateQuestionInput
	err := json.Unmarshal([]byte(`{"options":["Yes","No"],"marks":1.5}`), &input)
	assert.NoError(t, err)

	err = applyQuestionUpdate(&question, input)
	assert.NoError(t, err)
	assert.Equal(t, `["Yes","No"]`, question.Options)
	assert.Equal(t, 1.5, question.Marks)
}
