package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phishdrill/models"
	"phishdrill/testutil"
)

func seedQuiz(t *testing.T) (*QuizService, *models.Quiz, *models.User) {
	t.Helper()
	db := testutil.NewDB(t)
	require.NoError(t, models.CreateDefaultQuizzes(db))

	var quiz models.Quiz
	require.NoError(t, db.First(&quiz).Error)

	user := &models.User{Username: "trainee", PasswordHash: "x", Role: models.RoleUser}
	require.NoError(t, db.Create(user).Error)

	return NewQuizService(db, 70), &quiz, user
}

func correctAnswers(quiz *models.Quiz) []int {
	answers := make([]int, len(quiz.Questions))
	for i, q := range quiz.Questions {
		answers[i] = q.CorrectAnswer
	}
	return answers
}

func TestQuizService_GetHidesAnswers(t *testing.T) {
	svc, quiz, _ := seedQuiz(t)
	ctx := context.Background()

	view, err := svc.Get(ctx, quiz.ID, false)
	require.NoError(t, err)
	require.NotEmpty(t, view.Questions)
	for _, q := range view.Questions {
		assert.Nil(t, q.CorrectAnswer)
		assert.Empty(t, q.Explanation)
	}

	view, err = svc.Get(ctx, quiz.ID, true)
	require.NoError(t, err)
	require.NotNil(t, view.Questions[0].CorrectAnswer)
	assert.Equal(t, quiz.Questions[0].CorrectAnswer, *view.Questions[0].CorrectAnswer)

	_, err = svc.Get(ctx, 999, false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQuizService_Submit(t *testing.T) {
	svc, quiz, user := seedQuiz(t)
	ctx := context.Background()

	t.Run("all correct passes", func(t *testing.T) {
		sub, err := svc.Submit(ctx, quiz.ID, user.ID, correctAnswers(quiz))
		require.NoError(t, err)
		assert.Equal(t, len(quiz.Questions), sub.Result.Score)
		assert.Equal(t, 100.0, sub.Result.Percentage)
		assert.True(t, sub.Result.Passed)
	})

	t.Run("out of range answers count as wrong", func(t *testing.T) {
		answers := correctAnswers(quiz)
		answers[0] = 99
		answers[1] = -1
		sub, err := svc.Submit(ctx, quiz.ID, user.ID, answers)
		require.NoError(t, err)
		assert.Equal(t, len(quiz.Questions)-2, sub.Result.Score)
		assert.False(t, sub.Feedback[0].Correct)
		assert.Equal(t, 60.0, sub.Result.Percentage)
		assert.False(t, sub.Result.Passed)
	})

	t.Run("wrong answer count", func(t *testing.T) {
		_, err := svc.Submit(ctx, quiz.ID, user.ID, []int{0})
		assert.True(t, IsValidationError(err))
	})

	results, err := svc.Results(ctx, &user.ID)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	require.NotNil(t, results[0].Quiz)
	assert.Nil(t, results[0].Quiz.Questions)

	other := uint(user.ID + 1)
	results, err = svc.Results(ctx, &other)
	require.NoError(t, err)
	assert.Empty(t, results)
}
