package services

import (
	"context"
	"fmt"
	"math"

	"gorm.io/gorm"

	"phishdrill/models"
	"phishdrill/utils"
)

// QuizQuestionView is a question as shown to a trainee
type QuizQuestionView struct {
	Index         int      `json:"index"`
	QuestionText  string   `json:"question_text"`
	Options       []string `json:"options"`
	Category      string   `json:"category,omitempty"`
	CorrectAnswer *int     `json:"correct_answer,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
}

type QuizView struct {
	ID           uint               `json:"id"`
	Title        string             `json:"title"`
	Description  string             `json:"description"`
	PassingScore float64            `json:"passing_score"`
	Questions    []QuizQuestionView `json:"questions"`
}

// QuizFeedback is the per-question outcome returned after a submission
type QuizFeedback struct {
	Index         int    `json:"index"`
	Answer        int    `json:"answer"`
	CorrectAnswer int    `json:"correct_answer"`
	Correct       bool   `json:"correct"`
	Explanation   string `json:"explanation,omitempty"`
}

type QuizSubmission struct {
	Result   *models.QuizResult `json:"result"`
	Feedback []QuizFeedback     `json:"feedback"`
}

type QuizService struct {
	db                  *gorm.DB
	defaultPassingScore float64
}

func NewQuizService(db *gorm.DB, defaultPassingScore float64) *QuizService {
	return &QuizService{db: db, defaultPassingScore: defaultPassingScore}
}

func (s *QuizService) List(ctx context.Context) ([]QuizView, error) {
	var quizzes []models.Quiz
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&quizzes).Error; err != nil {
		return nil, fmt.Errorf("failed to list quizzes: %w", err)
	}
	views := make([]QuizView, len(quizzes))
	for i := range quizzes {
		views[i] = s.view(&quizzes[i], false)
	}
	return views, nil
}

// Get returns a quiz. Correct answers and explanations are only included
// when withAnswers is set.
func (s *QuizService) Get(ctx context.Context, id uint, withAnswers bool) (*QuizView, error) {
	quiz, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	view := s.view(quiz, withAnswers)
	return &view, nil
}

// Submit scores one attempt and stores it. Out of range answers count as wrong.
func (s *QuizService) Submit(ctx context.Context, quizID, userID uint, answers []int) (*QuizSubmission, error) {
	quiz, err := s.load(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if len(answers) != len(quiz.Questions) {
		return nil, newValidationError("expected %d answers, got %d", len(quiz.Questions), len(answers))
	}

	score := 0
	feedback := make([]QuizFeedback, len(quiz.Questions))
	for i, q := range quiz.Questions {
		correct := answers[i] == q.CorrectAnswer
		if correct {
			score++
		}
		feedback[i] = QuizFeedback{
			Index:         i,
			Answer:        answers[i],
			CorrectAnswer: q.CorrectAnswer,
			Correct:       correct,
			Explanation:   q.Explanation,
		}
	}

	total := len(quiz.Questions)
	pct := 0.0
	if total > 0 {
		pct = math.Round(float64(score)/float64(total)*1000) / 10
	}

	result := models.QuizResult{
		QuizID:     quiz.ID,
		UserID:     userID,
		Answers:    answers,
		Score:      score,
		Total:      total,
		Percentage: pct,
		Passed:     pct >= s.passingScore(quiz),
	}
	if err := s.db.WithContext(ctx).Create(&result).Error; err != nil {
		return nil, fmt.Errorf("failed to save quiz result: %w", err)
	}
	utils.RecordQuizSubmission(result.Passed)

	return &QuizSubmission{Result: &result, Feedback: feedback}, nil
}

// Results lists stored attempts, newest first. A nil userID lists everyone's.
func (s *QuizService) Results(ctx context.Context, userID *uint) ([]models.QuizResult, error) {
	query := s.db.WithContext(ctx).Preload("Quiz").Order("created_at DESC, id DESC")
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}
	var results []models.QuizResult
	if err := query.Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to list quiz results: %w", err)
	}
	for i := range results {
		if results[i].Quiz != nil {
			results[i].Quiz.Questions = nil
		}
	}
	return results, nil
}

func (s *QuizService) load(ctx context.Context, id uint) (*models.Quiz, error) {
	var quiz models.Quiz
	if err := s.db.WithContext(ctx).First(&quiz, id).Error; err != nil {
		return nil, notFound("quiz", err)
	}
	return &quiz, nil
}

func (s *QuizService) passingScore(quiz *models.Quiz) float64 {
	if quiz.PassingScore > 0 {
		return quiz.PassingScore
	}
	return s.defaultPassingScore
}

func (s *QuizService) view(quiz *models.Quiz, withAnswers bool) QuizView {
	view := QuizView{
		ID:           quiz.ID,
		Title:        quiz.Title,
		Description:  quiz.Description,
		PassingScore: s.passingScore(quiz),
		Questions:    make([]QuizQuestionView, len(quiz.Questions)),
	}
	for i, q := range quiz.Questions {
		qv := QuizQuestionView{
			Index:        i,
			QuestionText: q.QuestionText,
			Options:      q.Options,
			Category:     q.Category,
		}
		if withAnswers {
			qv.CorrectAnswer = utils.Pointer(q.CorrectAnswer)
			qv.Explanation = q.Explanation
		}
		view.Questions[i] = qv
	}
	return view
}
