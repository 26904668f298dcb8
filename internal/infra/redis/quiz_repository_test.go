package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

func TestQuizRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{
		QuizLoader: memory.NewStaticQuizLoader(map[string]domain.Quiz{
			"quiz-1": sampleQuiz(),
		}),
	}
	repo := NewQuizRepository(client, loader, time.Minute)

	quiz, err := repo.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if len(quiz.Questions) != 1 || quiz.JoinCode != "HFT9DD" {
		t.Fatalf("unexpected quiz from loader: %+v", quiz)
	}

	// Second call should hit cache, loader not incremented.
	quiz, err = repo.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz cached: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	// The cache keeps the full definition, including correctness flags for scoring.
	if !quiz.Questions[0].Options[1].Correct {
		t.Fatalf("expected full quiz from cache, got %+v", quiz.Questions[0])
	}

	if !mr.Exists("quiz:quiz-1") || !mr.Exists("quiz:code:HFT9DD") {
		t.Fatalf("expected both cache keys to be set")
	}
}

func TestQuizRepositoryResolvesJoinCodeFromCache(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{
		QuizLoader: memory.NewStaticQuizLoader(map[string]domain.Quiz{
			"quiz-1": sampleQuiz(),
		}),
	}
	repo := NewQuizRepository(newClient(mr), loader, time.Minute)

	quiz, err := repo.GetQuizByJoinCode(context.Background(), "HFT9DD")
	if err != nil {
		t.Fatalf("get by join code: %v", err)
	}
	if quiz.ID != "quiz-1" || loader.calls != 1 {
		t.Fatalf("expected load once, got quiz=%s calls=%d", quiz.ID, loader.calls)
	}

	if _, err := repo.GetQuizByJoinCode(context.Background(), "HFT9DD"); err != nil {
		t.Fatalf("get by join code cached: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected code index to hit cache, loader calls=%d", loader.calls)
	}
}

type countingLoader struct {
	memory.QuizLoader
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.calls++
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func (l *countingLoader) LoadQuizByJoinCode(ctx context.Context, joinCode string) (domain.Quiz, error) {
	l.calls++
	return l.QuizLoader.LoadQuizByJoinCode(ctx, joinCode)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:       "quiz-1",
		Title:    "Sample",
		JoinCode: "HFT9DD",
		Questions: []domain.Question{
			{
				ID:   "q1",
				Text: "What is 2 + 2?",
				Type: domain.SingleChoice,
				Options: []domain.Option{
					{ID: "o1", Text: "3", Correct: false},
					{ID: "o2", Text: "4", Correct: true},
				},
				TimeLimit: 30,
			},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
