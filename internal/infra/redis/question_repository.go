package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"rapid-trivia-service/internal/app"
	"rapid-trivia-service/internal/domain"
)

// QuestionRepository queues questions in Redis (one list per difficulty) and refills
// the queue from a loader when it runs dry:
//
//	RPUSH trivia:questions:{difficulty} {json}...
//	LPOP  trivia:questions:{difficulty}
//
// Several instances can share the queue, so a question is served at most once.
type QuestionRepository struct {
	client    *redis.Client
	loader    app.QuestionLoader
	ttl       time.Duration
	batchSize int
	sf        singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionRepository(client *redis.Client, loader app.QuestionLoader, ttl time.Duration, batchSize int) *QuestionRepository {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &QuestionRepository{
		client:    client,
		loader:    loader,
		ttl:       ttl,
		batchSize: batchSize,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) NextQuestion(ctx context.Context, difficulty domain.Difficulty) (domain.Question, error) {
	key := r.key(difficulty)
	if q, ok := r.pop(ctx, key); ok {
		return q, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check the queue in case another goroutine filled it.
		if n, err := r.client.LLen(ctx, key).Result(); err == nil && n > 0 {
			return []domain.Question(nil), nil
		}

		questions, err := r.loader.LoadQuestions(ctx, difficulty, r.batchSize)
		if err != nil {
			return nil, err
		}
		if len(questions) == 0 {
			return nil, domain.ErrQuestionNotFound
		}

		pipe := r.client.Pipeline()
		for _, q := range questions {
			payload, err := json.Marshal(q)
			if err != nil {
				return nil, err
			}
			pipe.RPush(ctx, key, payload)
		}
		if ttl := r.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		// best-effort; the loaded batch still serves this call if Redis is unavailable
		_, _ = pipe.Exec(ctx)
		return questions, nil
	})
	if err != nil {
		return domain.Question{}, err
	}

	if q, ok := r.pop(ctx, key); ok {
		return q, nil
	}
	if questions, _ := result.([]domain.Question); len(questions) > 0 {
		return questions[0], nil
	}
	return domain.Question{}, domain.ErrQuestionNotFound
}

func (r *QuestionRepository) pop(ctx context.Context, key string) (domain.Question, bool) {
	payload, err := r.client.LPop(ctx, key).Bytes()
	if err != nil {
		return domain.Question{}, false
	}
	var q domain.Question
	if err := json.Unmarshal(payload, &q); err != nil {
		return domain.Question{}, false
	}
	return q, true
}

func (r *QuestionRepository) key(difficulty domain.Difficulty) string {
	return "trivia:questions:" + string(difficulty)
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
