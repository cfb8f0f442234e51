package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"rapid-trivia-service/internal/app"
	"rapid-trivia-service/internal/domain"
)

// DefaultBatchSize is how many questions a refill asks the loader for.
const DefaultBatchSize = 10

// QuestionRepository keeps a TTL-bound pool of questions per difficulty to avoid
// hitting the loader for every round.
type QuestionRepository struct {
	loader    app.QuestionLoader
	ttl       time.Duration
	batchSize int
	clock     func() time.Time
	sf        singleflight.Group

	mu    sync.Mutex
	rnd   *rand.Rand
	pools map[domain.Difficulty]questionPool
}

type questionPool struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionRepository(loader app.QuestionLoader, ttl time.Duration, batchSize int) *QuestionRepository {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &QuestionRepository{
		loader:    loader,
		ttl:       ttl,
		batchSize: batchSize,
		clock:     time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		pools:     make(map[domain.Difficulty]questionPool),
	}
}

// NextQuestion pops the next cached question, refilling the pool once when it is empty or stale.
func (r *QuestionRepository) NextQuestion(ctx context.Context, difficulty domain.Difficulty) (domain.Question, error) {
	if q, ok := r.take(difficulty); ok {
		return q, nil
	}

	_, err, _ := r.sf.Do(string(difficulty), func() (interface{}, error) {
		// Another caller may have refilled the pool while we waited.
		if r.available(difficulty) {
			return nil, nil
		}
		questions, err := r.loader.LoadQuestions(ctx, difficulty, r.batchSize)
		if err != nil {
			return nil, err
		}
		if len(questions) == 0 {
			return nil, domain.ErrQuestionNotFound
		}

		r.mu.Lock()
		r.pools[difficulty] = questionPool{
			questions: questions,
			expiresAt: r.clock().Add(r.ttlWithJitterLocked()),
		}
		r.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	if q, ok := r.take(difficulty); ok {
		return q, nil
	}
	return domain.Question{}, domain.ErrQuestionNotFound
}

func (r *QuestionRepository) take(difficulty domain.Difficulty) (domain.Question, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pool, ok := r.pools[difficulty]
	if !ok || len(pool.questions) == 0 || r.expiredLocked(pool) {
		return domain.Question{}, false
	}
	q := pool.questions[0]
	pool.questions = pool.questions[1:]
	r.pools[difficulty] = pool
	return q, true
}

func (r *QuestionRepository) available(difficulty domain.Difficulty) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	pool, ok := r.pools[difficulty]
	return ok && len(pool.questions) > 0 && !r.expiredLocked(pool)
}

func (r *QuestionRepository) expiredLocked(pool questionPool) bool {
	return r.ttl > 0 && !pool.expiresAt.After(r.clock())
}

func (r *QuestionRepository) ttlWithJitterLocked() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
