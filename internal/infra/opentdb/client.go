package opentdb

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"rapid-trivia-service/internal/domain"
)

// DefaultBaseURL is the public Open Trivia Database endpoint.
const DefaultBaseURL = "https://opentdb.com/api.php"

// maxAmount is the largest batch the API serves per request.
const maxAmount = 50

// Client loads questions from the Open Trivia Database.
type Client struct {
	baseURL string
	timeout time.Duration
	client  *fasthttp.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying fasthttp client, e.g. for an in-memory listener in tests.
func WithHTTPClient(hc *fasthttp.Client) Option {
	return func(c *Client) { c.client = hc }
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL: baseURL,
		timeout: timeout,
		client: &fasthttp.Client{
			MaxConnsPerHost:     16,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: time.Minute,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiResponse struct {
	ResponseCode int         `json:"response_code"`
	Results      []apiResult `json:"results"`
}

type apiResult struct {
	Type          string `json:"type"`
	Difficulty    string `json:"difficulty"`
	Category      string `json:"category"`
	Question      string `json:"question"`
	CorrectAnswer string `json:"correct_answer"`
}

// Response codes documented by the API.
const (
	codeSuccess   = 0
	codeNoResults = 1
	codeRateLimit = 5
)

// LoadQuestions fetches up to n questions of one difficulty. HTML entities in every
// text field are decoded, and only true/false questions keep the boolean kind.
func (c *Client) LoadQuestions(ctx context.Context, difficulty domain.Difficulty, n int) ([]domain.Question, error) {
	if n <= 0 {
		n = 1
	}
	if n > maxAmount {
		n = maxAmount
	}
	url := c.baseURL + "?amount=" + strconv.Itoa(n) + "&difficulty=" + string(difficulty)

	payload, err := doRequest[apiResponse](ctx, c, url)
	if err != nil {
		return nil, fmt.Errorf("%w: opentdb: %v", domain.ErrExternalUnavailable, err)
	}
	switch payload.ResponseCode {
	case codeSuccess:
	case codeNoResults:
		return nil, domain.ErrQuestionNotFound
	case codeRateLimit:
		return nil, fmt.Errorf("%w: opentdb rate limited", domain.ErrExternalUnavailable)
	default:
		return nil, fmt.Errorf("%w: opentdb response code %d", domain.ErrExternalUnavailable, payload.ResponseCode)
	}

	questions := make([]domain.Question, 0, len(payload.Results))
	for _, r := range payload.Results {
		q := domain.Question{
			Text:            html.UnescapeString(r.Question),
			ReferenceAnswer: html.UnescapeString(r.CorrectAnswer),
			Kind:            domain.AnswerKindOpen,
			Category:        html.UnescapeString(r.Category),
			Difficulty:      domain.Difficulty(strings.ToLower(r.Difficulty)),
		}
		if r.Type == "boolean" {
			q.Kind = domain.AnswerKindBoolean
		}
		if q.Difficulty == "" {
			q.Difficulty = difficulty
		}
		if strings.TrimSpace(q.Text) == "" || strings.TrimSpace(q.ReferenceAnswer) == "" {
			continue
		}
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return nil, domain.ErrQuestionNotFound
	}
	return questions, nil
}

func doRequest[T any](ctx context.Context, c *Client, url string) (*T, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, err
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("API error: %d", resp.StatusCode())
	}

	var result T
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}
