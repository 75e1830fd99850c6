// Question Source Adapter
//
// Fetches one multiple-choice question at a time from an Open Trivia DB
// compatible endpoint. The rest of the server treats questions as immutable
// once fetched, and treats every failure mode here (transport error, bad
// status, non-zero response code, empty or malformed result) as the single
// errQuestionFetch condition.

package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"time"
)

// Question mirrors the wire shape of the trivia source. CorrectAnswer is
// compared byte-for-byte against submitted answers, so HTML entities are
// unescaped once on arrival and never again.
type Question struct {
	Category         string   `json:"category"`
	Type             string   `json:"type"`
	Difficulty       string   `json:"difficulty"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

type triviaResponse struct {
	ResponseCode int        `json:"response_code"`
	Results      []Question `json:"results"`
}

// QuestionSource is what the round machinery depends on; tests swap in stubs.
type QuestionSource interface {
	FetchQuestion(ctx context.Context) (*Question, error)
}

type TriviaClient struct {
	baseURL string
	client  *http.Client
}

func newTriviaClient(baseURL string) *TriviaClient {
	return &TriviaClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (t *TriviaClient) FetchQuestion(ctx context.Context) (*Question, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/api.php?amount=1&type=multiple", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errQuestionFetch, err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errQuestionFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status code %d", errQuestionFetch, resp.StatusCode)
	}

	var decoded triviaResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", errQuestionFetch, err)
	}

	if decoded.ResponseCode != 0 || len(decoded.Results) == 0 {
		return nil, fmt.Errorf("%w: response code %d with %d results", errQuestionFetch, decoded.ResponseCode, len(decoded.Results))
	}

	q := decoded.Results[0]
	if q.CorrectAnswer == "" || len(q.IncorrectAnswers) == 0 {
		return nil, fmt.Errorf("%w: incomplete question", errQuestionFetch)
	}

	q.Category = html.UnescapeString(q.Category)
	q.Question = html.UnescapeString(q.Question)
	q.CorrectAnswer = html.UnescapeString(q.CorrectAnswer)
	for i, a := range q.IncorrectAnswers {
		q.IncorrectAnswers[i] = html.UnescapeString(a)
	}

	return &q, nil
}

// shuffledAnswers returns all answer choices in a randomized presentation
// order, so clients cannot infer the correct answer from its position.
func (q *Question) shuffledAnswers() []string {
	answers := make([]string, 0, len(q.IncorrectAnswers)+1)
	answers = append(answers, q.CorrectAnswer)
	answers = append(answers, q.IncorrectAnswers...)

	// Fisher-Yates shuffle using crypto/rand
	for i := len(answers) - 1; i > 0; i-- {
		var b [1]byte
		if _, err := rand.Read(b[:]); err != nil {
			continue
		}
		j := int(b[0]) % (i + 1)
		answers[i], answers[j] = answers[j], answers[i]
	}

	return answers
}
