package trivia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is the OpenTDB HTTP provider.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	body, err := c.get(ctx, "/api_category.php", nil)
	if err != nil {
		return nil, err
	}

	var resp categoriesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if resp.TriviaCategories == nil {
		return nil, fmt.Errorf("%w: missing trivia_categories", ErrMalformed)
	}
	return resp.TriviaCategories, nil
}

func (c *Client) Questions(ctx context.Context, filter Filter, amount int) ([]Question, error) {
	body, err := c.get(ctx, "/api.php", questionQuery(filter, amount))
	if err != nil {
		return nil, err
	}

	var resp questionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if resp.ResponseCode == nil {
		return nil, fmt.Errorf("%w: missing response_code", ErrMalformed)
	}

	switch *resp.ResponseCode {
	case codeSuccess:
	case codeNoResults:
		return nil, ErrNoResults
	case codeRateLimited:
		return nil, ErrRateLimited
	default:
		return nil, fmt.Errorf("%w: response_code %d", ErrMalformed, *resp.ResponseCode)
	}

	for i, q := range resp.Results {
		if !q.valid() {
			return nil, fmt.Errorf("%w: result %d is incomplete", ErrMalformed, i)
		}
	}
	return resp.Results, nil
}

func questionQuery(filter Filter, amount int) url.Values {
	q := url.Values{}
	q.Set("amount", strconv.Itoa(amount))
	if filter.Category != 0 {
		q.Set("category", strconv.Itoa(filter.Category))
	}
	if filter.Difficulty != DifficultyAny {
		q.Set("difficulty", string(filter.Difficulty))
	}
	q.Set("type", "multiple")
	return q
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	// 429 is checked before touching the body.
	if resp.StatusCode == http.StatusTooManyRequests {
		c.logger.Warn("trivia provider rate limited", "path", path)
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrNetwork, resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return body, nil
}
