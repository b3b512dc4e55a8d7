// Package twitter fetches recent tweets per account from the Twitter API v2.
package twitter

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/pilosa/datapub"
	"github.com/pkg/errors"
)

// DefaultURL is the public API endpoint.
const DefaultURL = "https://api.twitter.com"

// The API refuses max_results outside this range.
const (
	minPage = 5
	maxPage = 100
)

// Schema is the schema of datasets returned by Client.Fetch.
var Schema = datapub.Schema{
	{Name: "user", Kind: datapub.String},
	{Name: "tweet_id", Kind: datapub.Int},
	{Name: "created_at", Kind: datapub.Time},
	{Name: "tweet", Kind: datapub.String},
	{Name: "retweets", Kind: datapub.Int},
	{Name: "likes", Kind: datapub.Int},
}

// Client is a datapub.Fetcher whose keys are account user names.
type Client struct {
	Log datapub.Logger

	client *resty.Client
	token  string
}

// NewClient returns a Client for the API at baseURL.
func NewClient(baseURL string) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(30 * time.Second).
		SetError(&apiErrors{})
	c.JSONMarshal = json.Marshal
	c.JSONUnmarshal = json.Unmarshal
	return &Client{Log: datapub.NopLogger{}, client: c}
}

// SetBearerToken authenticates requests with an existing app token.
func (c *Client) SetBearerToken(token string) {
	c.token = token
	c.client.SetAuthToken(token)
}

type tokenResponse struct {
	TokenType   string `json:"token_type"`
	AccessToken string `json:"access_token"`
}

// Authenticate exchanges an API key and secret for an app-only bearer token.
func (c *Client) Authenticate(ctx context.Context, key, secret string) error {
	res := &tokenResponse{}
	resp, err := c.client.R().
		SetContext(ctx).
		SetBasicAuth(key, secret).
		SetFormData(map[string]string{"grant_type": "client_credentials"}).
		SetResult(res).
		Post("/oauth2/token")
	if err := check(resp, err); err != nil {
		return errors.Wrap(err, "getting bearer token")
	}
	if !strings.EqualFold(res.TokenType, "bearer") || res.AccessToken == "" {
		return errors.Errorf("unexpected token type '%s'", res.TokenType)
	}
	c.SetBearerToken(res.AccessToken)
	return nil
}

type apiError struct {
	Title   string `json:"title"`
	Detail  string `json:"detail"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type apiErrors struct {
	Title  string     `json:"title"`
	Detail string     `json:"detail"`
	Errors []apiError `json:"errors"`
}

func (e *apiErrors) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, ae := range e.Errors {
		switch {
		case ae.Detail != "":
			msgs = append(msgs, ae.Detail)
		case ae.Message != "":
			msgs = append(msgs, ae.Message)
		default:
			msgs = append(msgs, ae.Title)
		}
	}
	return strings.Join(msgs, "; ")
}

// check maps an unsuccessful response to an error, using ErrForbidden and
// ErrRateLimited where they apply.
func check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsSuccess() {
		return nil
	}
	var apiErr error = errors.Errorf("unexpected status %s", resp.Status())
	if ae, ok := resp.Error().(*apiErrors); ok && ae.Error() != "" {
		apiErr = errors.Errorf("%s: %s", resp.Status(), ae.Error())
	}
	switch resp.StatusCode() {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.Wrap(datapub.ErrForbidden, apiErr.Error())
	case http.StatusTooManyRequests:
		if reset := resp.Header().Get("x-rate-limit-reset"); reset != "" {
			apiErr = errors.Errorf("%v (resets at %s)", apiErr, reset)
		}
		return errors.Wrap(datapub.ErrRateLimited, apiErr.Error())
	}
	return apiErr
}

type user struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type userResponse struct {
	Data   *user      `json:"data"`
	Errors []apiError `json:"errors"`
}

type tweet struct {
	ID            string    `json:"id"`
	Text          string    `json:"text"`
	CreatedAt     time.Time `json:"created_at"`
	PublicMetrics struct {
		RetweetCount int64 `json:"retweet_count"`
		LikeCount    int64 `json:"like_count"`
	} `json:"public_metrics"`
}

type tweetsResponse struct {
	Data []tweet `json:"data"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

// Fetch implements datapub.Fetcher, returning up to limit of the most recent
// tweets of the account username. A limit of zero or less means one page.
func (c *Client) Fetch(ctx context.Context, username string, limit int) (*datapub.Dataset, error) {
	if c.token == "" {
		return nil, errors.New("not authenticated")
	}
	u, err := c.lookup(ctx, username)
	if err != nil {
		return nil, err
	}
	ds := datapub.NewDataset(Schema)
	next := ""
	for limit <= 0 || ds.Len() < limit {
		page := maxPage
		if limit > 0 && limit-ds.Len() < page {
			page = limit - ds.Len()
		}
		if page < minPage {
			page = minPage
		}
		req := c.client.R().
			SetContext(ctx).
			SetPathParam("id", u.ID).
			SetQueryParam("max_results", strconv.Itoa(page)).
			SetQueryParam("tweet.fields", "created_at,public_metrics").
			SetResult(&tweetsResponse{})
		if next != "" {
			req.SetQueryParam("pagination_token", next)
		}
		resp, err := req.Get("/2/users/{id}/tweets")
		if err := check(resp, err); err != nil {
			return nil, errors.Wrapf(err, "fetching tweets of %s", username)
		}
		res := resp.Result().(*tweetsResponse)
		for _, t := range res.Data {
			if limit > 0 && ds.Len() >= limit {
				break
			}
			err := ds.Append(username, t.ID, t.CreatedAt, t.Text, t.PublicMetrics.RetweetCount, t.PublicMetrics.LikeCount)
			if err != nil {
				return nil, errors.Wrapf(err, "tweet %s", t.ID)
			}
		}
		c.Log.Debugf("fetched %d tweets of %s", len(res.Data), username)
		next = res.Meta.NextToken
		if next == "" || limit <= 0 {
			break
		}
	}
	return ds, nil
}

func (c *Client) lookup(ctx context.Context, username string) (*user, error) {
	res := &userResponse{}
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("username", username).
		SetResult(res).
		Get("/2/users/by/username/{username}")
	if err := check(resp, err); err != nil {
		return nil, errors.Wrapf(err, "looking up %s", username)
	}
	if res.Data == nil {
		msg := "no such user"
		if len(res.Errors) > 0 {
			msg = res.Errors[0].Detail
		}
		return nil, errors.Errorf("looking up %s: %s", username, msg)
	}
	return res.Data, nil
}
