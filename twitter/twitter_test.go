package twitter_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/pilosa/datapub"
	"github.com/pilosa/datapub/twitter"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI serves 12 tweets for "nasa" in pages, refuses "private", and rate
// limits "busy".
func fakeAPI(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		key, secret, ok := r.BasicAuth()
		if !ok || key != "k" || secret != "s" || r.FormValue("grant_type") != "client_credentials" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"errors":[{"message":"Unable to verify your credentials"}]}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"token_type":"bearer","access_token":"tok"}`)
	})
	mux.HandleFunc("/2/users/by/username/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"title":"Unauthorized","detail":"Unauthorized"}`)
			return
		}
		name := strings.TrimPrefix(r.URL.Path, "/2/users/by/username/")
		switch name {
		case "nasa", "private", "busy":
			fmt.Fprintf(w, `{"data":{"id":"id-%s","username":"%s"}}`, name, name)
		default:
			fmt.Fprintf(w, `{"errors":[{"detail":"Could not find user with username: [%s]."}]}`, name)
		}
	})
	mux.HandleFunc("/2/users/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/2/users/id-private/tweets":
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"title":"Forbidden","detail":"Sorry, you are not authorized."}`)
			return
		case "/2/users/id-busy/tweets":
			w.Header().Set("x-rate-limit-reset", "1700000000")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"title":"Too Many Requests","detail":"Too Many Requests"}`)
			return
		case "/2/users/id-nasa/tweets":
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		max, _ := strconv.Atoi(r.URL.Query().Get("max_results"))
		assert.True(t, max >= 5 && max <= 100, "max_results %d", max)
		assert.Equal(t, "created_at,public_metrics", r.URL.Query().Get("tweet.fields"))
		start, _ := strconv.Atoi(r.URL.Query().Get("pagination_token"))
		end := start + max
		if end > 12 {
			end = 12
		}
		var data []string
		for i := start; i < end; i++ {
			data = append(data, fmt.Sprintf(`{"id":"%d","text":"tweet %d","created_at":"2024-05-%02dT10:00:00.000Z","public_metrics":{"retweet_count":%d,"like_count":%d}}`, 1000+i, i, i+1, i, 2*i))
		}
		next := ""
		if end < 12 {
			next = fmt.Sprintf(`,"next_token":"%d"`, end)
		}
		fmt.Fprintf(w, `{"data":[%s],"meta":{"result_count":%d%s}}`, strings.Join(data, ","), len(data), next)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T) *twitter.Client {
	c := twitter.NewClient(fakeAPI(t).URL)
	require.NoError(t, c.Authenticate(context.Background(), "k", "s"))
	return c
}

func TestAuthenticate(t *testing.T) {
	c := twitter.NewClient(fakeAPI(t).URL)
	err := c.Authenticate(context.Background(), "k", "wrong")
	require.Equal(t, datapub.ErrForbidden, errors.Cause(err))

	_, err = c.Fetch(context.Background(), "nasa", 10)
	require.Error(t, err)
}

func TestFetch(t *testing.T) {
	c := newClient(t)
	tests := []struct {
		limit int
		exp   int
	}{
		{limit: 3, exp: 3},
		{limit: 7, exp: 7},
		{limit: 100, exp: 12},
		{limit: 0, exp: 12},
	}
	for _, tst := range tests {
		t.Run(strconv.Itoa(tst.limit), func(t *testing.T) {
			ds, err := c.Fetch(context.Background(), "nasa", tst.limit)
			require.NoError(t, err)
			require.Equal(t, twitter.Schema, ds.Schema)
			require.Equal(t, tst.exp, ds.Len())
			require.Equal(t, map[string]interface{}{
				"user":       "nasa",
				"tweet_id":   int64(1001),
				"created_at": time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC),
				"tweet":      "tweet 1",
				"retweets":   int64(1),
				"likes":      int64(2),
			}, ds.Map(1))
		})
	}
}

func TestFetchErrors(t *testing.T) {
	c := newClient(t)
	_, err := c.Fetch(context.Background(), "private", 10)
	require.Equal(t, datapub.ErrForbidden, errors.Cause(err))

	_, err = c.Fetch(context.Background(), "busy", 10)
	require.Equal(t, datapub.ErrRateLimited, errors.Cause(err))
	require.Contains(t, err.Error(), "1700000000")

	_, err = c.Fetch(context.Background(), "nobody", 10)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Could not find user")
}

// A forbidden account is skipped and the others still publish.
func TestFetchSourceSkipsForbidden(t *testing.T) {
	c := newClient(t)
	src := datapub.NewFetchSource(c, []string{"private", "nasa", "busy"}, 5)
	ds, err := src.Produce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, ds.Len())
	results := src.KeyResults()
	require.Len(t, results, 3)
	require.Equal(t, datapub.OutcomeSkipped, results[0].Outcome)
	require.Equal(t, datapub.OutcomeOK, results[1].Outcome)
	require.Equal(t, 5, results[1].Records)
	require.Equal(t, datapub.OutcomeSkipped, results[2].Outcome)
}
