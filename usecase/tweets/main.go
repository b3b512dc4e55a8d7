// Package tweets publishes the recent tweets of a list of accounts.
package tweets

import (
	"context"

	"github.com/pilosa/datapub"
	"github.com/pilosa/datapub/twitter"
	"github.com/pilosa/datapub/usecase/publish"
	"github.com/pkg/errors"
)

// DefaultUsers are the accounts fetched when none are given.
var DefaultUsers = []string{
	"BarackObama", "elonmusk", "katyperry", "justinbieber", "rihanna",
	"taylorswift13", "Cristiano", "ladygaga", "KimKardashian", "britneyspears",
	"billgates", "oprah", "jimmyfallon", "selenagomez", "shakira",
}

// Main holds the options for fetching tweets and publishing them.
type Main struct {
	publish.Main `flag:"!embed"`

	Users       []string `help:"Comma separated list of accounts to fetch tweets from."`
	Limit       int      `help:"Maximum number of tweets to fetch per account."`
	BearerToken string   `help:"App bearer token. If empty, one is requested with api-key and api-secret."`
	APIKey      string   `flag:"api-key" help:"API key used to request a bearer token."`
	APISecret   string   `flag:"api-secret" help:"API secret used to request a bearer token."`
	APIURL      string   `flag:"api-url" help:"Base URL of the Twitter API."`
}

// NewMain returns a new Main.
func NewMain() *Main {
	return &Main{
		Main:   *publish.NewMain("tweeter", "tweets"),
		Users:  append([]string(nil), DefaultUsers...),
		Limit:  100,
		APIURL: twitter.DefaultURL,
	}
}

// Run fetches the tweets and publishes them.
func (m *Main) Run() error {
	if err := m.Setup(); err != nil {
		return errors.Wrap(err, "setting up")
	}
	ctx := context.Background()
	src, err := m.Source(ctx)
	if err != nil {
		return err
	}
	_, err = m.Publish(ctx, src)
	return err
}

// Source returns a FetchSource over the configured accounts, authenticating
// first if no bearer token was given.
func (m *Main) Source(ctx context.Context) (*datapub.FetchSource, error) {
	client := twitter.NewClient(m.APIURL)
	if m.BearerToken != "" {
		client.SetBearerToken(m.BearerToken)
	} else {
		if m.APIKey == "" || m.APISecret == "" {
			return nil, errors.New("bearer-token or both api-key and api-secret must be set")
		}
		if err := client.Authenticate(ctx, m.APIKey, m.APISecret); err != nil {
			return nil, errors.Wrap(err, "authenticating")
		}
	}
	src := datapub.NewFetchSource(client, m.Users, m.Limit)
	src.Log = m.Log()
	src.Stats = m.Statter()
	return src, nil
}
