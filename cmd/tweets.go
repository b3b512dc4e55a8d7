package cmd

import (
	"io"
	"log"
	"time"

	"github.com/jaffee/commandeer"
	"github.com/pilosa/datapub/usecase/tweets"
	"github.com/spf13/cobra"
)

// TweetsMain is wrapped by NewTweetsCommand and only exported for testing purposes.
var TweetsMain *tweets.Main

// NewTweetsCommand returns a new cobra command wrapping TweetsMain.
func NewTweetsCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var err error
	TweetsMain = tweets.NewMain()
	TweetsMain.Stdout = stdout
	tweetsCommand := &cobra.Command{
		Use:   "tweets",
		Short: "Fetch recent tweets of a list of accounts and publish them.",
		Long:  `Fetch up to limit recent tweets for each account. Accounts which cannot be
read, because they are protected or the API is rate limiting, are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			err = TweetsMain.Run()
			if err != nil {
				return err
			}
			log.Println("Done: ", time.Since(start))
			return nil
		},
	}
	flags := tweetsCommand.Flags()
	err = commandeer.Flags(flags, TweetsMain)
	if err != nil {
		panic(err)
	}
	return tweetsCommand
}

func init() {
	subcommandFns["tweets"] = NewTweetsCommand
}
