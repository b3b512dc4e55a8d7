package cmd

import (
	"io"
	"log"
	"time"

	"github.com/jaffee/commandeer"
	"github.com/pilosa/datapub/usecase/topics"
	"github.com/spf13/cobra"
)

// TopicsMain is wrapped by NewTopicsCommand and only exported for testing purposes.
var TopicsMain *topics.Main

// NewTopicsCommand returns a new cobra command wrapping TopicsMain.
func NewTopicsCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var err error
	TopicsMain = topics.NewMain()
	TopicsMain.Stdout = stdout
	topicsCommand := &cobra.Command{
		Use:   "topics",
		Short: "Read Kafka topics and publish their messages.",
		Long:  `Read JSON or schema registry Avro messages from each topic, from the oldest
offset, and publish them as one dataset. Unknown topics are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			err = TopicsMain.Run()
			if err != nil {
				return err
			}
			log.Println("Done: ", time.Since(start))
			return nil
		},
	}
	flags := topicsCommand.Flags()
	err = commandeer.Flags(flags, TopicsMain)
	if err != nil {
		panic(err)
	}
	return topicsCommand
}

func init() {
	subcommandFns["topics"] = NewTopicsCommand
}
