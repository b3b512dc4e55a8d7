package cmd

import (
	"io"
	"log"
	"time"

	"github.com/jaffee/commandeer"
	"github.com/pilosa/datapub/usecase/convert"
	"github.com/spf13/cobra"
)

// ConvertMain is wrapped by NewConvertCommand and only exported for testing purposes.
var ConvertMain *convert.Main

// NewConvertCommand returns a new cobra command wrapping ConvertMain.
func NewConvertCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var err error
	ConvertMain = convert.NewMain()
	ConvertMain.Stdout = stdout
	convertCommand := &cobra.Command{
		Use:   "convert",
		Short: "Convert JSON files to other formats and publish them.",
		Long:  `Load a JSON array file or a JSON lines file, or a directory of them, and
publish the records in each format.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			err = ConvertMain.Run()
			if err != nil {
				return err
			}
			log.Println("Done: ", time.Since(start))
			return nil
		},
	}
	flags := convertCommand.Flags()
	err = commandeer.Flags(flags, ConvertMain)
	if err != nil {
		panic(err)
	}
	return convertCommand
}

func init() {
	subcommandFns["convert"] = NewConvertCommand
}
