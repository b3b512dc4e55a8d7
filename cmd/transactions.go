package cmd

import (
	"io"
	"log"
	"time"

	"github.com/jaffee/commandeer"
	"github.com/pilosa/datapub/usecase/transactions"
	"github.com/spf13/cobra"
)

// TransactionsMain is wrapped by NewTransactionsCommand and only exported for testing purposes.
var TransactionsMain *transactions.Main

// NewTransactionsCommand returns a new cobra command wrapping TransactionsMain.
func NewTransactionsCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var err error
	TransactionsMain = transactions.NewMain()
	TransactionsMain.Stdout = stdout
	transactionsCommand := &cobra.Command{
		Use:   "transactions",
		Short: "Generate synthetic transactions and publish them.",
		Long:  `Generate a number of synthetic bank transactions, or records of any shape
described by a TOML spec file, and publish them in each format.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			err = TransactionsMain.Run()
			if err != nil {
				return err
			}
			log.Println("Done: ", time.Since(start))
			return nil
		},
	}
	flags := transactionsCommand.Flags()
	err = commandeer.Flags(flags, TransactionsMain)
	if err != nil {
		panic(err)
	}
	return transactionsCommand
}

func init() {
	subcommandFns["transactions"] = NewTransactionsCommand
}
