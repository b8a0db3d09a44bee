package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/timvw/persona-survey/internal/questions"
)

var flagIDsOnly bool

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Load and validate the questionnaire",
	Long: `Load the questionnaire file and print it as JSON, one object per item in
file order. Exits non-zero when the file is missing, lacks a required column
or has an invalid row, so it can be used to check a questionnaire before
starting the form.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		set, err := questions.Load(cfg.Questions)
		if err != nil {
			return withHint(err)
		}

		if flagIDsOnly {
			for _, id := range set.IDs() {
				fmt.Println(id)
			}
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(set.Items())
	},
}

func init() {
	questionsCmd.Flags().BoolVar(&flagIDsOnly, "ids", false, "print only the item IDs")
	rootCmd.AddCommand(questionsCmd)
}
