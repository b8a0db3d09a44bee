package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagOutput string
	flagEmail  bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all stored submissions",
	Long: `Read every stored submission, flatten the ratings into one column per
item and write the table to --output (.csv, or .xlsx for a spreadsheet).

With --email the table is written to the configured export path, mailed to
the configured recipient and removed again, the same step that runs when a
respondent finishes the form.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logg, err := newLogger(cfg)
		if err != nil {
			return err
		}
		a, err := newApp(ctx, cfg, logg, appOptions{})
		if err != nil {
			return withHint(err)
		}
		defer a.Close(ctx)

		if flagEmail {
			res, err := a.svc.ExportAndSend(ctx)
			for _, w := range res.Warnings {
				fmt.Fprintln(os.Stderr, "warning:", w)
			}
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			fmt.Println(res.Message)
			return nil
		}

		path := flagOutput
		if path == "" {
			path = cfg.ExportPath
		}
		table, err := a.svc.Export(ctx, path)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		for _, re := range table.Errors {
			fmt.Fprintln(os.Stderr, "warning:", re.Error())
		}
		fmt.Printf("wrote %d rows to %s\n", len(table.Rows), path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "output file (default: export_path from config)")
	exportCmd.Flags().BoolVar(&flagEmail, "email", false, "mail the export instead of keeping it")
	rootCmd.AddCommand(exportCmd)
}
