package cmd

import (
	"context"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/timvw/persona-survey/internal/logger"
	"github.com/timvw/persona-survey/internal/session"
	"github.com/timvw/persona-survey/internal/tui"
)

var flagTheme string

var surveyCmd = &cobra.Command{
	Use:   "survey",
	Short: "Fill in the questionnaire in an interactive terminal form",
	Long: `Launch the terminal form. Every question has a slider seeded to the
middle of its range. Press "a" to ask the LLM for an assessment of the
current ratings and "f" to finish: the submission is stored, all submissions
are exported to CSV and mailed, and the form resets for the next respondent.

Logs go to log_file (PERSONA_SURVEY_LOG_FILE) when set and are discarded
otherwise, since the form owns the terminal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSurvey(cmd.Context())
	},
}

func init() {
	surveyCmd.Flags().StringVar(&flagTheme, "theme", "dark", "Color theme: dark, light")
	rootCmd.AddCommand(surveyCmd)
}

func runSurvey(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel() // abandons an in-flight assessment when the form exits

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logg := logger.Nop()
	if cfg.LogFile != "" {
		if logg, err = logger.ToFile(cfg.LogFile); err != nil {
			return err
		}
	}

	a, err := newApp(ctx, cfg, logg, appOptions{})
	if err != nil {
		return withHint(err)
	}
	defer a.Close(context.Background())

	t := &tui.TUI{
		Service: a.svc,
		Session: session.New(uuid.NewString(), a.svc.Questions()),
		Theme:   tui.ThemeByName(flagTheme),
		Logger:  logg,
	}
	return t.Run(ctx)
}
