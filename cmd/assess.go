package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/timvw/persona-survey/internal/model"
	"github.com/timvw/persona-survey/internal/questions"
)

var flagRatings string

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Ask the LLM for an assessment of one rating set",
	Long: `Produce a personality narrative for a rating set without storing it.

--ratings is either a JSON file holding an object of item ID to rating, or an
inline list such as "Q1=7,Q2=2". Items left out keep the middle of their
range. The narrative is printed as JSON; a failed LLM call yields the
fallback text, exactly as in the form.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logg, err := newLogger(cfg)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg, logg, appOptions{NeedAssessor: true, SkipStore: true})
		if err != nil {
			return withHint(err)
		}
		defer a.Close(cmd.Context())

		given, err := readRatings(flagRatings)
		if err != nil {
			return err
		}
		ratings, err := mergeRatings(a.svc.Questions(), given)
		if err != nil {
			return err
		}

		n := a.svc.Narrate(cmd.Context(), ratings)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(n)
	},
}

func init() {
	assessCmd.Flags().StringVar(&flagRatings, "ratings", "", `JSON file or inline "ID=value,..." list`)
	rootCmd.AddCommand(assessCmd)
}

// readRatings parses src as a JSON file path or an inline ID=value list.
func readRatings(src string) (model.RatingSet, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return model.RatingSet{}, nil
	}
	if data, err := os.ReadFile(src); err == nil {
		var r model.RatingSet
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("ratings file %s: %w", src, err)
		}
		return r, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	r := model.RatingSet{}
	for _, pair := range strings.Split(src, ",") {
		id, raw, ok := strings.Cut(pair, "=")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid rating %q, want ID=value", strings.TrimSpace(pair))
		}
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid rating for %s: %w", id, err)
		}
		r[id] = v
	}
	return r, nil
}

// mergeRatings overlays given on the questionnaire defaults and validates
// the result.
func mergeRatings(set *questions.Set, given model.RatingSet) (model.RatingSet, error) {
	ratings := set.Defaults()
	for id, v := range given {
		ratings[id] = v
	}
	if err := set.Validate(ratings); err != nil {
		return nil, err
	}
	return ratings, nil
}
