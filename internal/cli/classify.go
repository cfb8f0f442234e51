package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"rapid-trivia-service/internal/config"
	"rapid-trivia-service/internal/matching"
)

// NewClassifyCmd prints the matcher's verdict for candidate answers against a reference.
func NewClassifyCmd(configPath *string) *cobra.Command {
	var (
		reference string
		threshold float64
	)
	cmd := &cobra.Command{
		Use:   "classify --reference ANSWER CANDIDATE...",
		Short: "Classify candidate answers against a reference answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if reference == "" {
				return errors.New("--reference is required")
			}
			matcherCfg := matching.DefaultConfig()
			if cfg, err := config.Load(*configPath); err == nil {
				matcherCfg = cfg.Matching.Config
			}
			if cmd.Flags().Changed("threshold") {
				matcherCfg.Threshold = threshold
			}
			matcher, err := matching.NewMatcher(matcherCfg)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CANDIDATE\tMATCH\tTYPE\tCONFIDENCE\tEXPLANATION")
			for _, candidate := range args {
				v := matcher.Classify(candidate, reference)
				fmt.Fprintf(w, "%s\t%t\t%s\t%.3f\t%s\n", candidate, v.IsMatch, v.MatchType, v.Confidence, matching.Explain(v.MatchType, v.Confidence))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&reference, "reference", "", "reference answer")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "fuzzy threshold override")
	return cmd
}
