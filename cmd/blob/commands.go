package blob

import "github.com/spf13/cobra"

// Actions defines the operations on a single document blob.
type Actions interface {
	Show(cmd *cobra.Command, args []string) error
	Set(cmd *cobra.Command, args []string) error
	Unset(cmd *cobra.Command, args []string) error
	Incr(cmd *cobra.Command, args []string) error
	Stat(cmd *cobra.Command, args []string) error
	GC(cmd *cobra.Command, args []string) error
}

// Commands builds the blob command set.
func Commands(h Actions) []*cobra.Command {
	incrCmd := &cobra.Command{
		Use:   "incr PATH COUNTER",
		Short: "Increment a counter, optionally from concurrent writers",
		Args:  cobra.ExactArgs(2), //nolint:mnd
		RunE:  h.Incr,
	}
	incrCmd.Flags().Int64("by", 1, "amount added per increment")
	incrCmd.Flags().Int("workers", 1, "concurrent writers, each on its own handle clone")
	incrCmd.Flags().Int("times", 1, "increments per worker")

	return []*cobra.Command{
		{
			Use:     "show PATH",
			Aliases: []string{"cat"},
			Short:   "Print the document stored at PATH",
			Args:    cobra.ExactArgs(1),
			RunE:    h.Show,
		},
		{
			Use:   "set PATH KEY=VALUE [KEY=VALUE...]",
			Short: "Set string fields in one atomic write",
			Args:  cobra.MinimumNArgs(2), //nolint:mnd
			RunE:  h.Set,
		},
		{
			Use:   "unset PATH KEY [KEY...]",
			Short: "Remove fields or counters in one atomic write",
			Args:  cobra.MinimumNArgs(2), //nolint:mnd
			RunE:  h.Unset,
		},
		incrCmd,
		{
			Use:   "stat PATH",
			Short: "Show size, age, revision and lock generation",
			Args:  cobra.ExactArgs(1),
			RunE:  h.Stat,
		},
		{
			Use:   "gc PATH [PATH...]",
			Short: "Remove staging files left behind by crashed writers",
			Args:  cobra.MinimumNArgs(1),
			RunE:  h.GC,
		},
	}
}
