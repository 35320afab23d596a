package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mirofedurco/EB-gridmaker/internal/store"
)

// EstimateResult is the size of the configured grid and of its database.
type EstimateResult struct {
	Dimensions []string `json:"dimensions"`
	Nodes      int64    `json:"nodes"`
	Passbands  int      `json:"passbands"`
	Points     int      `json:"points"`
	SizeGiB    float64  `json:"size_gib"`
}

func (r EstimateResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Grid:       %s\n", strings.Join(r.Dimensions, " x "))
	fmt.Fprintf(&b, "Nodes:      %d\n", r.Nodes)
	fmt.Fprintf(&b, "Passbands:  %d\n", r.Passbands)
	fmt.Fprintf(&b, "Points:     %d\n", r.Points)
	fmt.Fprintf(&b, "Size:       %.2f GiB (upper bound, before validity filtering)", r.SizeGiB)
	return b.String()
}

// NewEstimateCommand creates the estimate command.
func NewEstimateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the grid size and the database size",
		Long: `Print the number of nodes of the configured grid and the database size
if every node were valid and stored.

Example:
  gridmaker estimate --config atlas.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: rootOpts.run(func(cmd *cobra.Command, args []string) error {
			return runEstimate(rootOpts, cmd)
		}),
	}
	return cmd
}

func runEstimate(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}

	dims := cfg.Order.Dimensions()
	res := EstimateResult{
		Dimensions: make([]string, len(dims)),
		Nodes:      cfg.Order.Size(),
		Passbands:  len(cfg.Layout.PassbandNames()),
		Points:     cfg.NPoints,
	}
	for i, d := range dims {
		res.Dimensions[i] = d.String()
	}
	res.SizeGiB = store.EstimateSize(res.Nodes, res.Passbands, res.Points)
	return opts.formatter(cmd).Success(res)
}
