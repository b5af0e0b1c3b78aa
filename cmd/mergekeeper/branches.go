package main

import (
	"context"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/simplesurance/mergekeeper/internal/hg"
	"github.com/simplesurance/mergekeeper/internal/releasebranch"
)

func newBranchesCmd() *cobra.Command {
	var releaseOnly bool

	cmd := cobra.Command{
		Use:   "branches",
		Short: "list the branches of the repository and their kind",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := workDir()
			if err != nil {
				return err
			}

			return runBranches(cmd.Context(), cmd.OutOrStdout(), newHgClient(dir), releaseOnly)
		},
	}

	cmd.Flags().BoolVar(&releaseOnly, "release-only", false, "only list release branches")

	return &cmd
}

type branchLister interface {
	ListBranches(ctx context.Context) (hg.BranchList, error)
}

func runBranches(ctx context.Context, out io.Writer, clt branchLister, releaseOnly bool) error {
	branches, err := clt.ListBranches(ctx)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Branch", "Revision", "Hash", "Kind"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)

	for _, b := range branches {
		// KindOf returns KindUndefined with an error for other
		// branches, they are listed as undefined
		kind, _ := releasebranch.KindOf(b.Name)
		if releaseOnly && kind != releasebranch.KindRelease {
			continue
		}

		table.Append([]string{b.Name, strconv.Itoa(b.Revision), b.Hash, kind.String()})
	}

	table.Render()

	return nil
}
