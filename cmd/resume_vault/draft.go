package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newDraftCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Submit a job description for a resume draft",
		Long: `Submit a job description to the store's draft generator. The description is
read from --file, or from stdin when --file is "-". An empty description is
rejected before anything is sent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				data []byte
				err  error
			)
			if file == "-" {
				data, err = io.ReadAll(a.in)
			} else {
				data, err = os.ReadFile(file)
			}
			if err != nil {
				return fmt.Errorf("read job description: %w", err)
			}
			msg, err := a.client.SubmitDraft(cmd.Context(), string(data))
			if err != nil {
				return report(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", `Job description file, or "-" for stdin`)
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
