package main

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/jonathan/resume-vault/internal/dashboard"
	"github.com/jonathan/resume-vault/internal/retrieval"
	"github.com/jonathan/resume-vault/internal/types"
	"github.com/spf13/cobra"
)

// openDashboard mounts a dashboard on the signed-in principal's scope and
// waits for the first page. Developers go through the subject selector, which
// only offers their assigned bidders.
func (a *app) openDashboard(ctx context.Context, subject string, pageSize int, assumeYes bool) (*dashboard.Dashboard, error) {
	p, err := a.principal()
	if err != nil {
		return nil, err
	}
	saver, err := retrieval.NewLocalDir(a.cfg.DownloadDir)
	if err != nil {
		return nil, err
	}
	dash := dashboard.New(a.client, saver, a.confirm(assumeYes), &dashboard.Options{
		PageSize:      pageSize,
		Logger:        a.logger,
		RetrievalOpts: []retrieval.Option{retrieval.WithMetrics(a.metrics)},
	})

	if dev, ok := p.(types.Developer); ok {
		if subject == "" {
			dash.Close()
			return nil, errors.New("developers must choose a bidder with --subject (see 'resume_vault bidders')")
		}
		view, err := dashboard.NewDeveloper(dev, a.admin, dash)
		if err == nil {
			err = a.selectBidder(ctx, view, subject)
		}
		if err != nil {
			dash.Close()
			return nil, err
		}
	} else if err := dash.Mount(p, subject); err != nil {
		dash.Close()
		return nil, err
	}

	dash.Wait()
	if err := dash.Snapshot().Err; err != nil {
		dash.Close()
		return nil, report(err)
	}
	return dash, nil
}

func (a *app) selectBidder(ctx context.Context, view *dashboard.Developer, subject string) error {
	if _, err := view.LoadBidders(ctx); err != nil {
		return report(err)
	}
	if !slices.ContainsFunc(view.Bidders(), func(u types.User) bool { return u.ID == subject }) {
		return fmt.Errorf("bidder %s is not assigned to you", subject)
	}
	return view.SelectSubject(subject)
}

// orchestrator builds a retrieval orchestrator saving into the download dir.
func (a *app) orchestrator() (*retrieval.Orchestrator, error) {
	saver, err := retrieval.NewLocalDir(a.cfg.DownloadDir)
	if err != nil {
		return nil, err
	}
	return retrieval.New(a.client, saver, retrieval.WithLogger(a.logger), retrieval.WithMetrics(a.metrics)), nil
}

func newListCmd(a *app) *cobra.Command {
	var (
		page     int
		limit    int
		subject  string
		criteria types.FilterCriteria
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one page of artifacts",
		Long: `List one page of artifacts, newest first. --search, --from and --to filter
the fetched page locally; they never change which page is fetched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit == 0 {
				limit = a.cfg.PageSize
			}
			if !types.ValidPageSize(limit) {
				return fmt.Errorf("--limit must be one of %v", types.PageSizes)
			}
			dash, err := a.openDashboard(cmd.Context(), subject, limit, false)
			if err != nil {
				return err
			}
			defer dash.Close()

			if page > 1 {
				total := dash.Snapshot().TotalPages
				if !dash.SetPage(page) {
					return fmt.Errorf("page %d is out of range (1-%d)", page, total)
				}
				dash.Wait()
			}
			snap := dash.Snapshot()
			if snap.Err != nil {
				return report(snap.Err)
			}

			if err := dash.SetCriteria(criteria); err != nil {
				return err
			}
			a.printer.PrintRows("ARTIFACTS", dash.Rows(), snap.Data)
			if !criteria.IsEmpty() {
				a.printer.PrintDateCounts("MATCHES BY DATE", dash.FilteredCounts())
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&limit, "limit", 0, "Page size: 10, 20, 50 or 100 (default from config)")
	cmd.Flags().StringVar(&subject, "subject", "", "Bidder id to browse (developers only)")
	cmd.Flags().StringVar(&criteria.Text, "search", "", "Only show names containing this text")
	cmd.Flags().StringVar(&criteria.StartDate, "from", "", "Only show artifacts on or after YYYY-MM-DD")
	cmd.Flags().StringVar(&criteria.EndDate, "to", "", "Only show artifacts on or before YYYY-MM-DD")
	return cmd
}

func newDownloadCmd(a *app) *cobra.Command {
	var ext, subject string
	cmd := &cobra.Command{
		Use:   "download NAME",
		Short: "Download the resume or job description of one artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := types.ParseExtension(ext)
			if err != nil {
				return err
			}
			s, err := a.scope(subject)
			if err != nil {
				return err
			}
			orch, err := a.orchestrator()
			if err != nil {
				return err
			}
			res, err := orch.DownloadOne(cmd.Context(), s, args[0], e)
			if err != nil {
				return report(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes)\n", res.Path, res.Bytes)
			return nil
		},
	}
	cmd.Flags().StringVar(&ext, "ext", string(types.ExtDocx), "File to fetch: .docx or .txt")
	cmd.Flags().StringVar(&subject, "subject", "", "Bidder id (developers only)")
	return cmd
}

func newArchiveCmd(a *app) *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "archive DATE...",
		Short: "Download every artifact of one or more days as zip archives",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, dates []string) error {
			s, err := a.scope(subject)
			if err != nil {
				return err
			}
			orch, err := a.orchestrator()
			if err != nil {
				return err
			}
			failed := 0
			for _, r := range orch.DownloadArchives(cmd.Context(), s, dates) {
				if r.Err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", r.Date, report(r.Err))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: saved %s (%d bytes)\n", r.Date, r.Result.Path, r.Result.Bytes)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d archives failed", failed, len(dates))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Bidder id (developers only)")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var (
		subject   string
		assumeYes bool
	)
	cmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete an artifact after confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dash, err := a.openDashboard(cmd.Context(), subject, a.cfg.PageSize, assumeYes)
			if err != nil {
				return err
			}
			defer dash.Close()

			deleted, err := dash.Delete(cmd.Context(), args[0])
			if err != nil {
				return report(err)
			}
			if !deleted {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing deleted.")
				return nil
			}
			dash.Wait()
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", args[0])
			if snap := dash.Snapshot(); snap.Err == nil {
				a.printer.PrintRows("ARTIFACTS", dash.Rows(), snap.Data)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Bidder id (developers only)")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newBiddersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "bidders",
		Short: "List the bidders assigned to you (developers only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.principal()
			if err != nil {
				return err
			}
			if !types.CapabilitiesOf(p).Has(types.CapViewDelegatedArtifacts) {
				return errors.New("only developers have assigned bidders")
			}
			bidders, err := a.admin.AssignedBidders(cmd.Context())
			if err != nil {
				return report(err)
			}
			a.printer.PrintUsers("ASSIGNED BIDDERS", bidders)
			return nil
		},
	}
}
