package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/vango-dev/discuss/pkg/api"
	"github.com/vango-dev/discuss/pkg/comments"
	"github.com/vango-dev/discuss/pkg/features/query"
	"github.com/vango-dev/discuss/pkg/middleware"
	"github.com/vango-dev/discuss/pkg/toast"
)

func commentsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "comments",
		Aliases: []string{"c"},
		Short:   "List, add and delete comments",
	}

	cmd.AddCommand(
		commentsListCmd(a),
		commentsAddCmd(a),
		commentsDeleteCmd(a),
	)
	return cmd
}

func (a *app) remote() *api.Client {
	return api.New(a.cfg.API.BaseURL,
		api.WithTimeout(a.cfg.API.Timeout),
		api.WithLogger(a.logger),
	)
}

func commentsListCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list <discussion>",
		Short: "List the comments of a discussion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := comments.GetComments(cmd.Context(), a.remote(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}
			printComments(out, list)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func commentsAddCmd(a *app) *cobra.Command {
	var author string

	cmd := &cobra.Command{
		Use:   "add <discussion> <body>",
		Short: "Add a comment to a discussion",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := comments.CreateComment(cmd.Context(), a.remote(), args[0], comments.CreateCommentInput{
				Body:     args[1],
				AuthorID: author,
			})
			if err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "Added comment %s", c.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&author, "author", "", "Author ID")
	return cmd
}

func commentsDeleteCmd(a *app) *cobra.Command {
	var quiet, printMetrics bool

	cmd := &cobra.Command{
		Use:   "delete <discussion> <comment-id>",
		Short: "Delete a comment optimistically",
		Long: `Delete a comment optimistically.

The comment list is loaded into the cache, the comment is removed from
it at once, then the server is asked to delete it. When the server
refuses, the cached list is put back as it was.

With --metrics the mutation and cache metrics of the run are printed in
Prometheus text format (requires metrics.enabled).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			discussionID, commentID := args[0], args[1]
			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			remote := a.remote()
			qc := query.NewClient(
				query.WithStaleTime(a.cfg.Query.StaleTime),
				query.WithLogger(a.logger),
			)
			unsubscribe := qc.Subscribe(func(ev query.Event) {
				a.logger.Debug("cache event", "type", ev.Type.String(), "key", ev.Key.String())
			})
			defer unsubscribe()

			mws := []query.Middleware{middleware.OpenTelemetry()}
			var reg *prometheus.Registry
			if a.cfg.Metrics.Enabled {
				reg = prometheus.NewRegistry()
				m := middleware.NewMetrics(
					middleware.WithRegistry(reg),
					middleware.WithNamespace(a.cfg.Metrics.Namespace),
				)
				defer m.ObserveCache(qc)()
				mws = append(mws, m.Middleware())
			} else if printMetrics {
				warn(out, "metrics.enabled is false, nothing to print")
			}

			before, err := comments.FetchComments(ctx, qc, remote, discussionID)
			if err != nil {
				return err
			}

			toasts := toast.NewStore(toast.WithSink(toast.NotifierFunc(func(n toast.Notification) {
				success(out, "%s", n.Title)
			})))

			del := comments.UseDeleteComment(comments.Deps{
				Remote:     remote,
				Cache:      qc,
				Notifier:   toasts,
				Logger:     a.logger,
				Middleware: mws,
			}, comments.UseDeleteCommentOptions{
				DiscussionID: discussionID,
				Serialize:    a.cfg.Mutations.Serialize,
				Config: query.MutationConfig[comments.DeleteCommentVars, comments.DeleteContext]{
					OnSettled: func(_ context.Context, err error, _ comments.DeleteCommentVars, _ comments.DeleteContext) {
						if quiet {
							return
						}
						data, _ := qc.GetQueryData(comments.Key(discussionID))
						list, _ := data.([]comments.Comment)
						info(out, "%d of %d comments cached", len(list), len(before))
					},
				},
			})

			start := time.Now()
			outcome := del.Execute(ctx, comments.DeleteCommentVars{CommentID: commentID})
			a.logger.Debug("delete settled", "status", outcome.Status.String(), "duration", time.Since(start))

			if printMetrics && reg != nil {
				if err := writeMetrics(out, reg); err != nil {
					return err
				}
			}
			return outcome.Err
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only print the result")
	cmd.Flags().BoolVar(&printMetrics, "metrics", false, "Print the metrics of this run")
	return cmd
}

// writeMetrics prints every metric family of g in the text exposition format.
func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

func printComments(w io.Writer, list []comments.Comment) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No comments.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAUTHOR\tCREATED\tBODY")
	for _, c := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.AuthorID, c.CreatedAt.Format(time.RFC3339), c.Body)
	}
	tw.Flush()
}
