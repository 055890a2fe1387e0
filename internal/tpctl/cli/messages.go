package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/threatprotection/pkg/tpsdk"
)

func newMessagesCommand(ctx *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Search, inspect and download messages",
	}

	cmd.AddCommand(newMessagesSearchCommand(ctx))
	cmd.AddCommand(newMessageRecordCommand(ctx, "get", "Show one message",
		func(c *tpsdk.Client) func(context.Context, string) (tpsdk.Record, error) { return c.GetMessageDetails }))
	cmd.AddCommand(newMessageRecordCommand(ctx, "fetch", "Start fetching a message body from the mailbox",
		func(c *tpsdk.Client) func(context.Context, string) (tpsdk.Record, error) { return c.FetchMessageBody }))
	cmd.AddCommand(newMessageRecordCommand(ctx, "fetch-status", "Show the progress of a message fetch",
		func(c *tpsdk.Client) func(context.Context, string) (tpsdk.Record, error) { return c.GetMessageFetchStatus }))
	cmd.AddCommand(newMessagesDownloadCommand(ctx))

	return cmd
}

func newMessagesSearchCommand(ctx *cliContext) *cobra.Command {
	var (
		filters filterFlags
		paging  pageFlags
		search  tpsdk.MessageSearch
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search messages",
		Long:  "Search messages. A window may span at most 100 rows.",
		Example: `  tpctl messages search --since 24h --sender attacker@example.net
  tpctl messages search --start-row 100 --end-row 200`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := ctx.client().SearchMessages(cmd.Context(), search)
			if err != nil {
				return err
			}
			return ctx.writeJSON(cmd, res)
		},
	}

	filters.bindMessage(cmd)
	paging.bind(cmd, tpsdk.DefaultMessagePage)
	ctx.onPrepare(cmd, func() error {
		f, err := filters.messageFilters(ctx.env.Now())
		if err != nil {
			return err
		}
		sort, err := paging.sortParams()
		if err != nil {
			return err
		}
		search = tpsdk.MessageSearch{Filters: &f, Page: paging.page(), Sort: sort}
		return nil
	})

	return cmd
}

// newMessageRecordCommand builds the single-ID message commands that print
// one record.
func newMessageRecordCommand(
	ctx *cliContext,
	use, short string,
	method func(*tpsdk.Client) func(context.Context, string) (tpsdk.Record, error),
) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <message-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := method(ctx.client())(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return ctx.writeJSON(cmd, rec)
		},
	}
}

func newMessagesDownloadCommand(ctx *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:     "download <message-id>",
		Short:   "Download the raw MIME (.eml) content of a message",
		Example: `  tpctl messages download MSG-1 --out MSG-1.eml`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := ctx.client().DownloadMessageMIME(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return ctx.writeBytes(cmd, data)
		},
	}
}
