package cli

import (
	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/threatprotection/pkg/tpsdk"
)

func newIncidentsCommand(ctx *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "incidents",
		Short: "Search, inspect and create incidents",
	}

	cmd.AddCommand(newIncidentsSearchCommand(ctx))
	cmd.AddCommand(newIncidentsCountCommand(ctx))
	cmd.AddCommand(newIncidentsGetCommand(ctx))
	cmd.AddCommand(newIncidentsMessagesCommand(ctx))
	cmd.AddCommand(newIncidentsCreateCommand(ctx))
	cmd.AddCommand(newIncidentsUploadCommand(ctx))

	return cmd
}

func newIncidentsSearchCommand(ctx *cliContext) *cobra.Command {
	var (
		filters filterFlags
		paging  pageFlags
		search  tpsdk.IncidentSearch
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search incidents",
		Example: `  tpctl incidents search --since 7d --source TAP
  tpctl incidents search --priority high --sort createdAt:desc --end-row 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := ctx.client().SearchIncidents(cmd.Context(), search)
			if err != nil {
				return err
			}
			return ctx.writeJSON(cmd, res)
		},
	}

	filters.bindIncident(cmd)
	paging.bind(cmd, tpsdk.DefaultIncidentPage)
	ctx.onPrepare(cmd, func() error {
		f, err := filters.incidentFilters(ctx.env.Now())
		if err != nil {
			return err
		}
		sort, err := paging.sortParams()
		if err != nil {
			return err
		}
		search = tpsdk.IncidentSearch{Filters: &f, Page: paging.page(), Sort: sort}
		return nil
	})

	return cmd
}

func newIncidentsCountCommand(ctx *cliContext) *cobra.Command {
	var (
		filters filterFlags
		f       tpsdk.IncidentFilters
	)

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count incidents matching the filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := ctx.client().GetIncidentCount(cmd.Context(), f)
			if err != nil {
				return err
			}
			return ctx.writeJSON(cmd, map[string]int{"count": n})
		},
	}

	filters.bindIncident(cmd)
	ctx.onPrepare(cmd, func() (err error) {
		f, err = filters.incidentFilters(ctx.env.Now())
		return err
	})

	return cmd
}

func newIncidentsGetCommand(ctx *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get <incident-id>",
		Short: "Show one incident",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := ctx.client().GetIncidentDetails(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return ctx.writeJSON(cmd, rec)
		},
	}
}

func newIncidentsMessagesCommand(ctx *cliContext) *cobra.Command {
	var (
		paging pageFlags
		sort   []tpsdk.SortParam
	)

	cmd := &cobra.Command{
		Use:   "messages <incident-id>",
		Short: "Show an incident with one page of its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := ctx.client().GetIncidentWithMessageDetails(cmd.Context(), args[0], paging.page(), sort)
			if err != nil {
				return err
			}
			return ctx.writeJSON(cmd, rec)
		},
	}

	paging.bind(cmd, tpsdk.DefaultMessagePage)
	ctx.onPrepare(cmd, func() (err error) {
		sort, err = paging.sortParams()
		return err
	})

	return cmd
}

func newIncidentsCreateCommand(ctx *cliContext) *cobra.Command {
	var in tpsdk.NewIncident

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an incident",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := ctx.client().CreateIncident(cmd.Context(), in)
			if err != nil {
				return err
			}
			return ctx.writeJSON(cmd, rec)
		},
	}

	cmd.Flags().StringVar(&in.Title, "title", "", "Incident title")
	cmd.Flags().StringVar(&in.Description, "description", "", "Incident description")
	cmd.Flags().StringVar(&in.Priority, "priority", tpsdk.PriorityMedium, "Priority: low, medium, high, critical")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

func newIncidentsUploadCommand(ctx *cliContext) *cobra.Command {
	var msg tpsdk.UploadedMessage

	cmd := &cobra.Command{
		Use:   "upload <incident-id>",
		Short: "Attach a message to an incident",
		Example: `  tpctl incidents upload INC-42 --rfc-message-id "<abc@example.com>" \
    --recipient victim@example.com --sender attacker@example.net`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := ctx.client().UploadMessage(cmd.Context(), tpsdk.MessageUpload{
				IncidentID: args[0],
				Message:    msg,
			})
			if err != nil {
				return err
			}
			return ctx.writeJSON(cmd, rec)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&msg.RFCMessageID, "rfc-message-id", "", "RFC 5322 Message-ID, including angle brackets")
	fl.StringArrayVar(&msg.RecipientAddresses, "recipient", nil, "Recipient address (repeatable)")
	fl.StringVar(&msg.Sender, "sender", "", "Sender address")
	fl.StringVar(&msg.Subject, "subject", "", "Subject")
	fl.StringVar(&msg.Disposition, "disposition", "", "Disposition")
	_ = cmd.MarkFlagRequired("rfc-message-id")
	_ = cmd.MarkFlagRequired("recipient")

	return cmd
}
