package client

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gazay/logux-core/pkg/actionlog"
	"github.com/gazay/logux-core/pkg/store"
)

func (a *app) newAddCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an action to the log",
		Example: `  logux add --type user/rename --data '{"name":"Ann"}' --reason user:1
  logux add --type ping --id "1700000000000 server 0" --time 1700000000000`,
		Args: cobra.NoArgs,
		RunE: a.withLog(func(cmd *cobra.Command, _ []string, l *actionlog.Log) error {
			typ, _ := cmd.Flags().GetString("type")
			data, _ := cmd.Flags().GetString("data")
			reasons, _ := cmd.Flags().GetStringArray("reason")
			rawID, _ := cmd.Flags().GetString("id")
			tm, _ := cmd.Flags().GetInt64("time")

			action, err := parseAction(typ, data)
			if err != nil {
				return err
			}
			meta := &store.Meta{Time: tm, Reasons: reasons}
			if rawID != "" {
				if meta.ID, err = parseID(rawID); err != nil {
					return err
				}
			}
			added, err := l.Add(cmd.Context(), action, meta)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"added": added, "meta": meta})
		}),
	}
	cmd.Flags().String("type", "", "Action type (required unless present in --data)")
	cmd.Flags().String("data", "", "Action body as a JSON object")
	cmd.Flags().StringArray("reason", nil, "Retention reason (repeatable)")
	cmd.Flags().String("id", "", `Explicit id "<ms> <node> <seq>"`)
	cmd.Flags().Int64("time", 0, "Explicit action time in milliseconds")
	return cmd
}

func (a *app) newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print entries newest first as JSON lines",
		Args:  cobra.NoArgs,
		RunE: a.withLog(func(cmd *cobra.Command, _ []string, l *actionlog.Log) error {
			rawOrder, _ := cmd.Flags().GetString("order")
			limit, _ := cmd.Flags().GetInt("limit")
			pageSize, _ := cmd.Flags().GetInt("page-size")
			order, ok := store.ParseOrder(rawOrder)
			if !ok {
				return fmt.Errorf("unknown order %q (want created or added)", rawOrder)
			}

			n := 0
			var printErr error
			err := l.Each(cmd.Context(), actionlog.EachOptions{Order: order, PageSize: pageSize}, func(action store.Action, meta store.Meta) bool {
				if printErr = printJSON(cmd, store.Entry{Action: action, Meta: meta}); printErr != nil {
					return false
				}
				n++
				return limit <= 0 || n < limit
			})
			if printErr != nil {
				return printErr
			}
			return err
		}),
	}
	cmd.Flags().String("order", "created", "View: created|added")
	cmd.Flags().Int("limit", 0, "Stop after this many entries (0 = all)")
	cmd.Flags().Int("page-size", 0, "Store page size hint")
	return cmd
}

func (a *app) newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Print one entry",
		Args:  cobra.ExactArgs(1),
		RunE: a.withLog(func(cmd *cobra.Command, args []string, l *actionlog.Log) error {
			eid, err := parseID(args[0])
			if err != nil {
				return err
			}
			e, found, err := l.ByID(cmd.Context(), eid)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("%s: not found", eid)
			}
			return printJSON(cmd, e)
		}),
	}
}

func (a *app) newRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove ID",
		Short: "Delete one entry and print it",
		Args:  cobra.ExactArgs(1),
		RunE: a.withLog(func(cmd *cobra.Command, args []string, l *actionlog.Log) error {
			eid, err := parseID(args[0])
			if err != nil {
				return err
			}
			e, found, err := l.Remove(cmd.Context(), eid)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("%s: not found", eid)
			}
			return printJSON(cmd, e)
		}),
	}
}

func (a *app) newCleanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove entries with no reasons that no --keep expression retains",
		Example: `  logux clean --keep 'action_type.startsWith("user/")' --keep 'added > 1000'`,
		Args:  cobra.NoArgs,
		RunE: a.withLog(func(cmd *cobra.Command, _ []string, l *actionlog.Log) error {
			exprs, _ := cmd.Flags().GetStringArray("keep")
			for _, expr := range exprs {
				k, err := actionlog.KeepExpr(expr)
				if err != nil {
					return err
				}
				l.Keep(k)
			}
			ctx := cmd.Context()
			before, err := countEntries(cmd, l)
			if err != nil {
				return err
			}
			if err := l.Clean(ctx); err != nil {
				return err
			}
			after, err := countEntries(cmd, l)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]int{"before": before, "after": after, "removed": before - after})
		}),
	}
	cmd.Flags().StringArray("keep", nil, "CEL keep expression (repeatable)")
	return cmd
}

func (a *app) newRemoveReasonCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove-reason REASON",
		Short: "Drop a reason from matching entries and delete entries left without reasons",
		Args:  cobra.ExactArgs(1),
		RunE: a.withLog(func(cmd *cobra.Command, args []string, l *actionlog.Log) error {
			c, err := criteriaFromFlags(cmd)
			if err != nil {
				return err
			}
			var printErr error
			err = l.RemoveReason(cmd.Context(), args[0], c, func(action store.Action, meta store.Meta) {
				if printErr == nil {
					printErr = printJSON(cmd, store.Entry{Action: action, Meta: meta})
				}
			})
			if err != nil {
				return err
			}
			return printErr
		}),
	}
	cmd.Flags().String("older-than", "", "Only entries strictly older than this id")
	cmd.Flags().String("younger-than", "", "Only entries strictly younger than this id")
	cmd.Flags().Uint64("min-added", 0, "Only entries with added >= this value")
	cmd.Flags().Uint64("max-added", 0, "Only entries with added <= this value")
	return cmd
}

func (a *app) newChangeMetaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "change-meta ID",
		Short:   "Patch the metadata of one entry",
		Example: `  logux change-meta "1700000000000 server 0" --reasons user:1,user:2 --extra '{"subprotocol":"1.0.0"}'`,
		Args:    cobra.ExactArgs(1),
		RunE: a.withLog(func(cmd *cobra.Command, args []string, l *actionlog.Log) error {
			eid, err := parseID(args[0])
			if err != nil {
				return err
			}
			patch, err := patchFromFlags(cmd)
			if err != nil {
				return err
			}
			changed, err := l.ChangeMeta(cmd.Context(), eid, patch)
			if err != nil {
				return err
			}
			if !changed {
				return fmt.Errorf("%s: not found", eid)
			}
			e, _, err := l.ByID(cmd.Context(), eid)
			if err != nil {
				return err
			}
			return printJSON(cmd, e)
		}),
	}
	cmd.Flags().Int64("time", 0, "New action time in milliseconds")
	cmd.Flags().StringSlice("reasons", nil, "Replace the reason set (comma separated)")
	cmd.Flags().Bool("clear-reasons", false, "Replace the reason set with an empty one")
	cmd.Flags().String("extra", "", "JSON object merged into meta extra")
	return cmd
}

func (a *app) newSyncedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "synced",
		Short: "Print the replication watermarks",
		Args:  cobra.NoArgs,
		RunE: a.withLog(func(cmd *cobra.Command, _ []string, l *actionlog.Log) error {
			s, err := l.LastSynced(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, s)
		}),
	}
	set := &cobra.Command{
		Use:   "set",
		Short: "Update the replication watermarks",
		Args:  cobra.NoArgs,
		RunE: a.withLog(func(cmd *cobra.Command, _ []string, l *actionlog.Log) error {
			var p store.SyncedPatch
			if cmd.Flags().Changed("received") {
				v, _ := cmd.Flags().GetUint64("received")
				p.Received = &v
			}
			if cmd.Flags().Changed("sent") {
				v, _ := cmd.Flags().GetUint64("sent")
				p.Sent = &v
			}
			if p.Received == nil && p.Sent == nil {
				return fmt.Errorf("nothing to set: pass --received and/or --sent")
			}
			if err := l.SetLastSynced(cmd.Context(), p); err != nil {
				return err
			}
			s, err := l.LastSynced(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, s)
		}),
	}
	set.Flags().Uint64("received", 0, "Last added value received from the remote peer")
	set.Flags().Uint64("sent", 0, "Last added value sent to the remote peer")
	cmd.AddCommand(set)
	return cmd
}

func (a *app) newLastAddedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "last-added",
		Short: "Print the arrival counter",
		Args:  cobra.NoArgs,
		RunE: a.withLog(func(cmd *cobra.Command, _ []string, l *actionlog.Log) error {
			v, err := l.LoadLastAdded(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]uint64{"lastAdded": v})
		}),
	}
}

func (a *app) newNamespacesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "namespaces",
		Short: "List known namespaces",
		Args:  cobra.NoArgs,
		RunE: a.withRuntime(func(cmd *cobra.Command, _ []string) error {
			names, err := a.rt.Namespaces()
			if err != nil {
				return err
			}
			for _, n := range names {
				if err := printJSON(cmd, map[string]string{"namespace": n}); err != nil {
					return err
				}
			}
			return nil
		}),
	}
}
