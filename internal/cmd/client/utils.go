package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gazay/logux-core/pkg/actionlog"
	"github.com/gazay/logux-core/pkg/id"
	"github.com/gazay/logux-core/pkg/store"
)

// printJSON writes v as one JSON line to the command output.
func printJSON(cmd *cobra.Command, v any) error {
	return json.NewEncoder(cmd.OutOrStdout()).Encode(v)
}

// parseAction builds an action from a JSON object and an optional type.
func parseAction(typ, data string) (store.Action, error) {
	action := store.Action{}
	if strings.TrimSpace(data) != "" {
		if err := store.DecodeJSON([]byte(data), &action); err != nil {
			return nil, fmt.Errorf("--data: %w", err)
		}
	}
	if typ != "" {
		action["type"] = typ
	}
	if _, ok := action.Type(); !ok {
		return nil, fmt.Errorf("action type is required (--type or \"type\" in --data)")
	}
	return action, nil
}

func parseID(s string) (id.ID, error) {
	eid, err := id.Parse(strings.TrimSpace(s))
	if err != nil {
		return id.ID{}, err
	}
	return eid, nil
}

func criteriaFromFlags(cmd *cobra.Command) (store.Criteria, error) {
	var c store.Criteria
	for flag, dst := range map[string]**id.ID{"older-than": &c.OlderThan, "younger-than": &c.YoungerThan} {
		raw, _ := cmd.Flags().GetString(flag)
		if raw == "" {
			continue
		}
		eid, err := parseID(raw)
		if err != nil {
			return store.Criteria{}, fmt.Errorf("--%s: %w", flag, err)
		}
		*dst = &eid
	}
	if cmd.Flags().Changed("min-added") {
		v, _ := cmd.Flags().GetUint64("min-added")
		c.MinAdded = &v
	}
	if cmd.Flags().Changed("max-added") {
		v, _ := cmd.Flags().GetUint64("max-added")
		c.MaxAdded = &v
	}
	return c, nil
}

func patchFromFlags(cmd *cobra.Command) (store.MetaPatch, error) {
	var p store.MetaPatch
	if cmd.Flags().Changed("time") {
		v, _ := cmd.Flags().GetInt64("time")
		p.Time = &v
	}
	if cmd.Flags().Changed("reasons") {
		p.Reasons, _ = cmd.Flags().GetStringSlice("reasons")
	}
	if reset, _ := cmd.Flags().GetBool("clear-reasons"); reset {
		p.Reasons = []string{}
	}
	if raw, _ := cmd.Flags().GetString("extra"); raw != "" {
		if err := store.DecodeJSON([]byte(raw), &p.Extra); err != nil {
			return store.MetaPatch{}, fmt.Errorf("--extra: %w", err)
		}
	}
	if p.Time == nil && p.Reasons == nil && len(p.Extra) == 0 {
		return store.MetaPatch{}, fmt.Errorf("nothing to change: pass --time, --reasons, --clear-reasons or --extra")
	}
	return p, nil
}

func countEntries(cmd *cobra.Command, l *actionlog.Log) (int, error) {
	n := 0
	err := l.Each(cmd.Context(), actionlog.EachOptions{}, func(store.Action, store.Meta) bool {
		n++
		return true
	})
	return n, err
}
