package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/talentpipe/inboxsync/internal/api"
	"github.com/talentpipe/inboxsync/internal/bus"
)

// errDone ends a Watch callback loop without reporting failure.
var errDone = errors.New("done")

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [PREFIX]",
		Short: "Stream daemon events (e.g. \"pairing.\" or \"messages.\")",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var prefix string
			if len(args) == 1 {
				prefix = args[0]
			}
			return withClient(0, func(ctx context.Context, c *api.Client) error {
				return c.Watch(ctx, prefix, func(evt api.Event) error {
					if jsonOut {
						return outputJSON(evt)
					}
					fmt.Printf("%s %-28s %s\n", evt.At.Local().Format("15:04:05.000"), evt.Kind, fields(evt.Payload))
					if evt.Kind == bus.PairingCode {
						raw, _ := evt.Payload["Raw"].(string)
						img, _ := evt.Payload["Image"].(string)
						showCode(raw, img)
					}
					return nil
				})
			})
		},
	}
}

// fields prints a payload as sorted key=value pairs, eliding the picture.
func fields(p map[string]any) string {
	if v, ok := p["value"]; ok && len(p) == 1 {
		return fmt.Sprint(v)
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := fmt.Sprint(p[k])
		if k == "Image" && len(v) > 16 {
			v = v[:16] + "..."
		}
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, " ")
}
