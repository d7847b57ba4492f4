package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/talentpipe/inboxsync/internal/api"
	"github.com/talentpipe/inboxsync/internal/model"
)

func conversationsCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"ls"},
		Short:   "List conversations, most recent first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(timeout, func(ctx context.Context, c *api.Client) error {
				list, err := c.ListConversations(ctx, refresh)
				if err != nil {
					return err
				}
				if jsonOut {
					return outputJSON(list)
				}
				if len(list) == 0 {
					fmt.Println("No conversations.")
					return nil
				}
				for _, conv := range list {
					name := conv.Name
					if name == "" {
						name = "(unknown)"
					}
					fmt.Printf("%-16s %-24s %-16s %s\n", conv.Phone, truncate(name, 24), when(conv.LastMessageAt), truncate(conv.LastMessage, 40))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "reload from the backend first")
	return cmd
}

func openCmd() *cobra.Command {
	var contactID string
	cmd := &cobra.Command{
		Use:   "open PHONE",
		Short: "Select a conversation and load its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(timeout, func(ctx context.Context, c *api.Client) error {
				resp, err := c.Open(ctx, args[0], contactID)
				if err != nil {
					return err
				}
				if jsonOut {
					return outputJSON(resp)
				}
				fmt.Printf("Opened %s (generation %d)\n", resp.Phone, resp.Generation)
				printThread(resp.Messages)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&contactID, "contact", "", "contact id, when known")
	return cmd
}

func messagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "messages [PHONE]",
		Short: "Print a thread (the selected one by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var phone string
			if len(args) == 1 {
				phone = args[0]
			}
			return withClient(timeout, func(ctx context.Context, c *api.Client) error {
				resp, err := c.Messages(ctx, phone)
				if err != nil {
					return err
				}
				if jsonOut {
					return outputJSON(resp)
				}
				printThread(resp.Messages)
				return nil
			})
		},
	}
}

func sendCmd() *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "send TEXT...",
		Short: "Send a message to the selected conversation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(timeout, func(ctx context.Context, c *api.Client) error {
				if to != "" {
					if _, err := c.Open(ctx, to, ""); err != nil {
						return err
					}
				}
				msg, err := c.Send(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				return printSent(msg)
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "open this phone first")
	return cmd
}

func templateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "templates",
		Aliases: []string{"template"},
		Short:   "List or send message templates",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(timeout, func(ctx context.Context, c *api.Client) error {
				list, err := c.ListTemplates(ctx)
				if err != nil {
					return err
				}
				if jsonOut {
					return outputJSON(list)
				}
				for _, t := range list {
					fmt.Printf("%-24s %-24s %s\n", t.ID, t.Name, strings.Join(t.Variables, ","))
				}
				return nil
			})
		},
	}

	var vars []string
	send := &cobra.Command{
		Use:   "send ID",
		Short: "Render a template and send it to the selected conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseVars(vars)
			if err != nil {
				return err
			}
			return withClient(timeout, func(ctx context.Context, c *api.Client) error {
				msg, err := c.SendTemplate(ctx, args[0], values)
				if err != nil {
					return err
				}
				return printSent(msg)
			})
		},
	}
	send.Flags().StringArrayVar(&vars, "var", nil, "template variable as key=value (repeatable)")

	cmd.AddCommand(send)
	return cmd
}

func failedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "failed",
		Short: "List sends that failed and were not resent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(timeout, func(ctx context.Context, c *api.Client) error {
				list, err := c.FailedSends(ctx)
				if err != nil {
					return err
				}
				if jsonOut {
					return outputJSON(list)
				}
				if len(list) == 0 {
					fmt.Println("No failed sends.")
					return nil
				}
				for _, f := range list {
					fmt.Printf("%-40s %-16s %-16s %s (%s)\n", f.ClientID, f.Phone, when(f.At), truncate(f.Body, 30), f.Error)
				}
				return nil
			})
		},
	}
}

func resendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resend CLIENT_ID",
		Short: "Send a failed message again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(timeout, func(ctx context.Context, c *api.Client) error {
				msg, err := c.Resend(ctx, args[0])
				if err != nil {
					return err
				}
				return printSent(msg)
			})
		},
	}
}

func parseVars(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --var %q (want key=value)", p)
		}
		out[k] = v
	}
	return out, nil
}

func printSent(msg model.Message) error {
	if jsonOut {
		return outputJSON(msg)
	}
	fmt.Printf("queued %s to %s (%s)\n", msg.ClientID, msg.Phone, msg.Status)
	return nil
}

func printThread(msgs []model.Message) {
	if len(msgs) == 0 {
		fmt.Println("(no messages)")
		return
	}
	sorted := append([]model.Message(nil), msgs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].SentAt.Before(sorted[j].SentAt) })
	for _, m := range sorted {
		arrow := "<"
		if m.Direction == model.Outbound {
			arrow = ">"
		}
		fmt.Printf("%s %s %-9s %s\n", when(m.SentAt), arrow, m.Status, m.Body)
	}
}

func when(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func truncate(s string, n int) string {
	r := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
