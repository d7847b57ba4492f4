package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/talentpipe/inboxsync/internal/api"
	"github.com/talentpipe/inboxsync/internal/bus"
	"github.com/talentpipe/inboxsync/internal/model"
	"github.com/talentpipe/inboxsync/internal/qr"
)

var errPairingAbandoned = errors.New("pairing abandoned")

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Manage channel sessions and pairing",
	}

	var refresh bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(timeout, func(ctx context.Context, c *api.Client) error {
				sessions, err := c.ListSessions(ctx, refresh)
				if err != nil {
					return err
				}
				if jsonOut {
					return outputJSON(sessions)
				}
				if len(sessions) == 0 {
					fmt.Println("No sessions found.")
					return nil
				}
				for _, s := range sessions {
					printSession(s)
				}
				return nil
			})
		},
	}
	list.Flags().BoolVar(&refresh, "refresh", false, "reload from the backend first")

	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(timeout, func(ctx context.Context, c *api.Client) error {
				s, err := c.CreateSession(ctx, args[0])
				if err != nil {
					return err
				}
				return printResult(s)
			})
		},
	}

	rename := &cobra.Command{
		Use:   "rename ID NAME",
		Short: "Rename a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(timeout, func(ctx context.Context, c *api.Client) error {
				s, err := c.RenameSession(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printResult(s)
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE:  idAction(func(ctx context.Context, c *api.Client, id string) error { return c.DeleteSession(ctx, id) }),
	}

	disconnect := &cobra.Command{
		Use:   "disconnect ID",
		Short: "Log a session out",
		Args:  cobra.ExactArgs(1),
		RunE:  idAction(func(ctx context.Context, c *api.Client, id string) error { return c.DisconnectSession(ctx, id) }),
	}

	dismiss := &cobra.Command{
		Use:   "dismiss ID",
		Short: "Close the pairing view and stop polling",
		Args:  cobra.ExactArgs(1),
		RunE:  idAction(func(ctx context.Context, c *api.Client, id string) error { return c.DismissPairing(ctx, id) }),
	}

	cmd.AddCommand(list, create, rename, del, connectCmd(), disconnect, dismiss)
	return cmd
}

func idAction(fn func(ctx context.Context, c *api.Client, id string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return withClient(timeout, func(ctx context.Context, c *api.Client) error {
			if err := fn(ctx, c, args[0]); err != nil {
				return err
			}
			if !jsonOut {
				fmt.Println("ok")
			}
			return nil
		})
	}
}

// connectCmd starts pairing and, with --wait, follows pairing events and
// redraws the code until the session connects or the poll gives up.
func connectCmd() *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "connect ID",
		Short: "Start pairing a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			limit := timeout
			if wait > 0 {
				limit = wait
			}
			return withClient(limit, func(ctx context.Context, c *api.Client) error {
				s, err := c.ConnectSession(ctx, id)
				if err != nil {
					return err
				}
				if jsonOut && wait == 0 {
					return outputJSON(s)
				}
				printSession(s)
				showCode(s.RawCode, s.PairingCode)
				if wait == 0 || s.Status == model.SessionConnected {
					return nil
				}
				err = c.Watch(ctx, "pairing.", func(evt api.Event) error {
					if evt.Payload["SessionID"] != id {
						return nil
					}
					if jsonOut {
						return outputJSON(evt)
					}
					switch evt.Kind {
					case bus.PairingCode:
						raw, _ := evt.Payload["Raw"].(string)
						img, _ := evt.Payload["Image"].(string)
						showCode(raw, img)
					case bus.PairingStateChanged:
						to, _ := evt.Payload["To"].(string)
						fmt.Printf("status: %s\n", to)
						if model.SessionStatus(to) == model.SessionConnected {
							return errDone
						}
					case bus.PairingAbandoned, bus.PairingDismissed:
						return errPairingAbandoned
					}
					return nil
				})
				if errors.Is(err, errDone) {
					return nil
				}
				return err
			})
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "follow pairing for up to this long")
	return cmd
}

func showCode(raw, picture string) {
	art, err := qr.ForSession(raw, picture)
	if errors.Is(err, qr.ErrNoCode) {
		return
	}
	if err != nil {
		fmt.Printf("pairing code received but cannot be drawn: %v\n", err)
		return
	}
	fmt.Printf("\nScan this code with the phone:\n\n%s\n", art)
}

func printSession(s api.SessionInfo) {
	flags := ""
	if s.Polling {
		flags = " [polling]"
	}
	phone := s.Phone
	if phone == "" {
		phone = "-"
	}
	fmt.Printf("%-38s %-20s %-14s %s%s\n", s.ID, s.Name, phone, s.Status, flags)
}

func printResult(s api.SessionInfo) error {
	if jsonOut {
		return outputJSON(s)
	}
	printSession(s)
	return nil
}
