package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/talentpipe/inboxsync/internal/api"
	"github.com/talentpipe/inboxsync/internal/profile"
)

var (
	profileFlag string
	jsonOut     bool
	timeout     time.Duration
)

func main() {
	root := &cobra.Command{
		Use:           "inboxctl",
		Short:         "Control a running inboxd",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&profileFlag, "profile", "", "profile name (overrides config default)")
	root.PersistentFlags().BoolVar(&jsonOut, "json", false, "print JSON instead of text")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "per-call timeout")

	root.AddCommand(
		statusCmd(),
		sessionsCmd(),
		conversationsCmd(),
		openCmd(),
		messagesCmd(),
		sendCmd(),
		templateCmd(),
		failedCmd(),
		resendCmd(),
		watchCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// withClient dials the profile's daemon and runs fn under a signal-aware
// context bounded by --timeout. A zero limit disables the deadline.
func withClient(limit time.Duration, fn func(ctx context.Context, c *api.Client) error) error {
	name := profile.Resolve(profileFlag)
	if err := profile.ValidateName(name); err != nil {
		return err
	}
	socketPath := profile.SocketPath(name)
	if _, err := os.Stat(socketPath); err != nil {
		return fmt.Errorf("daemon not running for profile %q (start it with: inboxd --profile %s)", name, name)
	}

	c, err := api.Dial(socketPath)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if limit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, limit)
		defer cancel()
	}
	return fn(ctx, c)
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, channel and selection state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(timeout, func(ctx context.Context, c *api.Client) error {
				st, err := c.Status(ctx)
				if err != nil {
					return err
				}
				if jsonOut {
					return outputJSON(st)
				}
				conn := "disconnected"
				if st.Connected {
					conn = "connected (" + st.ClientID + ")"
				}
				fmt.Printf("Profile:   %s\n", st.Profile)
				fmt.Printf("Channel:   %s\n", conn)
				if st.Phone != "" {
					fmt.Printf("Selected:  %s %s (generation %d)\n", st.Phone, st.ContactID, st.Generation)
				} else {
					fmt.Println("Selected:  none")
				}
				fmt.Printf("Pending:   %d\n", st.Pending)
				if st.Dropped > 0 {
					fmt.Printf("Dropped:   %d events (slow watchers)\n", st.Dropped)
				}
				fmt.Printf("Uptime:    %s\n", (time.Duration(st.UptimeMs) * time.Millisecond).Round(time.Second))
				return nil
			})
		},
	}
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
