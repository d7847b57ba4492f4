package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/talentpipe/inboxsync/internal/daemon"
	"github.com/talentpipe/inboxsync/internal/profile"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	quiet := flag.Bool("quiet", false, "log to the profile log file only")
	level := zapcore.InfoLevel
	flag.TextVar(&level, "log-level", zapcore.InfoLevel, "log level (debug, info, warn, error)")
	flag.Parse()

	name := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(name); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := profile.EnsureDir(name); err != nil {
		fmt.Fprintf(os.Stderr, "error: create profile dir: %v\n", err)
		os.Exit(1)
	}

	// Profile-scoped values win over the working directory's .env; neither
	// overrides variables already set in the environment.
	for _, path := range []string{profile.EnvFilePath(name), ".env"} {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "error: load %s: %v\n", path, err)
			os.Exit(1)
		}
	}

	app := fx.New(
		daemon.Module(daemon.Params{Profile: name, LogLevel: level, Quiet: *quiet}),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
	)

	app.Run()
}
