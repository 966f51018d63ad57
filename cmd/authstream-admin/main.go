package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/motorcyclejs/authstream/config"
	redisadapter "github.com/motorcyclejs/authstream/internal/adapters/redis"
	"github.com/motorcyclejs/authstream/internal/bootstrap"
	domainauth "github.com/motorcyclejs/authstream/internal/domain/auth"
	"github.com/motorcyclejs/authstream/internal/util"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

// store is the slice of the Redis admin API the commands use.
type store interface {
	Accounts(ctx context.Context) ([]domainauth.Identity, error)
	DeleteAccount(ctx context.Context, email string) (bool, error)
	Sessions(ctx context.Context) ([]redisadapter.Session, error)
	ClearSession(ctx context.Context, clientID string) (bool, error)
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Out    io.Writer
	In     io.Reader

	// openStore connects to Redis. The returned func releases the connection.
	openStore func(cmdCtx *commandContext) (store, func(), error)
}

const commandTimeout = 30 * time.Second

func main() {
	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			slog.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			slog.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stdout); err != nil {
			slog.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		slog.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}
	logger := bootstrap.InitLogger(&cfg)

	cmdCtx := &commandContext{
		Ctx:       context.Background(),
		Logger:    logger,
		Config:    cfg,
		Out:       os.Stdout,
		In:        os.Stdin,
		openStore: connectStore,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"list-accounts": {
			name:        "list-accounts",
			description: "List email/password accounts stored in Redis",
			run:         runListAccounts,
		},
		"delete-account": {
			name:        "delete-account",
			description: "Delete an email/password account",
			run:         runDeleteAccount,
		},
		"list-sessions": {
			name:        "list-sessions",
			description: "List signed-in sessions per client ID",
			run:         runListSessions,
		},
		"clear-session": {
			name:        "clear-session",
			description: "Sign a client out and notify its running status streams",
			run:         runClearSession,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: authstream-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	names := make([]string, 0, len(commands()))
	for name := range commands() {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := commands()[name]
		if err := writef(w, "  %-24s %s\n", c.name, c.description); err != nil {
			return err
		}
	}
	return nil
}

func connectStore(cmdCtx *commandContext) (store, func(), error) {
	client, err := bootstrap.ConnectRedis(cmdCtx.Ctx, bootstrap.RedisOptions{
		Config: cmdCtx.Config.Redis,
		Logger: cmdCtx.Logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	admin, err := redisadapter.NewAdmin(client, cmdCtx.Config.Auth.KeyPrefix)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	release := func() {
		if closeErr := client.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
	}
	return admin, release, nil
}

func withStore(cmdCtx *commandContext, fn func(ctx context.Context, s store) error) error {
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, commandTimeout)
	defer cancel()

	s, release, err := cmdCtx.openStore(cmdCtx)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx, s)
}

func runListAccounts(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("list-accounts", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withStore(cmdCtx, func(ctx context.Context, s store) error {
		accounts, err := s.Accounts(ctx)
		if err != nil {
			return err
		}
		if len(accounts) == 0 {
			return writeln(cmdCtx.Out, "No accounts found")
		}

		tw := tabwriter.NewWriter(cmdCtx.Out, 0, 4, 2, ' ', 0)
		if err := writeln(tw, "EMAIL\tUID\tDISPLAY NAME"); err != nil {
			return err
		}
		for _, a := range accounts {
			if err := writef(tw, "%s\t%s\t%s\n", a.Email, a.UID, util.OrDash(a.DisplayName)); err != nil {
				return err
			}
		}
		return tw.Flush()
	})
}

type deleteAccountOptions struct {
	Email string
	Yes   bool
}

func parseDeleteAccountFlags(args []string) (deleteAccountOptions, error) {
	var opts deleteAccountOptions
	fs := flag.NewFlagSet("delete-account", flag.ContinueOnError)
	fs.StringVar(&opts.Email, "email", "", "Email of the account to delete (required)")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	opts.Email = strings.TrimSpace(opts.Email)
	if opts.Email == "" {
		return opts, errors.New("--email is required")
	}
	return opts, nil
}

func runDeleteAccount(cmdCtx *commandContext, args []string) error {
	opts, err := parseDeleteAccountFlags(args)
	if err != nil {
		return err
	}
	if !opts.Yes {
		if confirmErr := confirm(cmdCtx, fmt.Sprintf("About to delete account %q.", opts.Email)); confirmErr != nil {
			return confirmErr
		}
	}

	return withStore(cmdCtx, func(ctx context.Context, s store) error {
		deleted, err := s.DeleteAccount(ctx, opts.Email)
		if err != nil {
			return err
		}
		if !deleted {
			return writef(cmdCtx.Out, "No account found for %s\n", opts.Email)
		}
		return writef(cmdCtx.Out, "Deleted account %s\n", opts.Email)
	})
}

func runListSessions(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("list-sessions", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withStore(cmdCtx, func(ctx context.Context, s store) error {
		sessions, err := s.Sessions(ctx)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			return writeln(cmdCtx.Out, "No sessions found")
		}

		tw := tabwriter.NewWriter(cmdCtx.Out, 0, 4, 2, ' ', 0)
		if err := writeln(tw, "CLIENT ID\tUID\tEMAIL\tANONYMOUS\tTTL"); err != nil {
			return err
		}
		for _, sess := range sessions {
			if err := writef(tw, "%s\t%s\t%s\t%t\t%s\n",
				sess.ClientID,
				sess.Identity.UID,
				util.OrDash(sess.Identity.Email),
				sess.Identity.IsAnonymous,
				util.FormatTTL(sess.TTL),
			); err != nil {
				return err
			}
		}
		return tw.Flush()
	})
}

type clearSessionOptions struct {
	ClientID string
	Yes      bool
}

func parseClearSessionFlags(args []string) (clearSessionOptions, error) {
	var opts clearSessionOptions
	fs := flag.NewFlagSet("clear-session", flag.ContinueOnError)
	fs.StringVar(&opts.ClientID, "client-id", "", "Client ID to sign out (required)")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	opts.ClientID = strings.TrimSpace(opts.ClientID)
	if opts.ClientID == "" {
		return opts, errors.New("--client-id is required")
	}
	return opts, nil
}

func runClearSession(cmdCtx *commandContext, args []string) error {
	opts, err := parseClearSessionFlags(args)
	if err != nil {
		return err
	}
	if !opts.Yes {
		if confirmErr := confirm(cmdCtx, fmt.Sprintf("About to sign out client %q.", opts.ClientID)); confirmErr != nil {
			return confirmErr
		}
	}

	return withStore(cmdCtx, func(ctx context.Context, s store) error {
		cleared, err := s.ClearSession(ctx, opts.ClientID)
		if err != nil {
			return err
		}
		if !cleared {
			return writef(cmdCtx.Out, "No session stored for %s; sign-out still broadcast\n", opts.ClientID)
		}
		return writef(cmdCtx.Out, "Signed out %s\n", opts.ClientID)
	})
}

func confirm(cmdCtx *commandContext, intro string) error {
	if err := writeln(cmdCtx.Out, intro); err != nil {
		return fmt.Errorf("print confirmation message: %w", err)
	}
	if err := write(cmdCtx.Out, "Continue? [y/N]: "); err != nil {
		return fmt.Errorf("print confirmation prompt: %w", err)
	}
	resp, err := bufio.NewReader(cmdCtx.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read confirmation: %w", err)
	}
	resp = strings.ToLower(strings.TrimSpace(resp))
	if resp == "y" || resp == "yes" {
		return nil
	}
	return errors.New("aborted by user")
}


func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func write(w io.Writer, args ...any) error {
	_, err := fmt.Fprint(w, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	_, err := fmt.Fprintln(w, args...)
	return err
}
