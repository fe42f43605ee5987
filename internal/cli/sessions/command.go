package sessions

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/eduyeet/authgate/internal/config"
	"github.com/eduyeet/authgate/internal/database"
	"github.com/eduyeet/authgate/internal/domain/session"
	"github.com/eduyeet/authgate/internal/domain/token"
	"github.com/eduyeet/authgate/internal/domain/user"
	"github.com/eduyeet/authgate/internal/domain/verification"
	"github.com/eduyeet/authgate/internal/migrations"
	"github.com/eduyeet/authgate/internal/server"
)

const cliAddress = "cli"

// Command implements the session administration command
type Command struct{}

func (c *Command) Name() string {
	return "sessions"
}

func (c *Command) Description() string {
	return "Inspect and revoke sessions (list, revoke-user, chain)"
}

func (c *Command) Run(args []string) error {
	if len(args) < 1 {
		c.printUsage()
		return fmt.Errorf("subcommand required")
	}

	subcmd := args[0]
	switch subcmd {
	case "list":
		return c.runList(args[1:])
	case "revoke-user":
		return c.runRevokeUser(args[1:])
	case "chain":
		return c.runChain(args[1:])
	default:
		c.printUsage()
		return fmt.Errorf("unknown subcommand: %s", subcmd)
	}
}

func (c *Command) printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: authgate-cli sessions <subcommand> [args]\n\n")
	fmt.Fprintf(os.Stderr, "Subcommands:\n")
	fmt.Fprintf(os.Stderr, "  list -email <e>               List active sessions of a user\n")
	fmt.Fprintf(os.Stderr, "  revoke-user -email <e>        Revoke every active session of a user\n")
	fmt.Fprintf(os.Stderr, "    -reason <text>              Revocation reason (default: %q)\n", session.ReasonAdminRevoked)
	fmt.Fprintf(os.Stderr, "  chain -id <session id>        Print the rotation chain containing a session\n")
}

// revoker is the credential service operation behind revoke-user. Session
// state changes go through it so the CLI never writes the store directly.
type revoker interface {
	RevokeAllForUser(ctx context.Context, email, ip, reason string) (int, error)
}

type admin struct {
	users user.Repository
	store *session.Store
	creds revoker
	out   io.Writer
}

// connect loads the configuration and opens the database the server uses.
func connect() (*admin, func(), error) {
	envConfig := config.LoadEnv()
	cfg, err := config.Load(envConfig.ConfigPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := database.ConnectDB(cfg.Database, "error")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := migrations.RunMigrations(cfg); err != nil {
		_ = database.Close(db)
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	key, err := token.LoadSecret(envConfig.JWTSecret, cfg.Auth.SecretJWKPath)
	if err != nil {
		_ = database.Close(db)
		return nil, nil, fmt.Errorf("failed to load signing secret: %w", err)
	}

	repos := server.Repositories{
		Users:         user.NewRepository(db),
		Sessions:      session.NewRepository(db),
		Verifications: verification.NewRepository(db),
	}
	services, err := server.NewServices(cfg, key, repos, nil)
	if err != nil {
		_ = database.Close(db)
		return nil, nil, err
	}

	a := &admin{
		users: repos.Users,
		store: services.Sessions,
		creds: services.Auth,
		out:   os.Stdout,
	}
	return a, func() { _ = database.Close(db) }, nil
}

func (c *Command) runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	email := fs.String("email", "", "User email (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return fmt.Errorf("email is required")
	}

	a, closeDB, err := connect()
	if err != nil {
		return err
	}
	defer closeDB()
	return a.list(context.Background(), *email)
}

func (c *Command) runRevokeUser(args []string) error {
	fs := flag.NewFlagSet("revoke-user", flag.ExitOnError)
	email := fs.String("email", "", "User email (required)")
	reason := fs.String("reason", session.ReasonAdminRevoked, "Revocation reason")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return fmt.Errorf("email is required")
	}

	a, closeDB, err := connect()
	if err != nil {
		return err
	}
	defer closeDB()
	return a.revokeUser(context.Background(), *email, *reason)
}

func (c *Command) runChain(args []string) error {
	fs := flag.NewFlagSet("chain", flag.ExitOnError)
	rawID := fs.String("id", "", "Session ID (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := uuid.Parse(*rawID)
	if err != nil {
		return fmt.Errorf("invalid session ID %q", *rawID)
	}

	a, closeDB, err := connect()
	if err != nil {
		return err
	}
	defer closeDB()
	return a.chain(context.Background(), id)
}

func (a *admin) lookup(ctx context.Context, email string) (*user.User, error) {
	u, err := a.users.GetByEmail(ctx, user.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find user %s: %w", email, err)
	}
	return u, nil
}

func (a *admin) list(ctx context.Context, email string) error {
	u, err := a.lookup(ctx, email)
	if err != nil {
		return err
	}

	sessions, err := a.store.ListActive(ctx, u.ID)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintf(a.out, "No active sessions for %s\n", u.Email)
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tISSUED\tEXPIRES\tLAST USED\tIP\tUSER AGENT")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", s.ID, stamp(s.IssuedAt), stamp(s.ExpiresAt), stamp(s.LastUsed), s.IPAddress, s.UserAgent)
	}
	return w.Flush()
}

func (a *admin) revokeUser(ctx context.Context, email, reason string) error {
	n, err := a.creds.RevokeAllForUser(ctx, email, cliAddress, reason)
	if err != nil {
		return fmt.Errorf("failed to revoke sessions of %s: %w", email, err)
	}
	fmt.Fprintf(a.out, "Revoked %d session(s) for %s\n", n, user.NormalizeEmail(email))
	return nil
}

func (a *admin) chain(ctx context.Context, id uuid.UUID) error {
	chain, err := a.store.Chain(ctx, id)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tISSUED\tREVOKED\tREASON\tREPLACED BY")
	for _, s := range chain {
		marker := ""
		if s.ID == id {
			marker = " *"
		}
		revokedAt, reason, replacedBy := "-", "-", "-"
		if s.RevokedAt != nil {
			revokedAt = stamp(*s.RevokedAt)
		}
		if s.RevokedReason != nil {
			reason = *s.RevokedReason
		}
		if s.RevokedBy != nil {
			replacedBy = s.RevokedBy.String()
		}
		fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\t%s\n", s.ID, marker, stamp(s.IssuedAt), revokedAt, reason, replacedBy)
	}
	return w.Flush()
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
