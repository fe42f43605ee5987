package keys

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/eduyeet/authgate/internal/config"
	"github.com/eduyeet/authgate/internal/domain/token"
)

const defaultKeyPath = "keys/secret.jwk"

// Command implements the keys management command
type Command struct{}

func (c *Command) Name() string {
	return "keys"
}

func (c *Command) Description() string {
	return "Manage the token signing key (generate, show)"
}

func (c *Command) Run(args []string) error {
	if len(args) < 1 {
		c.printUsage()
		return fmt.Errorf("subcommand required")
	}

	subcmd := args[0]
	switch subcmd {
	case "generate":
		return c.runGenerate(args[1:])
	case "show":
		return c.runShow(args[1:])
	default:
		c.printUsage()
		return fmt.Errorf("unknown subcommand: %s", subcmd)
	}
}

func (c *Command) printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: authgate-cli keys <subcommand> [args]\n\n")
	fmt.Fprintf(os.Stderr, "Subcommands:\n")
	fmt.Fprintf(os.Stderr, "  generate              Generate a new HMAC signing key as a JWK\n")
	fmt.Fprintf(os.Stderr, "    -kid <id>           Key ID (required)\n")
	fmt.Fprintf(os.Stderr, "    -path <file>        Key file (overrides auth.secret_jwk_path)\n")
	fmt.Fprintf(os.Stderr, "  show                  Print the key ID of the configured key\n")
	fmt.Fprintf(os.Stderr, "    -path <file>        Key file (overrides auth.secret_jwk_path)\n")
}

func (c *Command) runGenerate(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	kid := fs.String("kid", "", "Key ID (required)")
	customPath := fs.String("path", "", "Key file path (overrides config)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *kid == "" {
		return fmt.Errorf("key ID is required")
	}

	return generateKey(resolvePath(*customPath), *kid, os.Stdout)
}

func (c *Command) runShow(args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	customPath := fs.String("path", "", "Key file path (overrides config)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	return showKey(resolvePath(*customPath), os.Stdout)
}

// resolvePath prefers the flag, then the configured path, then the default.
func resolvePath(custom string) string {
	if custom != "" {
		return custom
	}
	envConfig := config.LoadEnv()
	if cfg, err := config.Load(envConfig.ConfigPath); err == nil && cfg.Auth.SecretJWKPath != "" {
		return cfg.Auth.SecretJWKPath
	}
	return defaultKeyPath
}

func generateKey(path, kid string, out io.Writer) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("key file already exists at %s", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to check key file %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create keys directory: %w", err)
	}

	data, err := token.GenerateJWK(kid)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create key file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write key file: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Fprintf(out, "Signing key generated successfully\n")
	fmt.Fprintf(out, "  Key ID: %s\n", kid)
	fmt.Fprintf(out, "  Path:   %s\n", path)
	return nil
}

func showKey(path string, out io.Writer) error {
	key, err := token.LoadJWK(path)
	if err != nil {
		return err
	}

	kid := key.ID
	if kid == "" {
		kid = "(none)"
	}
	fmt.Fprintf(out, "Key file: %s\n", path)
	fmt.Fprintf(out, "  Key ID:    %s\n", kid)
	fmt.Fprintf(out, "  Algorithm: HS256\n")
	fmt.Fprintf(out, "  Size:      %d bits\n", len(key.Secret)*8)
	return nil
}
