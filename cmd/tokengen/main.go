// tokengen mints a bearer token for a chat bridge actor. The bridge calls the
// ledger on behalf of its users with these tokens.
package main

import (
	"fmt"
	"os"
	"time"

	"splatchain-ledger/config"
	"splatchain-ledger/internal/core/ports"
	"splatchain-ledger/internal/service"

	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		actor      string
		userID     string
		serverID   string
		expiry     time.Duration
	)

	flagSet := pflag.NewFlagSet("tokengen", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to a config file")
	flagSet.StringVarP(&actor, "actor", "a", "", "actor identity, <platform>/<handle> (required)")
	flagSet.StringVar(&userID, "user-id", "", "platform user ID checked against the block list")
	flagSet.StringVar(&serverID, "server-id", "", "platform server ID checked against the block list")
	flagSet.DurationVar(&expiry, "expiry", 0, "token lifetime (default: jwt.expiry from config)")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if actor == "" {
		return fmt.Errorf("--actor is required")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is not configured")
	}
	if expiry <= 0 {
		expiry = cfg.JWT.Expiry
	}

	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, expiry, cfg.JWT.Issuer)
	token, expiresAt, err := tokenSvc.Generate(ports.ActorClaims{
		Actor:    actor,
		UserID:   userID,
		ServerID: serverID,
	})
	if err != nil {
		return err
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
	return nil
}
