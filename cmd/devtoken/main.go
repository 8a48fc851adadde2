// Command devtoken prints a bearer token for AUTH_PROVIDER=jwt deployments.
// It reads the same environment and .env file as the server.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"guidedesk/internal/auth"
	"guidedesk/internal/config"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return 1
	}

	flags := flag.NewFlagSet("devtoken", flag.ContinueOnError)
	flags.SetOutput(stderr)
	uid := flags.String("uid", "", "guide uid")
	email := flags.String("email", "", "guide email")
	ttl := flags.Duration("ttl", cfg.Security.JWTAccessTokenTTL, "token lifetime")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	if cfg.Security.JWTSecret == "" || *uid == "" {
		fmt.Fprintln(stderr, "usage: JWT_SECRET=... devtoken -uid <uid> [-email <email>] [-ttl 24h]")
		return 2
	}

	verifier := auth.NewJWTVerifier(cfg.Security.JWTSecret, cfg.Security.JWTIssuer, *ttl)
	token, err := verifier.Issue(auth.Session{UID: *uid, Email: *email})
	if err != nil {
		fmt.Fprintf(stderr, "failed to issue token: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, token)
	return 0
}
