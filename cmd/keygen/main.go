// Command keygen issues credentials for services that report failed logins.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BradenHooton/authwatch/internal/auth"
	"github.com/BradenHooton/authwatch/internal/config"
	pkgauth "github.com/BradenHooton/authwatch/pkg/auth"
)

const usage = `usage:
  keygen apikey                 print a new reporter API key and its bcrypt hash
  keygen token -reporter <id>   print a reporter token signed with REPORTER_JWT_SECRET
`

func main() {
	os.Exit(run(os.Args[1:], os.Getenv, os.Stdout, os.Stderr))
}

func run(args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	switch args[0] {
	case "apikey":
		return runAPIKey(stdout, stderr)
	case "token":
		return runToken(args[1:], getenv, stdout, stderr)
	default:
		fmt.Fprint(stderr, usage)
		return 2
	}
}

func runAPIKey(stdout, stderr io.Writer) int {
	key, err := pkgauth.GenerateAPIKey()
	if err != nil {
		fmt.Fprintf(stderr, "generate api key: %v\n", err)
		return 1
	}

	hash, err := pkgauth.HashAPIKey(key)
	if err != nil {
		fmt.Fprintf(stderr, "hash api key: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "key:  %s\nhash: %s\n", key, hash)
	return 0
}

func runToken(args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(stderr)
	reporter := fs.String("reporter", "", "reporter ID embedded in the token")
	lifetime := fs.Duration("lifetime", 0, "token lifetime (default REPORTER_TOKEN_LIFETIME or 24h)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *reporter == "" {
		fmt.Fprint(stderr, usage)
		return 2
	}

	secret := getenv("REPORTER_JWT_SECRET")
	if len(secret) < config.MinJWTSecretLength {
		fmt.Fprintf(stderr, "REPORTER_JWT_SECRET must be at least %d characters\n", config.MinJWTSecretLength)
		return 1
	}

	if *lifetime <= 0 {
		*lifetime = 24 * time.Hour
		if raw := getenv("REPORTER_TOKEN_LIFETIME"); raw != "" {
			parsed, err := time.ParseDuration(raw)
			if err != nil {
				fmt.Fprintf(stderr, "invalid REPORTER_TOKEN_LIFETIME: %v\n", err)
				return 1
			}
			*lifetime = parsed
		}
	}

	token, err := auth.NewTokenManager(secret, *lifetime).GenerateReporterToken(*reporter)
	if err != nil {
		fmt.Fprintf(stderr, "generate token: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, token)
	return 0
}
