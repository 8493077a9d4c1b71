// Package main mints service tokens for calling the mock verification and
// issuance services by hand. Tokens are signed with SERVICE_SIGNING_KEY or
// the development default and will NOT work against production services.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"proofbridge/internal/platform/servicetoken"
)

const (
	// Dev signing key - matches config.go when SERVICE_SIGNING_KEY is not set
	devSigningKey = "dev-service-key-change-in-production"
	defaultIssuer = "proofbridge"
)

type tokenOutput struct {
	Token     string            `json:"token"`
	Audience  string            `json:"audience"`
	Scope     string            `json:"scope"`
	ExpiresIn string            `json:"expires_in"`
	Usage     map[string]string `json:"usage"`
}

type service struct {
	audience string
	scope    string
	example  string
}

var services = map[string]service{
	"verifier": {
		audience: servicetoken.AudienceVerifier,
		scope:    servicetoken.ScopeProofRequest,
		example:  "curl -H \"Authorization: Bearer <token>\" http://localhost:9001/proof-requests/<id>",
	},
	"issuer": {
		audience: servicetoken.AudienceIssuer,
		scope:    servicetoken.ScopeCredentialIssue,
		example:  "curl -H \"Authorization: Bearer <token>\" -d @credential.json http://localhost:9002/credentials",
	},
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	name := os.Args[1]
	if name == "help" || name == "-h" || name == "--help" {
		printUsage()
		return
	}
	svc, ok := services[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage()
		os.Exit(1)
	}

	cmd := flag.NewFlagSet(name, flag.ExitOnError)
	scope := cmd.String("scope", svc.scope, "Scope claim")
	ttl := cmd.Duration("ttl", servicetoken.DefaultTTL, "Token time-to-live")
	issuer := cmd.String("issuer", defaultIssuer, "Issuer claim")
	jsonOutput := cmd.Bool("json", false, "Output as JSON")
	_ = cmd.Parse(os.Args[2:])

	key := os.Getenv("SERVICE_SIGNING_KEY")
	keyType := "env"
	if key == "" {
		key = devSigningKey
		keyType = "dev"
	}

	token, err := mint(key, *issuer, svc.audience, *scope, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	if *jsonOutput {
		printJSON(tokenOutput{
			Token:     token,
			Audience:  svc.audience,
			Scope:     *scope,
			ExpiresIn: ttl.String(),
			Usage: map[string]string{
				"header":      "Authorization: Bearer <token>",
				"signing_key": keyType,
			},
		})
		return
	}

	fmt.Println("Service Token (JWT)")
	fmt.Println("===================")
	fmt.Printf("Signing Key: %s\n", keyType)
	fmt.Printf("Audience:    %s\n", svc.audience)
	fmt.Printf("Scope:       %s\n", *scope)
	fmt.Printf("Expires In:  %s\n", ttl)
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(token)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  " + svc.example)
}

func mint(key, issuer, audience, scope string, ttl time.Duration) (string, error) {
	signer, err := servicetoken.NewSigner(key, issuer, audience,
		servicetoken.WithScope(scope),
		servicetoken.WithTTL(ttl),
	)
	if err != nil {
		return "", err
	}
	return signer.Token(context.Background())
}

func printUsage() {
	fmt.Println(`tokengen - Mint service tokens for the mock upstream services

WARNING: Tokens are signed with SERVICE_SIGNING_KEY, or the dev key when unset.
         Only use for local development and testing.

Usage:
  tokengen <command> [flags]

Commands:
  verifier  Token for the verification service (scope proof:request)
  issuer    Token for the issuance service (scope credential:issue)

Flags:
  -scope    Override the scope claim
  -ttl      Token time-to-live (default 5m)
  -issuer   Issuer claim (default proofbridge)
  -json     Output as JSON

Examples:
  tokengen verifier
  tokengen issuer -ttl 1h -json`)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}
