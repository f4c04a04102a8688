package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/V4T54L/loanapp/internal/pkg/config"
	"github.com/V4T54L/loanapp/internal/pkg/logger"
	"github.com/V4T54L/loanapp/internal/pkg/token"
)

// diag-token prints a bearer token for the demo host's /logs endpoints,
// signed with DIAGNOSTICS_JWT_SECRET.
func main() {
	subject := flag.String("sub", "operator", "Token subject")
	ttl := flag.Duration("ttl", 0, "Token lifetime (defaults to DIAGNOSTICS_TOKEN_TTL)")
	flag.Parse()

	log := logger.New("info", "text")

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.Diagnostics.JWTSecret == "" {
		log.Error("DIAGNOSTICS_JWT_SECRET is not set; diagnostics endpoints are open")
		os.Exit(1)
	}
	if *ttl <= 0 {
		*ttl = cfg.Diagnostics.TokenTTL
	}

	tok, err := token.Generate(*subject, cfg.Diagnostics.JWTSecret, *ttl)
	if err != nil {
		log.Error("failed to sign token", "error", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
