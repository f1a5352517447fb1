// Command admintoken mints admin tokens for the /orders routes.
//
//	admintoken -sub ops -ttl 12h
//	admintoken -gen-secret
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/pesapal_api/internal/config"
	"github.com/GTDGit/pesapal_api/internal/utils"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	subject := flag.String("sub", "admin", "token subject")
	ttl := flag.Duration("ttl", 0, "token lifetime (default ADMIN_TOKEN_TTL)")
	genSecret := flag.Bool("gen-secret", false, "print a new random ADMIN_JWT_SECRET and exit")
	flag.Parse()

	if *genSecret {
		secret, err := utils.GenerateSecret()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to generate secret")
		}
		fmt.Println(secret)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.Admin.JWTSecret == "" {
		log.Fatal().Msg("ADMIN_JWT_SECRET is not set")
	}

	lifetime := cfg.Admin.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	token, err := utils.GenerateJWT(cfg.Admin.JWTSecret, *subject, lifetime, time.Now())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to mint token")
	}
	log.Info().Str("sub", *subject).Dur("ttl", lifetime).Msg("admin token minted")
	fmt.Println(token)
}
