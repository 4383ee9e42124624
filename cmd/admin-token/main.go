// Command admin-token issues an admin access token or hashes a password
// for ADMIN_PASSWORD_HASH.
//
//	admin-token -hash 'new password'
//	admin-token -ttl 2h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/iliyamo/visit-reservation/internal/config"
	"github.com/iliyamo/visit-reservation/internal/utils"
)

func main() {
	hash := flag.String("hash", "", "print the bcrypt hash of this password and exit")
	subject := flag.String("sub", "", "token subject (defaults to ADMIN_EMAIL)")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to ACCESS_TOKEN_TTL_MIN)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fail(err)
	}

	if *hash != "" {
		h, err := utils.HashPassword(*hash, cfg.BcryptCost)
		if err != nil {
			fail(err)
		}
		fmt.Println(h)
		return
	}

	sub := *subject
	if sub == "" {
		sub = cfg.AdminEmail
	}
	if sub == "" {
		fail(fmt.Errorf("no subject: pass -sub or set ADMIN_EMAIL"))
	}
	lifetime := *ttl
	if lifetime <= 0 {
		lifetime = cfg.AccessTTL()
	}
	tok, err := utils.NewAccessToken(cfg.JWTSecret, sub, utils.RoleAdmin, lifetime)
	if err != nil {
		fail(err)
	}
	fmt.Println(tok.Token)
	fmt.Fprintln(os.Stderr, "expires", tok.Exp.Format(time.RFC3339))
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "admin-token:", err)
	os.Exit(1)
}
