// Command devtoken mints an identity token for local runs against the
// portal, signed with JWT_SECRET the way the identity provider would.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/iliyamo/partner-portal/internal/config"
	"github.com/iliyamo/partner-portal/internal/model"
	"github.com/iliyamo/partner-portal/internal/utils"
)

func main() {
	email := flag.String("email", "", "user email (required; links the user to an agency)")
	name := flag.String("name", "", "display name")
	sub := flag.String("sub", "", "subject claim")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	config.LoadDotEnv()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
		os.Exit(1)
	}
	tok, err := utils.NewIdentityToken(secret, os.Getenv("JWT_ISSUER"), model.Identity{Subject: *sub, Email: *email, Name: *name}, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(tok.Token)
}
