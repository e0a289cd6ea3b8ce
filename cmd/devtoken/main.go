// Command devtoken prints a signed bearer token for local testing against the API.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"streetlab/pkg/middleware"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("devtoken", flag.ExitOnError)
	secret := fs.String("secret", os.Getenv("JWT_SECRET"), "signing secret (defaults to JWT_SECRET)")
	user := fs.String("user", "", "user id (random when empty)")
	username := fs.String("name", "dev", "username claim")
	admin := fs.Bool("admin", false, "grant the admin claim")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	_ = fs.Parse(os.Args[1:])

	if strings.TrimSpace(*secret) == "" {
		fmt.Fprintln(os.Stderr, "missing -secret or JWT_SECRET")
		os.Exit(2)
	}

	userID := uuid.New()
	if *user != "" {
		parsed, err := uuid.Parse(*user)
		if err != nil {
			fmt.Fprintln(os.Stderr, "invalid -user:", err)
			os.Exit(2)
		}
		userID = parsed
	}

	token, err := middleware.IssueToken(*secret, userID, *username, *admin, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sign:", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "user %s\n", userID)
	fmt.Println(token)
}
