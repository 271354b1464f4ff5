package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// tokengen mints an HS256 access token the finance-2fa service accepts.
func main() {
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "Secret key for signing the token (defaults to $JWT_SECRET)")
	subject := flag.String("subject", "", "User ID (UUID) placed in the sub claim")
	email := flag.String("email", "", "Email placed in the email claim")
	expiry := flag.Duration("expiry", 30*time.Minute, "Token expiry duration (e.g., 30m, 1h, 24h)")
	outputFormat := flag.String("format", "compact", "Output format: compact or full")
	flag.Parse()

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "Error: -secret or JWT_SECRET is required")
		os.Exit(1)
	}
	if _, err := uuid.Parse(*subject); err != nil {
		slog.Error("Subject is not a UUID", "subject", *subject, "err", err)
		fmt.Fprintf(os.Stderr, "Error: -subject must be a UUID: %v\n", err)
		os.Exit(1)
	}

	now := time.Now()
	expiresAt := now.Add(*expiry)
	claims := jwt.MapClaims{
		"sub": *subject,
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	}
	if *email != "" {
		claims["email"] = *email
	}

	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(*secret))
	if err != nil {
		slog.Error("Failed to sign token", "err", err)
		fmt.Fprintf(os.Stderr, "Error: Failed to sign token: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "full":
		fmt.Printf("Token: %s\nExpires: %s\n", tokenStr, expiresAt.Format(time.RFC3339))
	default:
		fmt.Println(tokenStr)
	}
}
