// Command devtoken prints a signed access token for local testing.
//
//	go run ./cmd/devtoken -user 7d0c0d6e-4b1f-4a55-9d7a-0c7f3f0b8d11
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/yungbote/studyforge-backend/internal/app"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
	"github.com/yungbote/studyforge-backend/internal/services"
)

func main() {
	_ = godotenv.Load()

	userFlag := flag.String("user", "", "user id to embed (random when empty)")
	flag.Parse()

	userID := uuid.New()
	if *userFlag != "" {
		parsed, err := uuid.Parse(*userFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -user: %v\n", err)
			os.Exit(2)
		}
		userID = parsed
	}

	cfg := app.LoadConfig()
	if cfg.JWTSecretKey == "" {
		if cfg.IsProduction() {
			fmt.Fprintln(os.Stderr, "JWT_SECRET_KEY is required in production")
			os.Exit(1)
		}
		cfg.JWTSecretKey = app.DevJWTSecret
	}

	auth := services.NewAuthService(logger.NewNop(), cfg.JWTSecretKey, cfg.JWTIssuer, cfg.AccessTokenTTL)
	token, err := auth.IssueAccessToken(userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "user_id=%s ttl=%s\n", userID, auth.GetAccessTTL())
	fmt.Println(token)
}
