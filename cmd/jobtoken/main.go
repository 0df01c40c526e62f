// Command jobtoken выпускает токен для внешнего планировщика, который дергает ручки задач.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/magabrotheeeer/menoease/internal/config"
	"github.com/magabrotheeeer/menoease/internal/lib/jwt"
	"github.com/magabrotheeeer/menoease/internal/lib/sl"
)

func main() {
	subject := flag.String("subject", "cron", "token subject")
	flag.Parse()

	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if cfg.JWTSecretKey == "" {
		logger.Error("jobs jwt secret is not set")
		os.Exit(1)
	}

	token, err := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL).GenerateToken(*subject, jwt.ScopeRunJobs)
	if err != nil {
		logger.Error("failed to generate token", sl.Err(err))
		os.Exit(1)
	}
	fmt.Println(token)
}
