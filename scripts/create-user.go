// Command create-user provisions an account directly in the store, e.g. for
// seeding a development database.
//
//	go run scripts/create-user.go -email ada@example.com -password-stdin < pw.txt
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/notesd/notesd/internal/auth"
	"github.com/notesd/notesd/internal/model"
	"github.com/notesd/notesd/internal/repository"
	"github.com/notesd/notesd/internal/repository/sqlite"
	"github.com/notesd/notesd/internal/service"
)

type output struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

func main() {
	var (
		databaseURL   = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL URL or sqlite:// path")
		email         = flag.String("email", "", "Account email")
		passwordStdin = flag.Bool("password-stdin", false, "Read the password from stdin instead of NOTESD_PASSWORD")
		format        = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fail("DATABASE_URL is required")
	}
	addr := strings.TrimSpace(*email)
	if addr == "" || !strings.Contains(addr, "@") {
		fail("a valid -email is required")
	}

	password := os.Getenv("NOTESD_PASSWORD")
	if *passwordStdin {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fail("read password: " + err.Error())
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if len(password) < 8 {
		fail("password must be at least 8 characters")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var store service.Store
	var err error
	if sqlite.IsDSN(*databaseURL) {
		store, err = sqlite.Open(ctx, *databaseURL)
	} else {
		store, err = repository.New(ctx, *databaseURL)
	}
	if err != nil {
		fail("connect database: " + err.Error())
	}
	defer store.Close()

	hash, err := auth.NewPasswordHasher().Hash(password)
	if err != nil {
		fail("hash password: " + err.Error())
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Email:        addr,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			fail("email already registered")
		}
		fail("create user: " + err.Error())
	}

	out := output{UserID: user.ID, Email: user.Email}
	if *format == "json" {
		_ = json.NewEncoder(os.Stdout).Encode(out)
		return
	}
	fmt.Printf("created user %s (%s)\n", out.Email, out.UserID)
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
