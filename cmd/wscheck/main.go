package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/park285/cheese-chess-server/internal/auth"
	"github.com/park285/cheese-chess-server/internal/probe"
	"github.com/park285/cheese-chess-server/pkg/chessdto"
)

// wscheck smoke-tests a running server: health, handshake, lobby and friends.
func main() {
	baseURL := getenvDefault("SERVER_URL", "http://localhost:8080")
	login := getenvDefault("CHECK_LOGIN", "wscheck")
	secret := os.Getenv("JWT_SECRET")
	if strings.TrimSpace(secret) == "" {
		log.Fatal("JWT_SECRET is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := probe.NewClient(baseURL, probe.WithTimeout(3*time.Second)).Health(ctx); err != nil {
		log.Printf("/healthz error: %v", err)
	} else {
		log.Printf("/healthz ok")
	}

	verifier, err := auth.NewVerifier(secret, os.Getenv("JWT_ISSUER"), os.Getenv("JWT_AUDIENCE"))
	if err != nil {
		log.Fatalf("verifier: %v", err)
	}
	token, err := verifier.Issue(login, login, time.Minute)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}

	wsURL := "ws" + strings.TrimPrefix(strings.TrimRight(baseURL, "/"), "http") + "/ws"
	sess, err := probe.Dial(context.Background(), wsURL, token)
	if err != nil {
		log.Fatalf("WS connect error: %v", err)
	}
	defer sess.Close()

	// Observe for a short window
	wctx, wcancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer wcancel()
	for _, kind := range []string{chessdto.CmdGetActiveGames, chessdto.CmdGetOnlineFriends} {
		if err := sess.Send(wctx, chessdto.Command{Type: kind}); err != nil {
			log.Fatalf("send %s: %v", kind, err)
		}
	}
	for {
		env, err := sess.Next(wctx)
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) {
				log.Printf("WS read error: %v", err)
			}
			return
		}
		fmt.Printf("WS %s %s\n", env.Type, env.Payload)
	}
}

func getenvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}
