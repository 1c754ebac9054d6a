package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-storefront/internal/config"
	apperrors "github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/jrsteele09/go-storefront/internal/logging"
	"github.com/jrsteele09/go-storefront/storefront"
	"github.com/rs/zerolog/log"
)

const usage = `usage: storefront [-token-file path] [-quiet] <command> [flags] [args]

commands:
  login -email e -password p     start a session
  register -nombre ... -password p
  profile                        show the logged in user
  logout | logout-all            end this session | every session
  guard                          check whether the stored token is still accepted
  products [-search s] [-categoria c] [-page n] [-limit n]
  product <id>
  cart
  add <productId> [quantity]
  update <itemId> <quantity>
  remove <itemId>
  clear
  checkout -card n -holder h -expiry MM/YY -cvv c [-address a]
  orders
  order <id>
`

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to load .env")
	}

	global := flag.NewFlagSet("storefront", flag.ExitOnError)
	tokenFile := global.String("token-file", ".storefront-token", "file the session token is kept in between runs")
	quiet := global.Bool("quiet", false, "skip the banner")
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	_ = global.Parse(os.Args[1:])

	if global.NArg() == 0 {
		global.Usage()
		os.Exit(2)
	}

	c := config.New()
	logging.Setup(c.GetEnv(), c.GetLogLevel())
	if !*quiet {
		displayAppname(c.GetAppName())
	}

	if err := run(c, *tokenFile, global.Arg(0), global.Args()[1:]); err != nil {
		fmt.Fprintln(os.Stderr, apperrors.UserMessage(err))
		log.Debug().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func run(c config.Config, tokenFile, command string, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sf, err := storefront.New(c, storefront.WithRestoredToken(loadToken(tokenFile)))
	if err != nil {
		return err
	}
	defer sf.Close()
	defer saveToken(tokenFile, sf)

	cmd, ok := commands[command]
	if !ok {
		return fmt.Errorf("unknown command %q\n\n%s", command, usage)
	}
	return cmd(ctx, sf, args)
}

func loadToken(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// saveToken persists whatever token the session ended with, rotations included
func saveToken(path string, sf *storefront.Storefront) {
	raw := sf.Tokens.Get()
	if raw == "" {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("failed to remove token file")
		}
		return
	}
	if err := os.WriteFile(path, []byte(raw+"\n"), 0o600); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to save token")
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
