package accounts

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/andrebq/secrets/accounts"
	"github.com/andrebq/secrets/auth"
	"github.com/andrebq/secrets/credential"
	"github.com/andrebq/secrets/internal/cmdflags"
	"github.com/andrebq/secrets/internal/config"
	"github.com/andrebq/secrets/internal/logutil"
	"github.com/urfave/cli/v2"
)

func Cmd() *cli.Command {
	var dbFile string
	return &cli.Command{
		Name:  "accounts",
		Usage: "Manage local accounts directly in the account store",
		Flags: []cli.Flag{
			cmdflags.Database(&dbFile),
		},
		Subcommands: []*cli.Command{
			registerCmd(&dbFile),
			revealCmd(&dbFile),
		},
	}
}

func registerCmd(dbFile *string) *cli.Command {
	var username, schemeName string
	return &cli.Command{
		Name:  "register",
		Usage: "Register a new local account (password is read from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "username",
				Aliases:     []string{"u", "user"},
				Usage:       "Email of the account to register",
				Destination: &username,
				Required:    true,
			},
			cmdflags.Scheme(&schemeName, credential.Argon2idName),
		},
		Action: func(ctx *cli.Context) error {
			sc := bufio.NewScanner(os.Stdin)
			if !sc.Scan() {
				if sc.Err() != nil {
					return sc.Err()
				}
				return errors.New("missing password from stdin")
			}
			password := strings.TrimSpace(sc.Text())
			if len(password) == 0 {
				return errors.New("missing password from stdin")
			}
			env, err := config.Load()
			if err != nil {
				return err
			}
			scheme, err := credential.ForGeneration(schemeName, env.EncryptionSecret)
			if err != nil {
				return err
			}
			store, err := accounts.Open(ctx.Context, *dbFile, true)
			if err != nil {
				return err
			}
			defer store.Close()
			id, err := auth.NewLocal(store, scheme).Register(ctx.Context, username, password)
			if err != nil {
				return err
			}
			log := logutil.GetOrDefault(ctx.Context)
			log.Info().Str("account", id.ID).Str("username", id.Username).Str("scheme", scheme.Name()).Msg("Account registered")
			return nil
		},
	}
}

// revealCmd reads the password of an encrypted account back in clear text.
func revealCmd(dbFile *string) *cli.Command {
	var username string
	return &cli.Command{
		Name:  "reveal",
		Usage: "Print the password of an account stored by the encrypted generation (secret read from " + config.EncryptionSecretEnvVar + ")",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "username",
				Aliases:     []string{"u", "user"},
				Usage:       "Email of the account",
				Destination: &username,
				Required:    true,
			},
		},
		Action: func(ctx *cli.Context) error {
			env, err := config.Load()
			if err != nil {
				return err
			}
			scheme, err := credential.NewEncrypted(env.EncryptionSecret)
			if err != nil {
				return err
			}
			store, err := accounts.Open(ctx.Context, *dbFile, false)
			if err != nil {
				return err
			}
			defer store.Close()
			acc, err := store.FindByEmail(ctx.Context, username)
			if err != nil {
				return err
			}
			plain, err := scheme.Reveal(acc.Password)
			if err != nil {
				return fmt.Errorf("unable to reveal password of %v (was it stored by another generation?), cause %w", acc.Email, err)
			}
			_, err = fmt.Fprintln(ctx.App.Writer, plain)
			return err
		},
	}
}
