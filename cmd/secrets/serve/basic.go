package serve

import (
	"net/http"

	"github.com/andrebq/secrets/accounts"
	"github.com/andrebq/secrets/auth"
	"github.com/andrebq/secrets/credential"
	"github.com/andrebq/secrets/internal/cmdflags"
	"github.com/andrebq/secrets/internal/config"
	"github.com/andrebq/secrets/web"
	"github.com/urfave/cli/v2"
)

func encryptedCmd() *cli.Command {
	var bind, dbFile string
	return &cli.Command{
		Name:  "encrypted",
		Usage: "First generation, passwords are encrypted with a static secret (read from " + config.EncryptionSecretEnvVar + ")",
		Flags: []cli.Flag{
			cmdflags.Bind(&bind),
			cmdflags.Database(&dbFile),
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
			return serveBasic(ctx, bind, dbFile, scheme, env.LoginsPerMinute)
		},
	}
}

func hashedCmd() *cli.Command {
	var bind, dbFile, schemeName string
	return &cli.Command{
		Name:  "hashed",
		Usage: "Second generation, passwords are kept as salted one-way hashes",
		Flags: []cli.Flag{
			cmdflags.Bind(&bind),
			cmdflags.Database(&dbFile),
			cmdflags.OneWayScheme(&schemeName, credential.BcryptName),
		},
		Action: func(ctx *cli.Context) error {
			env, err := config.Load()
			if err != nil {
				return err
			}
			scheme, err := credential.OneWay(schemeName)
			if err != nil {
				return err
			}
			return serveBasic(ctx, bind, dbFile, scheme, env.LoginsPerMinute)
		},
	}
}

func serveBasic(ctx *cli.Context, bind, dbFile string, scheme credential.Scheme, loginsPerMinute int) error {
	return serveStore(ctx.Context, bind, dbFile, func(store *accounts.Store) (http.Handler, error) {
		return web.AsBasicHandler(ctx.Context, web.BasicConfig{
			Store:           store,
			Local:           auth.NewLocal(store, scheme),
			LoginsPerMinute: loginsPerMinute,
		})
	})
}
