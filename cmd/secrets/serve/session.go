package serve

import (
	"net/http"

	"github.com/andrebq/secrets/accounts"
	"github.com/andrebq/secrets/auth"
	"github.com/andrebq/secrets/credential"
	"github.com/andrebq/secrets/internal/cmdflags"
	"github.com/andrebq/secrets/internal/config"
	"github.com/andrebq/secrets/internal/logutil"
	"github.com/andrebq/secrets/session"
	"github.com/andrebq/secrets/web"
	"github.com/urfave/cli/v2"
)

func sessionCmd() *cli.Command {
	var bind, dbFile, schemeName string
	return &cli.Command{
		Name:  "session",
		Usage: "Third generation, sessions plus optional Google and Facebook logins (signing key read from " + config.SessionSecretEnvVar + ")",
		Flags: []cli.Flag{
			cmdflags.Bind(&bind),
			cmdflags.Database(&dbFile),
			cmdflags.OneWayScheme(&schemeName, credential.Argon2idName),
		},
		Action: func(ctx *cli.Context) error {
			env, err := config.Load()
			if err != nil {
				return err
			}
			if err := env.RequireSessionSecret(); err != nil {
				return err
			}
			scheme, err := credential.OneWay(schemeName)
			if err != nil {
				return err
			}
			cache, err := session.InMemoryStore(env.SessionTTL)
			if err != nil {
				return err
			}
			manager, err := session.NewManager(cache, []byte(env.SessionSecret), env.SessionTTL)
			if err != nil {
				return err
			}
			log := logutil.GetOrDefault(ctx.Context)
			return serveStore(ctx.Context, bind, dbFile, func(store *accounts.Store) (http.Handler, error) {
				registry := auth.NewRegistry()
				if env.Google.Enabled() {
					google, err := auth.NewGoogle(ctx.Context, env.Google, store)
					if err != nil {
						return nil, err
					}
					registry.Register(google)
					log.Info().Msg("Google login enabled")
				}
				if env.Facebook.Enabled() {
					facebook, err := auth.NewFacebook(env.Facebook, store)
					if err != nil {
						return nil, err
					}
					registry.Register(facebook)
					log.Info().Msg("Facebook login enabled")
				}
				return web.AsSessionHandler(ctx.Context, web.SessionConfig{
					Store:           store,
					Local:           auth.NewLocal(store, scheme),
					Strategies:      registry,
					Sessions:        manager,
					State:           auth.NewStateCookie([]byte(env.SessionSecret)),
					LoginsPerMinute: env.LoginsPerMinute,
				})
			})
		},
	}
}
