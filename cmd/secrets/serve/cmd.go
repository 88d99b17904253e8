package serve

import (
	"context"
	"net/http"

	"github.com/andrebq/secrets/accounts"
	"github.com/andrebq/secrets/internal/httpserver"
	"github.com/andrebq/secrets/internal/logutil"
	"github.com/urfave/cli/v2"
)

func Cmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the site using one of its authentication generations",
		Subcommands: []*cli.Command{
			encryptedCmd(),
			hashedCmd(),
			sessionCmd(),
		},
	}
}

// serveStore opens the account store at dbFile, builds the handler on top
// of it and serves it until ctx is done.
func serveStore(ctx context.Context, bind, dbFile string, build func(*accounts.Store) (http.Handler, error)) error {
	store, err := accounts.Open(ctx, dbFile, true)
	if err != nil {
		return err
	}
	defer store.Close()
	handler, err := build(store)
	if err != nil {
		return err
	}
	log := logutil.GetOrDefault(ctx)
	log.Info().Str("database", dbFile).Msg("Account store ready")
	return httpserver.Serve(ctx, bind, logutil.Middleware(log)(handler))
}
