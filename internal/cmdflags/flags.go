package cmdflags

import (
	"strings"

	"github.com/andrebq/secrets/credential"
	"github.com/urfave/cli/v2"
)

func Database(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = "secrets.db"
	}
	return &cli.StringFlag{
		Name:        "database",
		Aliases:     []string{"db", "d"},
		Usage:       "Path to the sqlite file holding accounts",
		EnvVars:     []string{"SECRETS_DATABASE"},
		Destination: out,
		Value:       *out,
	}
}

func Bind(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = "localhost:3000"
	}
	return &cli.StringFlag{
		Name:        "bind",
		Usage:       "Address to bind the http server",
		EnvVars:     []string{"SECRETS_BIND"},
		Value:       *out,
		Destination: out,
	}
}

func LogLevel(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = "info"
	}
	return &cli.StringFlag{
		Name:        "log-level",
		Usage:       "Minimum level of log messages (trace, debug, info, warn, error)",
		EnvVars:     []string{"SECRETS_LOG_LEVEL"},
		Value:       *out,
		Destination: out,
	}
}

func LogFormat(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = "console"
	}
	return &cli.StringFlag{
		Name:        "log-format",
		Usage:       "Either console or json",
		EnvVars:     []string{"SECRETS_LOG_FORMAT"},
		Value:       *out,
		Destination: out,
	}
}

// Scheme selects how local passwords are stored. The default depends on
// the generation being served.
func Scheme(out *string, def string) cli.Flag {
	return schemeFlag(out, def, credential.EncryptedName, credential.BcryptName, credential.Argon2idName)
}

// OneWayScheme is Scheme for the generations that must never keep a
// recoverable password.
func OneWayScheme(out *string, def string) cli.Flag {
	return schemeFlag(out, def, credential.BcryptName, credential.Argon2idName)
}

func schemeFlag(out *string, def string, names ...string) cli.Flag {
	if len(*out) == 0 {
		*out = def
	}
	return &cli.StringFlag{
		Name:        "scheme",
		Usage:       "Password scheme, one of " + strings.Join(names, ", "),
		Value:       *out,
		Destination: out,
	}
}
