package testutil

import (
	"context"
	"os"
	"path/filepath"

	"github.com/andrebq/secrets/accounts"
	"github.com/andrebq/secrets/credential"
)

type (
	TestLog interface {
		Fatal(...interface{})
		Log(...interface{})
	}
)

// AcquireAccountStore opens a writable, empty account store inside a
// temporary directory removed by the returned cleanup.
func AcquireAccountStore(ctx context.Context, t TestLog, name string) (*accounts.Store, func()) {
	dir, err := os.MkdirTemp("", "secrets-tests")
	if err != nil {
		t.Fatal(err)
	}
	store, err := accounts.Open(ctx, filepath.Join(dir, name), true)
	if err != nil {
		os.RemoveAll(dir)
		t.Fatal(err)
	}
	return store, func() {
		err := store.Close()
		if err != nil {
			t.Log("unable to close account store", err)
		}
		err = os.RemoveAll(dir)
		if err != nil {
			t.Log("unable to cleanup temp dir", dir)
		}
	}
}

// AcquirePopulatedStore is AcquireAccountStore plus one local account per
// entry of users (email -> password), derived with scheme.
func AcquirePopulatedStore(ctx context.Context, t TestLog, scheme credential.Scheme, users map[string]string) (*accounts.Store, func()) {
	store, cleanup := AcquireAccountStore(ctx, t, "accounts.db")
	for email, password := range users {
		stored, err := scheme.Derive(password)
		if err != nil {
			cleanup()
			t.Fatal(err)
		}
		_, err = store.Create(ctx, accounts.Account{Email: email, Password: stored, DisplayName: email})
		if err != nil {
			cleanup()
			t.Fatal(err)
		}
	}
	return store, cleanup
}

// CheapArgon2id keeps the argon2id format while making tests fast.
func CheapArgon2id() credential.Scheme {
	return credential.NewArgon2idWithParams(credential.Argon2Params{
		Memory:      1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
}
