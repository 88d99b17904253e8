package accounts

import "fmt"

type (
	AccountNotFound struct {
		Key   string
		Value string
	}

	DuplicateAccount struct {
		Field string
		Value string
	}

	InvalidAccount struct {
		Reason string
	}

	UnknownProvider struct {
		Name string
	}
)

func (a AccountNotFound) Error() string {
	return fmt.Sprintf("account with %v %q not found", a.Key, a.Value)
}

func (d DuplicateAccount) Error() string {
	return fmt.Sprintf("an account with %v %q already exists", d.Field, d.Value)
}

func (i InvalidAccount) Error() string {
	return fmt.Sprintf("invalid account: %v", i.Reason)
}

func (u UnknownProvider) Error() string {
	return fmt.Sprintf("identity provider %q is not supported", u.Name)
}
