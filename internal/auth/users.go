package auth

import (
	"fmt"
	"strings"

	"github.com/ferhatb/linkstats/internal"
)

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserStore is the identity and role lookup: a fixed set of credentialed
// users parsed from configuration.
type UserStore struct {
	users  map[string]string
	admins map[string]bool
}

// NewUserStore parses the admin credentials ("name:password") and an
// optional comma-separated user list ("name:password[:admin]").
func NewUserStore(adminCreds, userList string) (*UserStore, error) {
	store := &UserStore{
		users:  map[string]string{},
		admins: map[string]bool{},
	}

	adminName, adminPass, ok := strings.Cut(adminCreds, ":")
	if !ok || adminName == "" {
		return nil, fmt.Errorf("invalid admin credentials format")
	}
	store.users[adminName] = adminPass
	store.admins[adminName] = true

	if userList == "" {
		return store, nil
	}

	for _, entry := range strings.Split(userList, ",") {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) < 2 || parts[0] == "" {
			return nil, fmt.Errorf("invalid user entry %q", entry)
		}
		store.users[parts[0]] = parts[1]
		store.admins[parts[0]] = len(parts) > 2 && parts[2] == "admin"
	}

	return store, nil
}

// Authenticate checks the credentials and returns the resolved user.
func (s *UserStore) Authenticate(creds Credentials) (internal.User, bool) {
	password, ok := s.users[creds.Username]
	if !ok || password != creds.Password {
		return internal.User{}, false
	}
	return internal.User{Username: creds.Username, Admin: s.admins[creds.Username]}, true
}

// Lookup resolves a username to its current identity and role.
func (s *UserStore) Lookup(username string) (internal.User, bool) {
	if _, ok := s.users[username]; !ok {
		return internal.User{}, false
	}
	return internal.User{Username: username, Admin: s.admins[username]}, true
}
