package admins

import (
	"crypto/subtle"
	"sort"
	"strings"
)

// Directory is the fixed table of admin credentials. It gates the admin UI;
// it is not an account system.
type Directory struct {
	creds map[string]string
}

func NewDirectory(creds map[string]string) *Directory {
	cp := make(map[string]string, len(creds))
	for u, p := range creds {
		cp[strings.TrimSpace(u)] = p
	}
	return &Directory{creds: cp}
}

// Authenticate reports whether username and password match an entry.
func (d *Directory) Authenticate(username, password string) bool {
	want, ok := d.creds[strings.TrimSpace(username)]
	if !ok {
		// same amount of work for unknown users
		subtle.ConstantTimeCompare([]byte(password), []byte(password))
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(password)) == 1
}

// Known reports whether username is in the table.
func (d *Directory) Known(username string) bool {
	_, ok := d.creds[strings.TrimSpace(username)]
	return ok
}

func (d *Directory) Usernames() []string {
	out := make([]string, 0, len(d.creds))
	for u := range d.creds {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
