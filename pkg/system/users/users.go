// Package users maps numeric uids to account names.
package users

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"os/user"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

var errMalformedGetentEntry = errors.New("users: malformed getent entry")

// getentCommand runs getent; replaced in tests.
var getentCommand = func(args ...string) (string, error) {
	out, err := exec.Command("getent", args...).Output()
	return string(out), err
}

// LookupFunc resolves one uid against the identity database.
type LookupFunc func(uid uint32) (string, error)

// System resolves uid through the C library's user database (os/user) and
// falls back to getent, which also sees NSS sources such as LDAP or
// systemd dynamic users when os/user was built without cgo.
func System(uid uint32) (string, error) {
	id := strconv.FormatUint(uint64(uid), 10)
	u, err := user.LookupId(id)
	if err == nil {
		return u.Username, nil
	}
	name, gerr := usernameFromGetent(id)
	if gerr != nil {
		return "", fmt.Errorf("lookup uid %s: %w", id, errors.Join(err, gerr))
	}
	return name, nil
}

// usernameFromGetent parses a passwd entry, e.g.
// deleteme:x:63367:63367:Dynamic User:/:/usr/sbin/nologin
func usernameFromGetent(id string) (string, error) {
	out, err := getentCommand("passwd", id)
	if err != nil {
		return "", err
	}
	if i := strings.IndexByte(out, ':'); i > 0 {
		return out[:i], nil
	}
	return "", errMalformedGetentEntry
}

type entry struct {
	name string
	ok   bool
}

// Cache is a read-through, size and age bounded uid to name cache. Failed
// lookups are cached too, so an unknown uid costs one lookup per TTL.
// Safe for concurrent use.
type Cache struct {
	lookup LookupFunc
	lru    *expirable.LRU[uint32, entry]
	log    *slog.Logger
}

// NewCache wraps lookup with an LRU of size entries that expire after ttl.
// A ttl of zero keeps entries until evicted.
func NewCache(size int, ttl time.Duration, lookup LookupFunc) *Cache {
	if size <= 0 {
		size = 256
	}
	return &Cache{
		lookup: lookup,
		lru:    expirable.NewLRU[uint32, entry](size, nil, ttl),
		log:    slog.With("component", "users.Cache"),
	}
}

// Lookup returns the name for uid and whether one was found.
func (c *Cache) Lookup(uid uint32) (string, bool) {
	if e, ok := c.lru.Get(uid); ok {
		return e.name, e.ok
	}
	name, err := c.lookup(uid)
	if err != nil {
		c.log.Debug("uid lookup failed", "uid", uid, "error", err)
	}
	e := entry{name: name, ok: err == nil && name != ""}
	c.lru.Add(uid, e)
	return e.name, e.ok
}

// Len returns the number of cached uids.
func (c *Cache) Len() int { return c.lru.Len() }
