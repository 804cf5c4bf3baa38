/*
Package chat contains the core logic of the real-time chat: the connection registry,
the bounded message log, presence notifications and the session controller that drives them.

This file defines the Registry, which maps connection handles to joined users and enforces
case-insensitive username uniqueness.
*/
package chat

import (
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"livechat/internal/app/user"
	"livechat/internal/pkg/errs"
	"livechat/internal/pkg/randx"
)

// registryEntry is the live record owned by the Registry.
type registryEntry struct {
	user user.User

	// seq orders entries by join for snapshots; join times may collide.
	seq uint64
}

// Registry maps connection handles to joined users.
type Registry struct {
	// mu guards every field below; check-then-insert runs under a single Lock.
	mu sync.RWMutex

	// entries keyed by connection handle.
	entries map[string]*registryEntry

	// names maps the folded username to the connection handle holding it.
	names map[string]string

	// nextSeq is the sequence number handed to the next successful join.
	nextSeq uint64

	// maxUsernameLength bounds usernames in characters; zero disables the check.
	maxUsernameLength int

	// now is the clock used for join times.
	now func() time.Time
}

// NewRegistry constructs an empty Registry.
func NewRegistry(maxUsernameLength int) *Registry {
	return &Registry{
		entries:           make(map[string]*registryEntry),
		names:             make(map[string]string),
		maxUsernameLength: maxUsernameLength,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

func foldUsername(username string) string {
	return strings.ToLower(username)
}

// Register creates a user for handle with the given username.
// The username is trimmed; an empty result fails with ErrUsernameRequired, and a name
// already held by another connection (case-insensitive) fails with ErrUsernameTaken.
// A handle that already holds a user fails with ErrAlreadyJoined.
func (r *Registry) Register(handle, username string) (user.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return user.User{}, errs.NewError(errs.ErrUsernameRequired)
	}

	if r.maxUsernameLength > 0 && utf8.RuneCountInString(username) > r.maxUsernameLength {
		return user.User{}, errs.NewError(errs.ErrUsernameTooLong, r.maxUsernameLength)
	}

	folded := foldUsername(username)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[handle]; ok {
		return user.User{}, errs.NewError(errs.ErrAlreadyJoined)
	}

	if _, taken := r.names[folded]; taken {
		return user.User{}, errs.NewError(errs.ErrUsernameTaken)
	}

	entry := &registryEntry{
		user: user.User{
			ID:       randx.UserID(),
			Username: username,
			ConnID:   handle,
			JoinTime: r.now(),
		},
		seq: r.nextSeq,
	}
	r.nextSeq++

	r.entries[handle] = entry
	r.names[folded] = handle

	return entry.user, nil
}

// Lookup returns the user registered for handle.
func (r *Registry) Lookup(handle string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[handle]
	if !ok {
		return user.User{}, errs.NewError(errs.ErrUserNotFound)
	}

	return entry.user, nil
}

// Remove deletes and returns the user registered for handle.
// Removing a handle twice reports ErrUserNotFound the second time.
func (r *Registry) Remove(handle string) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[handle]
	if !ok {
		return user.User{}, errs.NewError(errs.ErrUserNotFound)
	}

	delete(r.entries, handle)
	delete(r.names, foldUsername(entry.user.Username))

	return entry.user, nil
}

// SetTyping updates the typing flag of the user registered for handle.
func (r *Registry) SetTyping(handle string, isTyping bool) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[handle]
	if !ok {
		return user.User{}, errs.NewError(errs.ErrUserNotFound)
	}

	entry.user.IsTyping = isTyping

	return entry.user, nil
}

// Snapshot returns the online users ordered by join.
func (r *Registry) Snapshot() []user.Presence {
	r.mu.RLock()
	entries := r.sortedEntries()
	r.mu.RUnlock()

	presences := make([]user.Presence, 0, len(entries))
	for _, entry := range entries {
		presences = append(presences, entry.user.Presence())
	}

	return presences
}

// Handles returns the connection handles of all joined users ordered by join.
// Every joined connection is a member of the room, so this is the broadcast set.
func (r *Registry) Handles() []string {
	r.mu.RLock()
	entries := r.sortedEntries()
	r.mu.RUnlock()

	handles := make([]string, 0, len(entries))
	for _, entry := range entries {
		handles = append(handles, entry.user.ConnID)
	}

	return handles
}

// Size returns the number of joined users.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

// sortedEntries copies the entries ordered by join sequence. Caller holds mu.
func (r *Registry) sortedEntries() []registryEntry {
	entries := make([]registryEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		entries = append(entries, *entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq < entries[j].seq
	})

	return entries
}
