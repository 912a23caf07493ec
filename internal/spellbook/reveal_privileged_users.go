// Spellbook - ThoughtSpot Admin Augmentation Toolkit
// Copyright 2026 boonhapus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/boonhapus/spellbook-thoughtspot

package spellbook

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/boonhapus/spellbook-thoughtspot/internal/logging"
	"github.com/boonhapus/spellbook-thoughtspot/internal/thoughtspot"
)

const (
	privilegedUsersPageSize = 20
	administrationPrivilege = "ADMINISTRATION"
)

// RevealPrivilegedUsers highlights administrators in the admin user list.
//
// On invoke it pages through users/search collecting the name of every user
// holding the ADMINISTRATION privilege, then renders a script that tags the
// matching rows with an `is-privileged-user` class.
type RevealPrivilegedUsers struct {
	mu    sync.RWMutex
	users map[string]struct{}
}

// NewRevealPrivilegedUsers creates the spell with an empty user cache.
func NewRevealPrivilegedUsers() *RevealPrivilegedUsers {
	return &RevealPrivilegedUsers{users: make(map[string]struct{})}
}

// Key binds the spell to every event on the admin page.
func (s *RevealPrivilegedUsers) Key() string {
	return SpellKey("/admin", Wildcard)
}

// Invoke refreshes the privileged-user cache.
func (s *RevealPrivilegedUsers) Invoke(ctx context.Context, session Session) error {
	return s.fetchPrivilegedUsers(ctx, session, "0", administrationPrivilege)
}

// fetchPrivilegedUsers pages through users/search until a short page means
// there is nothing more to fetch. The cache is replaced wholesale, so a user
// who lost the privilege since the last invoke is dropped.
func (s *RevealPrivilegedUsers) fetchPrivilegedUsers(ctx context.Context, session Session, org, privilege string) error {
	found := make(map[string]struct{})
	offset := 0

	for {
		resp, err := session.SearchUsers(ctx, thoughtspot.UserSearchRequest{
			RecordOffset:   offset,
			RecordSize:     privilegedUsersPageSize,
			OrgIdentifiers: []string{org},
			Privileges:     []string{privilege},
			SortOptions:    &thoughtspot.SortOptions{FieldName: "NAME", Order: "ASC"},
		})
		if err != nil {
			return fmt.Errorf("search privileged users: %w", err)
		}
		if !resp.IsSuccess() {
			logging.Error().
				Int("status", resp.StatusCode).
				Str("spell", s.Key()).
				Msg("User search failed")
			break
		}

		var page []struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(resp.Body, &page); err != nil {
			return fmt.Errorf("decode user search page: %w", err)
		}

		for _, user := range page {
			found[user.Name] = struct{}{}
		}

		if len(page) < privilegedUsersPageSize {
			break
		}
		offset = len(found)
	}

	s.mu.Lock()
	s.users = found
	s.mu.Unlock()
	return nil
}

// Users returns the cached privileged-user names, sorted.
func (s *RevealPrivilegedUsers) Users() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.users))
	for name := range s.users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render emits the highlighting script and its stylesheet.
func (s *RevealPrivilegedUsers) Render() Fragment {
	names, err := json.Marshal(s.Users())
	if err != nil {
		// A []string cannot fail to marshal; keep the render total anyway.
		names = []byte("[]")
	}

	script := fmt.Sprintf(`
function revealPrivilegedUsers() {
    const privilegedUsers = %s;
    const spans = document.getElementsByTagName('span');

    // A <span> matching a privileged user marks its nearest ancestor <li>.
    for (let i = 0; i < spans.length; i++) {
        if (privilegedUsers.includes(spans[i].textContent)) {
            spans[i].closest('li').classList.add('is-privileged-user');
        }
    }
}

revealPrivilegedUsers();
`, names)

	style := `
.is-privileged-user {
    background-color: #f4e7fd;
}
`

	return Fragment{Script: script, Style: style}
}
