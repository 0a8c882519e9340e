package domain

import (
	"errors"
	"strings"
)

// RoomKey is the canonical room identity: lowercase "owner/repo".
// All equivalent spellings of a repository URL map to the same key.
type RoomKey string

var ErrBadRepo = errors.New("not a recognizable owner/repo identity")

func (k RoomKey) String() string { return string(k) }

// NormalizeRepo canonicalizes a repository identity. Accepted forms:
//
//	owner/repo
//	github.com/owner/repo
//	http(s)://github.com/owner/repo
//	https://github.com/owner/repo.git
//	git@github.com:owner/repo.git
//
// Anything that does not reduce to exactly one owner and one repo
// segment is rejected.
func NormalizeRepo(raw string) (RoomKey, error) {
	s := strings.TrimSpace(strings.ToLower(raw))
	if s == "" {
		return "", ErrBadRepo
	}

	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "git@github.com:")
	s = strings.TrimPrefix(s, "www.")
	s = strings.TrimPrefix(s, "github.com/")
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimSuffix(s, ".git")

	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return "", ErrBadRepo
	}
	for _, p := range parts {
		if p == "" || !validSegment(p) {
			return "", ErrBadRepo
		}
	}
	return RoomKey(parts[0] + "/" + parts[1]), nil
}

func validSegment(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}
