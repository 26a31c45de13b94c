package usecase

import "slices"

// IsAuthorized reports whether role appears in allowlist.
func IsAuthorized(role string, allowlist []string) bool {
	return role != "" && slices.Contains(allowlist, role)
}
