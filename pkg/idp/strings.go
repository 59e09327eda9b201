package idp

import (
	"slices"
	"strings"
)

func SplitWithSpaces(s string) []string {
	var slice []string
	if strings.ReplaceAll(strings.TrimSpace(s), " ", "") != "" {
		slice = strings.Split(s, " ")
	}

	return slice
}

func ContainsOpenID(scopes []string) bool {
	return slices.Contains(scopes, ScopeOpenID)
}
