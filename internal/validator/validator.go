// Package validator holds the field rules the protocol-level struct tags
// can't express. Error strings are short machine-readable tags the client
// maps to its own messages.
package validator

import (
	"fmt"
	"regexp"
	"unicode"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9._-]*[a-zA-Z0-9])?$`)

func Username(username string) error {
	length := len(username)
	if length < 3 {
		return fmt.Errorf("short_username")
	}
	if length > 32 {
		return fmt.Errorf("long_username")
	}
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("bad_format")
	}
	return nil
}

func ChannelName(name string) error {
	if name == "" {
		return fmt.Errorf("empty_name")
	}
	if len(name) > 64 {
		return fmt.Errorf("long_name")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("bad_format")
		}
	}
	return nil
}
