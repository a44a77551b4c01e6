// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import (
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidID is returned by ParseID for anything that is not a positive
// 64-bit integer.
var ErrInvalidID = errors.New("invalid id")

// ParseID parses a positive int64 such as a Telegram user id.
//
// Example:
//
//	id, err := utils.ParseID("123456") // 123456, nil
//	_, err = utils.ParseID("-5")       // ErrInvalidID
func ParseID(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, ErrInvalidID
	}
	return n, nil
}

// SplitFirst returns the first whitespace-separated field of s and the
// trimmed remainder.
//
//	SplitFirst("  42  Ada Lovelace ") // "42", "Ada Lovelace"
func SplitFirst(s string) (first, rest string) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t\n")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i+1:])
}
