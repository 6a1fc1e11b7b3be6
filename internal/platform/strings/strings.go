// Package strings provides small string helpers for config values and routes
package strings

import std "strings"

// List splits a comma separated value, trimming blanks and dropping empty items
func List(s string) []string {
	var out []string
	for _, item := range std.Split(s, ",") {
		if item = std.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Or returns s unless it is blank, then def
func Or(s, def string) string {
	if std.TrimSpace(s) == "" {
		return def
	}
	return s
}

// Prefix normalizes a mount path to a single leading slash and no trailing slash.
// Blank input is the root
func Prefix(s string) string {
	return "/" + std.Trim(std.TrimSpace(s), " /")
}
