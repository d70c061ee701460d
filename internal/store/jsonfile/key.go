package jsonfile

import (
	"fmt"
	"strings"
)

const escapeChar = '='

// fileKey maps a task name to a file name stem. The mapping is injective:
// bytes outside [A-Za-z0-9._-] become =XX, and a leading '.' is escaped so
// names like ".." or ".hidden" never address special or hidden entries.
func fileKey(name string) string {
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		if isPlain(c) && !(i == 0 && c == '.') {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%c%02X", escapeChar, c)
	}
	return b.String()
}

func isPlain(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '.', c == '_', c == '-':
		return true
	}
	return false
}
