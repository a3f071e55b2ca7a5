// Global library config.
package config

// Name of the library, used as the REPL prompt prefix.
const DBName = "bplustable"

// Prompt printed by REPL.
const Prompt = DBName + "> "

// DefaultBlockSize is used when a caller doesn't specify one.
// order = DefaultBlockSize / 12.
const DefaultBlockSize = 4096

// Name of the operation log file cmd/btreedb appends to.
const LogFileName = "btreedb.log"

// Return prompt if requested, else "".
func GetPrompt(flag bool) string {
	if flag {
		return Prompt
	}
	return ""
}
