// Package claude embeds the shell wrapper scripts installed into
// .claude/hooks/ by "sdlcguard hook install".
package claude

import "embed"

//go:embed hooks
var FS embed.FS
