// Package display provides user-facing output: the startup banner and
// byte/bitrate formatting used in batch summaries.
package display

import (
	"fmt"
	"os"

	"github.com/kesler/mediabox/internal/term"
)

// PrintBanner prints the mediabox ASCII art logo to stdout, in magenta when
// colors are enabled.
func PrintBanner() {
	if term.Magenta != "" {
		fmt.Fprint(os.Stdout, term.Magenta)
	}
	fmt.Fprint(os.Stdout, ` __  __          _ _       _
|  \/  | ___  __| (_) __ _| |__   _____  __
| |\/| |/ _ \/ _`+"`"+` | |/ _`+"`"+` | '_ \ / _ \ \/ /
| |  | |  __/ (_| | | (_| | |_) | (_) >  <
|_|  |_|\___|\__,_|_|\__,_|_.__/ \___/_/\_\
`)
	if term.Magenta != "" {
		fmt.Fprintln(os.Stdout, term.NC)
	}
}
