// Command loupe inspects the trie fragments a search backend answers with,
// as interactive graphs in the browser or the terminal.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
