// Command jetpreview saves links with their preview metadata and serves
// previews over HTTP and Telegram.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
