// Command postctl drives the post generator from a terminal. It works on the
// configured record store directly, so stop the server first when the store is
// badger (badger holds an exclusive lock on its directory).
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
