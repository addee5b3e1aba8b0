// Command refctl is the operator CLI for the reference allocator: it migrates the
// store, allocates or previews identifiers, purges expired reservations and
// mints tokens for service accounts.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
