// Command gymctl administers the membership API: schema migrations, the order
// audit log and order operations against a running gateway.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
