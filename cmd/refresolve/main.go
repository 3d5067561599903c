// Command refresolve seeds a reference database and resolves entity keys
// against it through the same resolver and caches used in process.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
