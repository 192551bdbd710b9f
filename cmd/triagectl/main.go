// Command triagectl runs the triage heuristics offline and talks to the
// service's shared infrastructure.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
