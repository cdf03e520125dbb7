// Command cpupm inspects and tunes Linux CPU frequency scaling.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
