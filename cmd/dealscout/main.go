// Command dealscout serves the product search API and runs one-off
// searches from the terminal.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
