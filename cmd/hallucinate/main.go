// Command hallucinate runs the reference verification engine against a
// pre-extracted list of bibliographic references and reports which ones
// could not be confirmed against any backend.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
