// Package main provides the hikelog CLI application.
//
// Hikelog is a personal hiking journal. It tracks one active hike at a time,
// records voice notes through ffmpeg, schedules reminders while a hike is in
// progress and imports sessions dropped by an external sync tool.
package main

import (
	"fmt"
	"os"
)

// version is set during build time.
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes the root command with args.
func run(args []string) error {
	root := newRootCmd(&globalOptions{})
	root.SetArgs(args)
	return root.Execute()
}
