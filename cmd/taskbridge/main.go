// Command taskbridge keeps notes-app checkbox items and task-manager
// to-dos in sync.
package main

import "github.com/mesh-intelligence/taskbridge/internal/cli"

func main() {
	cli.Execute()
}
