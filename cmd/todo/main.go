package main

import (
	"os"

	"github.com/zyrian-nova/todo-app/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
