package main

import "github.com/haven-app/haven/internal/cmd"

func main() {
	cmd.Execute()
}
