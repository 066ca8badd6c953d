package main

import "github.com/safepark/platform-core/cmd"

func main() {
	cmd.Execute()
}
