package main

import "github.com/xiaot623/gogo/relay/internal/cmd"

func main() {
	cmd.Execute()
}
