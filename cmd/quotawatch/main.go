package main

import "github.com/quotawatch/quotawatch/internal/cli"

func main() {
	cli.Execute()
}
