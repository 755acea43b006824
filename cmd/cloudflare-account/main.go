package main

import "github.com/illallangi/cloudflare-tools/internal/cli"

func main() {
	cli.Execute()
}
