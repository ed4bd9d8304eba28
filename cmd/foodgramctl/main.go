package main

import "github.com/pageza/foodgram/backend/internal/cli"

func main() {
	cli.Execute()
}
