package main

import (
	"context"
	"fmt"
	"os"

	"github.com/hitoshi/movieverse/internal/app"
)

func main() {
	if err := app.Run(context.Background(), os.Stdout, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
