// cmd/stratagate/main.go
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dalemusser/stratagate/internal/app/bootstrap"
	"github.com/dalemusser/waffle/app"
)

func main() {
	if err := app.Run(context.Background(), bootstrap.Hooks); err != nil {
		fmt.Fprintf(os.Stderr, "stratagate: %v\n", err)
		os.Exit(1)
	}
}
