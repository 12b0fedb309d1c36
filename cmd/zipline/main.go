package main

import (
	"os"

	"github.com/nguyengg/zipline/internal/cmd"
)

func main() {
	p, err := cmd.NewParser()
	if err != nil {
		os.Exit(1)
	}

	_, err = p.Parse()
	exit(err)
}
