package main

import (
	"os"

	"KneeGrader/cmd/grade/commands"
	"KneeGrader/pkg/vision"
)

func main() {
	newAnalyzer := func() commands.FileAnalyzer { return vision.New() }
	if err := commands.Execute(newAnalyzer); err != nil {
		os.Exit(1)
	}
}
