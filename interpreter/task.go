package interpreter

import (
	"os"
)

func exitProcess(msg string) {
	if msg != "" {
		_, _ = os.Stderr.WriteString(msg + "\n")
	}
	os.Exit(1)
}
