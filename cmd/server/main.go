package main

import (
	"github.com/spf13/cobra"
)

const releaseVersion = "0.2.0"

func main() {
	cobra.CheckErr(newRootCmd().Execute())
}
