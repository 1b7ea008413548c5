package main

import (
	"log"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lsptrace",
	Short: "Drives and traces a language server",
	Long:  "Drives a language server through a scripted session and inspects the binary traces it leaves behind.",
}

func init() {
	rootCmd.AddCommand(sessionCmd())
	rootCmd.AddCommand(logCmd())
}

func main() {
	fatal(rootCmd.Execute())
}

func fatal(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
