package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/allresumeservices/client-intake/internal/tools/drafts"
	"github.com/allresumeservices/client-intake/internal/tools/migrate"
	"github.com/allresumeservices/client-intake/internal/tools/seed"
	"github.com/allresumeservices/client-intake/internal/tools/smoke"
)

func main() {
	root := &cobra.Command{
		Use:          "intakectl",
		Short:        "Operator tooling for the client intake service",
		SilenceUsage: true,
	}
	root.AddCommand(
		migrate.NewRootCommand(),
		seed.NewRootCommand(),
		drafts.NewRootCommand(),
		smoke.NewRootCommand(),
	)
	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}
