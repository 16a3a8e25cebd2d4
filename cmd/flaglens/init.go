package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/unbound-force/flaglens/internal/scaffold"
)

func newInitCmd() *cobra.Command {
	var (
		fileName string
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a starter flag configuration file",
		Long: `Write a starter flags.yaml with one example flag per value type
(boolean, string, number, object) into the target directory. The
file passes 'flaglens lint' as-is and is ready to edit.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			_, err := scaffold.Run(scaffold.Options{
				TargetDir: dir,
				FileName:  fileName,
				Force:     force,
				Stdout:    os.Stdout,
			})
			return err
		},
	}

	cmd.Flags().StringVar(&fileName, "file", scaffold.DefaultFileName,
		"output file name (.json writes JSON)")
	cmd.Flags().BoolVar(&force, "force", false,
		"overwrite an existing flag file")

	return cmd
}
