package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"avoidance-core/internal/config"
	"avoidance-core/internal/schema"
	"avoidance-core/services/avoidhelm"
)

var validateCmd = &cobra.Command{
	Use:   "validate <templates.yaml>",
	Short: "Check a behavior template file and instantiate its static behaviors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		validator, err := schema.NewTemplateValidator()
		if err != nil {
			return err
		}
		ts, err := config.FileLoader{Path: args[0], Validator: validator}.Load(cmd.Context(), "")
		if err != nil {
			return err
		}
		helm, err := avoidhelm.NewHelm(ts.Vehicle, ts, nil)
		if err != nil {
			return err
		}
		for _, p := range helm.Start() {
			if p.Var == "BHV_WARNING" {
				return fmt.Errorf("%s", p.Value)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: vehicle %s, %d template(s), %d static behavior(s), domain %s\n",
			args[0], ts.Vehicle, len(ts.Behaviors), len(helm.Snapshot()), helm.Domain())
		return nil
	},
}
