/*
 * Copyright 2022 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cli

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/cloudwego/hloopt"
	"github.com/cloudwego/hloopt/internal/opts"
	"github.com/cloudwego/hloopt/internal/passes"
)

// NewPassesCommand creates the passes command.
func NewPassesCommand(rootOpts *RootOptions) *cobra.Command {
	var pipeline string
	var dump bool

	cmd := &cobra.Command{
		Use:   "passes",
		Short: "List the registered passes and the pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dump {
				return dumpDefaultPipeline(cmd)
			}
			return runPasses(pipeline, cmd)
		},
	}

	cmd.Flags().StringVar(&pipeline, "pipeline", "", "show this TOML pipeline instead of the default one")
	cmd.Flags().BoolVar(&dump, "dump", false, "print the default pipeline as TOML, to be edited and passed to --pipeline")
	cmd.MarkFlagsMutuallyExclusive("pipeline", "dump")
	return cmd
}

func runPasses(pipeline string, cmd *cobra.Command) error {
	data := pterm.TableData{{"Pass", "Description"}}
	for _, name := range passes.Names() {
		desc, err := passes.Describe(name)
		if err != nil {
			return err
		}
		data = append(data, []string{name, desc})
	}

	/* the registry */
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, table)

	/* and the pipeline built from it */
	var options []hloopt.Option
	if pipeline != "" {
		opt, err := hloopt.LoadPipeline(pipeline)
		if err != nil {
			return err
		}
		options = append(options, opt)
	}
	names, err := hloopt.PassNames(options...)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, pterm.NewStyle(pterm.FgLightGreen).Sprint("pipeline:"), strings.Join(names, " -> "))
	return nil
}

func dumpDefaultPipeline(cmd *cobra.Command) error {
	cfg := &opts.PipelineConfig{
		Name:          "default",
		MaxIterations: opts.MaxFixpointIterations,
		Verify:        opts.Verify,
		Passes:        passes.DefaultPasses(),
	}
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
