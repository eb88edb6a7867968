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
	"os"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/cloudwego/hloopt"
	"github.com/cloudwego/hloopt/debug"
)

type OptOptions struct {
	Pipeline          string
	Passes            []string
	MaxIterations     int
	PostOptimizations bool
	NoVerify          bool
	Output            string
	Report            bool
}

// NewOptCommand creates the opt command.
func NewOptCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OptOptions{}

	cmd := &cobra.Command{
		Use:   "opt <module>",
		Short: "Run the optimization pipeline over a module",
		Long: `Run the optimization pipeline over a module and write the result.

The input format is picked by extension, .yaml and .yml are read as text and
anything else as binary. The output keeps the input format unless --output
names a file with another extension.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpt(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Pipeline, "pipeline", "", "TOML pipeline file")
	cmd.Flags().StringSliceVar(&opts.Passes, "passes", nil, "pass list, overrides the pipeline file")
	cmd.Flags().IntVar(&opts.MaxIterations, "max-iterations", 0, "fixpoint iteration limit")
	cmd.Flags().BoolVar(&opts.PostOptimizations, "post-optimizations", false, "accept mixed precision")
	cmd.Flags().BoolVar(&opts.NoVerify, "no-verify", false, "skip verification between passes")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&opts.Report, "report", false, "print per pass statistics")
	return cmd
}

func (self *OptOptions) options(log *RootOptions) ([]hloopt.Option, error) {
	ret := []hloopt.Option{
		hloopt.WithLogger(log.Logger),
		hloopt.WithPostOptimizations(self.PostOptimizations),
	}

	/* the pipeline file goes first so flags override it */
	if self.Pipeline != "" {
		opt, err := hloopt.LoadPipeline(self.Pipeline)
		if err != nil {
			return nil, err
		}
		ret = append(ret, opt)
	}
	if len(self.Passes) != 0 {
		ret = append(ret, hloopt.WithPasses(self.Passes...))
	}
	if self.MaxIterations != 0 {
		if self.MaxIterations < 0 {
			return nil, errors.Errorf("invalid --max-iterations: %d", self.MaxIterations)
		}
		ret = append(ret, hloopt.WithMaxIterations(self.MaxIterations))
	}
	if self.NoVerify {
		ret = append(ret, hloopt.WithVerifier(false))
	}
	return ret, nil
}

func runOpt(rootOpts *RootOptions, opts *OptOptions, path string, cmd *cobra.Command) error {
	options, err := opts.options(rootOpts)
	if err != nil {
		return err
	}
	m, format, err := readModule(path, options...)
	if err != nil {
		return err
	}

	/* run the pipeline */
	before := m.InstructionCount()
	changed, err := hloopt.OptimizeModule(m, options...)
	if err != nil {
		return errors.Wrapf(err, "optimize %s", path)
	}
	rootOpts.Logger.Info("module optimized",
		"module", m.Name(),
		"changed", changed,
		"instructions_before", before,
		"instructions_after", m.InstructionCount(),
	)

	/* write the result */
	if opts.Output != "" {
		format = hloopt.FormatOf(opts.Output)
	}
	data, err := hloopt.StoreModule(m, format)
	if err != nil {
		return err
	}
	if opts.Output == "" {
		_, err = cmd.OutOrStdout().Write(data)
	} else {
		err = os.WriteFile(opts.Output, data, 0o644)
	}
	if err != nil {
		return errors.Wrap(err, "write module")
	}

	/* statistics go to stderr when the module went to stdout */
	if !opts.Report {
		return nil
	}
	out := cmd.OutOrStdout()
	if opts.Output == "" {
		out = cmd.ErrOrStderr()
	}
	table, err := renderStats(debug.GetStats())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, table)
	return err
}

func renderStats(st debug.Stats) (string, error) {
	names := make([]string, 0, len(st.Passes))
	for name := range st.Passes {
		names = append(names, name)
	}
	sort.Strings(names)

	/* one row per pass */
	data := pterm.TableData{{"Pass", "Runs", "Changed", "Failed", "Elapsed"}}
	for _, name := range names {
		ps := st.Passes[name]
		data = append(data, []string{
			name,
			strconv.Itoa(ps.Runs),
			strconv.Itoa(ps.Changed),
			strconv.Itoa(ps.Failed),
			ps.Elapsed.String(),
		})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s\npipelines: %d, exhausted fixpoints: %d", table, st.Pipeline.Runs, st.Pipeline.Exhausted), nil
}
