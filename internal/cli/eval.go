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
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/cloudwego/hloopt"
	"github.com/cloudwego/hloopt/internal/eval"
	"github.com/cloudwego/hloopt/internal/hlo"
)

// NewShapesCommand creates the shapes command.
func NewShapesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shapes <module>",
		Short: "Print the entry parameter and result shapes of a module",
		Long: `Print the entry parameter and result shapes of a module. Only the entry
computation is read, the module is neither loaded nor verified.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShapes(args[0], cmd)
		},
	}
}

func runShapes(path string, cmd *cobra.Command) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read module")
	}
	params, result, err := hloopt.EntryShapes(data, hloopt.FormatOf(path))
	if err != nil {
		return err
	}

	/* one line per parameter */
	out := cmd.OutOrStdout()
	for i, s := range params {
		fmt.Fprintf(out, "param %d: %s\n", i, s)
	}
	_, err = fmt.Fprintf(out, "result: %s\n", result)
	return err
}

type EvalOptions struct {
	Args              []string
	MaxIterations     int
	PostOptimizations bool
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{}

	cmd := &cobra.Command{
		Use:   "eval <module>",
		Short: "Evaluate the entry computation on scalar arguments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Args, "arg", nil, "scalar argument, once per parameter")
	cmd.Flags().IntVar(&opts.MaxIterations, "max-loop-iterations", eval.DefaultOptions().MaxLoopIterations, "while loop iteration limit")
	cmd.Flags().BoolVar(&opts.PostOptimizations, "post-optimizations", false, "accept mixed precision")
	return cmd
}

func runEval(rootOpts *RootOptions, opts *EvalOptions, path string, cmd *cobra.Command) error {
	m, _, err := readModule(path, hloopt.WithPostOptimizations(opts.PostOptimizations))
	if err != nil {
		return err
	}

	/* one argument per entry parameter */
	entry := m.EntryComputation()
	params := entry.Parameters()
	if len(opts.Args) != len(params) {
		return errors.Errorf("%s takes %d arguments, got %d", entry.Name(), len(params), len(opts.Args))
	}
	args := make([]*hlo.Literal, len(params))
	for i, p := range params {
		if args[i], err = parseScalar(p.Shape(), opts.Args[i]); err != nil {
			return errors.Wrapf(err, "argument %d", i)
		}
	}

	/* run the interpreter */
	o := eval.DefaultOptions()
	o.MaxLoopIterations = opts.MaxIterations
	ret, err := eval.New(o).Evaluate(entry, args...)
	if err != nil {
		return err
	}
	rootOpts.Logger.Debug("module evaluated", "module", m.Name(), "args", len(args))
	_, err = fmt.Fprintln(cmd.OutOrStdout(), ret.String())
	return err
}

func parseScalar(shape hlo.Shape, text string) (*hlo.Literal, error) {
	if !shape.IsScalar() {
		return nil, errors.Errorf("parameter of shape %s cannot be given on the command line", shape)
	}
	switch elem := shape.Elem; {
	case elem == hlo.PRED:
		v, err := strconv.ParseBool(text)
		if err != nil {
			return nil, err
		}
		return hlo.ScalarPred(v), nil
	case elem.IsFloat():
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, err
		}
		return hlo.NewFloatLiteral(elem, nil, v), nil
	case elem.IsIntegral():
		v, err := strconv.ParseInt(text, 0, 64)
		if err != nil {
			return nil, err
		}
		return hlo.NewIntLiteral(elem, nil, v), nil
	default:
		return nil, errors.Errorf("unsupported parameter type %s", elem)
	}
}
