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

	"github.com/spf13/cobra"

	"github.com/cloudwego/hloopt/internal/hloproto"
	"github.com/cloudwego/hloopt/internal/placer"
)

type PlaceOptions struct {
	Replicas     int
	Computations int
	Platform     string
	YAML         bool
}

// NewPlaceCommand creates the place command.
func NewPlaceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlaceOptions{}

	cmd := &cobra.Command{
		Use:   "place",
		Short: "Print the device assignment of a platform",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlace(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Replicas, "replicas", 1, "number of replicas")
	cmd.Flags().IntVar(&opts.Computations, "computations", 1, "number of computations")
	cmd.Flags().StringVar(&opts.Platform, "platform", string(placer.HostPlatformID), "platform to place on")
	cmd.Flags().BoolVar(&opts.YAML, "yaml", false, "print the serialized assignment")
	return cmd
}

func runPlace(rootOpts *RootOptions, opts *PlaceOptions, cmd *cobra.Command) error {
	p, err := placer.GetForPlatform(placer.PlatformID(opts.Platform))
	if err != nil {
		return err
	}
	da, err := p.AssignDevices(opts.Replicas, opts.Computations)
	if err != nil {
		return err
	}
	rootOpts.Logger.Debug("devices assigned", "platform", opts.Platform, "replicas", opts.Replicas, "computations", opts.Computations)

	/* the table, or its persisted form */
	if !opts.YAML {
		_, err = fmt.Fprint(cmd.OutOrStdout(), da.String())
		return err
	}
	data, err := hloproto.MarshalYAML(da.Serialize())
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
