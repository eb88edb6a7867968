/*
 * Copyright 2021 ByteDance Inc.
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

package hlo

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/cloudwego/hloopt/internal/status"
)

// CallersOf returns every instruction of the module that calls c.
func (self *Module) CallersOf(c *Computation) []*Instruction {
	var ret []*Instruction
	for _, p := range self.comps {
		for _, v := range p.instrs {
			for _, cc := range v.called {
				if cc == c {
					ret = append(ret, v)
					break
				}
			}
		}
	}
	return ret
}

// buildCallGraph links every caller computation to its callees. Nodes are
// identified by the index of the computation in the module.
func (self *Module) buildCallGraph() (*simple.DirectedGraph, error) {
	g := simple.NewDirectedGraph()
	pos := make(map[*Computation]int64, len(self.comps))

	/* one node per computation */
	for i, c := range self.comps {
		pos[c] = int64(i)
		g.AddNode(simple.Node(i))
	}

	/* one edge per distinct caller -> callee pair */
	for i, c := range self.comps {
		for _, v := range c.instrs {
			for _, cc := range v.called {
				j, ok := pos[cc]
				if !ok {
					return nil, status.Invariant("CallGraph", v.name, "calls %s which is not part of the module", cc.name)
				}
				if j == int64(i) {
					return nil, status.Invariant("CallGraph", v.name, "computation %s calls itself", c.name)
				}
				if !g.HasEdgeFromTo(int64(i), j) {
					g.SetEdge(g.NewEdge(simple.Node(i), simple.Node(j)))
				}
			}
		}
	}
	return g, nil
}

// MakeComputationPostOrder orders the computations so that callees come
// before their callers. It fails if the call graph has a cycle.
func (self *Module) MakeComputationPostOrder() ([]*Computation, error) {
	g, err := self.buildCallGraph()
	if err != nil {
		return nil, err
	}

	/* stabilize ties by module order */
	nodes, err := topo.SortStabilized(g, func(nodes []graph.Node) {
		sort.Slice(nodes, func(i int, j int) bool {
			return nodes[i].ID() < nodes[j].ID()
		})
	})
	if err != nil {
		return nil, status.Invariant("CallGraph", "", "recursive call graph: %v", err)
	}

	/* topological order puts callers first */
	ret := make([]*Computation, len(nodes))
	for i, n := range nodes {
		ret[len(nodes)-1-i] = self.comps[n.ID()]
	}
	return ret, nil
}
