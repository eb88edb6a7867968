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
	"strconv"

	"github.com/google/uuid"

	"github.com/cloudwego/hloopt/internal/status"
)

// ModuleConfig is the configuration a module is compiled with.
type ModuleConfig struct {
	ReplicaCount  int
	NumPartitions int

	// AllowMixedPrecision relaxes the element type checks of element-wise
	// ops, which is only valid for modules that went through optimizations.
	AllowMixedPrecision bool
}

func DefaultModuleConfig() ModuleConfig {
	return ModuleConfig{
		ReplicaCount:  1,
		NumPartitions: 1,
	}
}

// Module owns an ordered set of computations, one of which is the entry.
type Module struct {
	name   string
	uid    string
	config ModuleConfig
	comps  []*Computation
	entry  *Computation
	nextId int
	names  map[string]struct{}
	cnames map[string]struct{}
}

func NewModule(name string, config ModuleConfig) *Module {
	return &Module{
		name:   name,
		uid:    uuid.NewString(),
		config: config,
		nextId: 1,
		names:  make(map[string]struct{}),
		cnames: make(map[string]struct{}),
	}
}

func (self *Module) Name() string { return self.name }
func (self *Module) UniqueId() string { return self.uid }
func (self *Module) Config() ModuleConfig { return self.config }
func (self *Module) EntryComputation() *Computation { return self.entry }
func (self *Module) ComputationCount() int { return len(self.comps) }

func (self *Module) SetConfig(config ModuleConfig) {
	self.config = config
}

// Computations returns the computations in insertion order.
func (self *Module) Computations() []*Computation {
	return append([]*Computation(nil), self.comps...)
}

func (self *Module) ComputationByName(name string) (*Computation, error) {
	for _, c := range self.comps {
		if c.name == name {
			return c, nil
		}
	}
	return nil, status.NotFound("computation", name)
}

// AddEntryComputation adds c and marks it as the entry.
func (self *Module) AddEntryComputation(c *Computation) *Computation {
	self.addComputation(c)
	self.entry = c
	return c
}

func (self *Module) AddEmbeddedComputation(c *Computation) *Computation {
	return self.addComputation(c)
}

func (self *Module) addComputation(c *Computation) *Computation {
	if c.parent != nil {
		panic("hlo: computation " + c.name + " already belongs to a module")
	}

	/* computation names are unique within a module */
	c.name = uniqueName(self.cnames, c.name, len(self.comps))
	c.parent = self
	self.comps = append(self.comps, c)

	/* instructions get module-wide ids and names */
	for _, v := range c.instrs {
		self.register(v)
	}
	return c
}

func (self *Module) register(v *Instruction) {
	v.id = self.nextId
	self.nextId++

	/* default to the opcode name */
	if v.name == "" {
		v.name = v.opcode.String()
	}
	v.name = uniqueName(self.names, v.name, v.id)
}

func uniqueName(names map[string]struct{}, name string, id int) string {
	if _, ok := names[name]; ok {
		for n := id; ; n++ {
			name2 := name + "." + strconv.Itoa(n)
			if _, ok = names[name2]; !ok {
				name = name2
				break
			}
		}
	}
	names[name] = struct{}{}
	return name
}

// RemoveEmbeddedComputation drops a computation nothing calls anymore.
func (self *Module) RemoveEmbeddedComputation(c *Computation) error {
	if c.parent != self {
		return status.Invariant("RemoveEmbeddedComputation", c.name, "not a computation of %s", self.name)
	}
	if c == self.entry {
		return status.Invariant("RemoveEmbeddedComputation", c.name, "cannot remove the entry computation")
	}
	if callers := self.CallersOf(c); len(callers) != 0 {
		return status.Invariant("RemoveEmbeddedComputation", c.name, "still called by %s", callers[0].name)
	}
	for i, p := range self.comps {
		if p == c {
			self.comps = append(self.comps[:i], self.comps[i+1:]...)
			break
		}
	}
	delete(self.cnames, c.name)
	c.parent = nil
	return nil
}

// RemoveUnusedComputations drops every computation unreachable from the
// entry and returns how many were removed.
func (self *Module) RemoveUnusedComputations() int {
	if self.entry == nil {
		return 0
	}

	/* mark everything reachable from the entry */
	live := map[*Computation]struct{}{self.entry: {}}
	work := []*Computation{self.entry}
	for len(work) != 0 {
		c := work[len(work)-1]
		work = work[:len(work)-1]
		for _, v := range c.instrs {
			for _, cc := range v.called {
				if _, ok := live[cc]; !ok {
					live[cc] = struct{}{}
					work = append(work, cc)
				}
			}
		}
	}

	/* sweep the rest */
	n := 0
	comps := self.comps[:0]
	for _, c := range self.comps {
		if _, ok := live[c]; ok {
			comps = append(comps, c)
		} else {
			delete(self.cnames, c.name)
			c.parent = nil
			n++
		}
	}
	self.comps = comps
	return n
}

// InstructionCount counts the instructions of all computations.
func (self *Module) InstructionCount() int {
	n := 0
	for _, c := range self.comps {
		n += len(c.instrs)
	}
	return n
}
