// Copyright (C) 2026  The pymatrix Authors
//
// SPDX-License-Identifier: Apache-2.0

package matrix

import (
	"fmt"
)

// Cell is one concrete combination of axis values, executed as an
// independent job.  Cells share no mutable state; the failure of one must
// not affect another.
type Cell struct {
	// Python is the interpreter version, e.g. "3.6".
	Python string
	// Channel is the dependency-channel selector.
	Channel Channel
}

// ID identifies the cell in logs and working-directory names.
func (c Cell) ID() string {
	return fmt.Sprintf("py%s-%s", c.Python, c.Channel.Slug())
}

// Environ renders the environment variables the cell exports into its step
// processes: the interpreter version, the channel string, and (if the
// manifest names one) the CI-style matrix variable.
func (c Cell) Environ(man *Manifest) []string {
	env := []string{
		"PYMATRIX_PYTHON=" + c.Python,
		"PYMATRIX_CHANNEL=" + c.Channel.Raw,
	}
	if man != nil && man.EnvVar != "" {
		env = append(env, man.EnvVar+"="+c.Channel.Raw)
	}
	return env
}

// Cells enumerates the full cross-product of the manifest's axes, in
// interpreter-major order.  The order is a presentation convenience only;
// no cell depends on another.
func (man *Manifest) Cells() ([]Cell, error) {
	ret := make([]Cell, 0, len(man.Python)*len(man.Channels))
	for _, py := range man.Python {
		for _, chStr := range man.Channels {
			ch, err := ParseChannel(chStr)
			if err != nil {
				return nil, err
			}
			ret = append(ret, Cell{
				Python:  py,
				Channel: ch,
			})
		}
	}
	return ret, nil
}
