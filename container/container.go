// Package container provides a chained []byte buffer for assembling framed
// data without copying. Entropy pools use it to frame absorption records
// before hashing, collectors use it to batch raw samples.
package container

import (
	"github.com/cryptbase/cryptbase/formats/varint"
)

// Container chains byte slices for cheap appending and one-shot compilation.
type Container struct {
	compartments [][]byte
}

// New creates a new container with optional initial data. Data will NOT be
// copied.
func New(data ...[]byte) *Container {
	return &Container{
		compartments: data,
	}
}

// Append appends the given data. Data will NOT be copied.
func (c *Container) Append(data []byte) {
	c.compartments = append(c.compartments, data)
}

// AppendNumber appends a varint encoded number.
func (c *Container) AppendNumber(n uint64) {
	c.compartments = append(c.compartments, varint.Pack64(n))
}

// AppendAsBlock appends the varint encoded length of the data and the data
// itself. Data will NOT be copied.
func (c *Container) AppendAsBlock(data []byte) {
	c.AppendNumber(uint64(len(data)))
	c.Append(data)
}

// Length returns the full length of all bytes held by the container.
func (c *Container) Length() (length int) {
	for _, comp := range c.compartments {
		length += len(comp)
	}
	return
}

// CompileData concatenates all bytes held by the container and returns them
// as a single []byte slice. The data is not consumed.
func (c *Container) CompileData() []byte {
	if len(c.compartments) != 1 {
		newBuf := make([]byte, 0, c.Length())
		for _, comp := range c.compartments {
			newBuf = append(newBuf, comp...)
		}
		c.compartments = [][]byte{newBuf}
	}
	return c.compartments[0]
}

// Reset drops all held data.
func (c *Container) Reset() {
	c.compartments = nil
}
