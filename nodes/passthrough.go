package nodes

import jamcore "github.com/jamieb133/jamcore"

// Passthrough performs no signal processing. It exists purely as a
// fan-out point: it can route to several processors, each of which
// receives its own copy of the buffer. Inputs are not combined: when
// several processors route into one Passthrough, each upstream path
// traverses the Passthrough and everything below it separately.
type Passthrough struct{}

// NewPassthrough creates and registers a passthrough processor.
func NewPassthrough(e *jamcore.Engine) (*Passthrough, uint16) {
	p := &Passthrough{}
	id := e.CreateProcessor(p.process, nil, nil, p)
	return p, id
}

func (p *Passthrough) process(sampleRate float64, numFrames int, buffer []float32, data any) {}
