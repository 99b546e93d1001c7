// originir.go
package qlite

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Program is a parsed circuit: register widths plus the opcode stream.
// QINIT and CREG become the widths; every other statement becomes an
// opcode.
type Program struct {
	NQubits int
	NCBits  int
	Opcodes []Opcode
}

var (
	qubitRefPattern = regexp.MustCompile(`q\[(\d+)\]`)
	cbitRefPattern  = regexp.MustCompile(`c\[(\d+)\]`)
	paramsPattern   = regexp.MustCompile(`\(([^()]*)\)\s*$`)
)

// ParseOriginIR parses OriginIR circuit text.
//
// The grammar covers QINIT/CREG headers, gate statements like
// "RX q[0],(1.5708)", MEASURE q[i],c[j], BARRIER, and nestable
// CONTROL/ENDCONTROL and DAGGER/ENDDAGGER blocks. A DAGGER block reverses
// the order of its statements and marks each adjoint; a CONTROL block adds
// its qubits to every enclosed statement. Gate names the catalog does not
// know still parse; they fail later, at evaluation, with the full opcode
// in the error.
func ParseOriginIR(text string) (*Program, error) {
	p := &irParser{
		prog:   &Program{},
		frames: []*irFrame{{}},
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		p.lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := p.statement(line); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Line: p.lineNo, Msg: err.Error()}
	}
	if len(p.frames) != 1 {
		return nil, &ParseError{Line: p.lineNo, Msg: "unterminated CONTROL or DAGGER block"}
	}
	if !p.sawInit {
		return nil, &ParseError{Line: p.lineNo, Msg: "missing QINIT header"}
	}

	p.prog.Opcodes = p.frames[0].ops
	return p.prog, nil
}

// irFrame collects the statements of one block level.
type irFrame struct {
	dagger   bool
	controls []int
	ops      []Opcode
}

type irParser struct {
	prog    *Program
	frames  []*irFrame
	lineNo  int
	sawInit bool
}

func (p *irParser) errorf(line, format string, args ...interface{}) error {
	return &ParseError{Line: p.lineNo, Text: line, Msg: fmt.Sprintf(format, args...)}
}

func (p *irParser) top() *irFrame { return p.frames[len(p.frames)-1] }

func (p *irParser) inBlock() bool { return len(p.frames) > 1 }

func (p *irParser) statement(line string) error {
	name := line
	if idx := strings.IndexByte(line, ' '); idx >= 0 {
		name = line[:idx]
	}

	switch name {
	case "QINIT":
		return p.header(line, name, &p.prog.NQubits)
	case "CREG":
		return p.header(line, name, &p.prog.NCBits)
	case "CONTROL":
		qubits := parseQubitRefs(line)
		if len(qubits) == 0 {
			return p.errorf(line, "CONTROL needs at least one qubit")
		}
		p.frames = append(p.frames, &irFrame{controls: qubits})
		return nil
	case "ENDCONTROL":
		frame := p.top()
		if !p.inBlock() || frame.controls == nil {
			return p.errorf(line, "ENDCONTROL without matching CONTROL")
		}
		p.frames = p.frames[:len(p.frames)-1]
		for _, op := range frame.ops {
			p.top().ops = append(p.top().ops, op.WithControls(frame.controls...))
		}
		return nil
	case "DAGGER":
		p.frames = append(p.frames, &irFrame{dagger: true})
		return nil
	case "ENDDAGGER":
		frame := p.top()
		if !p.inBlock() || !frame.dagger {
			return p.errorf(line, "ENDDAGGER without matching DAGGER")
		}
		p.frames = p.frames[:len(p.frames)-1]
		// Reversing the statement order and conjugating each statement
		// together form the adjoint of the whole block.
		for i := len(frame.ops) - 1; i >= 0; i-- {
			p.top().ops = append(p.top().ops, frame.ops[i].WithAdjoint())
		}
		return nil
	case "MEASURE":
		return p.measure(line)
	case "BARRIER":
		p.top().ops = append(p.top().ops, NewOpcode("BARRIER", parseQubitRefs(line)...))
		return nil
	default:
		return p.gate(line, name)
	}
}

func (p *irParser) header(line, name string, dst *int) error {
	if p.inBlock() || len(p.top().ops) > 0 || (name == "QINIT" && p.sawInit) {
		return p.errorf(line, "%s must come before any statement", name)
	}
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return p.errorf(line, "%s takes one integer", name)
	}
	width, err := strconv.Atoi(fields[1])
	if err != nil || width < 0 {
		return p.errorf(line, "%s width %q is not a non-negative integer", name, fields[1])
	}
	*dst = width
	if name == "QINIT" {
		p.sawInit = true
	}
	return nil
}

func (p *irParser) measure(line string) error {
	if p.inBlock() {
		return p.errorf(line, "MEASURE inside a CONTROL or DAGGER block")
	}
	qubits := parseQubitRefs(line)
	cbits := parseCbitRefs(line)
	if len(qubits) != 1 || len(cbits) != 1 {
		return p.errorf(line, "MEASURE takes one qubit and one classical bit")
	}
	p.top().ops = append(p.top().ops, NewMeasure(qubits[0], cbits[0]))
	return nil
}

func (p *irParser) gate(line, name string) error {
	qubits := parseQubitRefs(line)
	if len(qubits) == 0 {
		return p.errorf(line, "statement %q names no qubits", name)
	}
	op := NewOpcode(name, qubits...)

	if m := paramsPattern.FindStringSubmatch(line); m != nil {
		for _, field := range strings.Split(m[1], ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			value, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return p.errorf(line, "bad parameter %q", field)
			}
			op.Params = append(op.Params, value)
		}
	}

	p.top().ops = append(p.top().ops, op)
	return nil
}

func parseQubitRefs(line string) []int {
	return parseRefs(qubitRefPattern, line)
}

func parseCbitRefs(line string) []int {
	return parseRefs(cbitRefPattern, line)
}

func parseRefs(pattern *regexp.Regexp, line string) []int {
	matches := pattern.FindAllStringSubmatch(line, -1)
	refs := make([]int, 0, len(matches))
	for _, m := range matches {
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		refs = append(refs, idx)
	}
	return refs
}

// RunOriginIR parses circuit text and runs it on the engine. The returned
// program keeps the register widths and opcode stream for inspection.
func (e *Engine) RunOriginIR(text string) (*Program, error) {
	prog, err := ParseOriginIR(text)
	if err != nil {
		return nil, err
	}
	if prog.NQubits == 0 {
		return nil, configErrorf("circuit declares no qubits")
	}
	if err := e.Run(prog.NQubits, prog.Opcodes); err != nil {
		return nil, err
	}
	return prog, nil
}
