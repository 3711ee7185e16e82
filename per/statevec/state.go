package statevec

import (
	"fmt"
	"math"
	"math/cmplx"
)

// state is a dense state vector; basis index bit q holds qubit q.
type state struct {
	amps []complex128
	n    int
}

func newState(n int) *state {
	amps := make([]complex128, 1<<n)
	amps[0] = 1
	return &state{amps: amps, n: n}
}

// apply1 applies the 2x2 matrix [[a, b], [c, d]] to qubit q.
func (s *state) apply1(q int, a, b, c, d complex128) {
	bit := 1 << q
	for i := range s.amps {
		if i&bit != 0 {
			continue
		}
		j := i | bit
		v0, v1 := s.amps[i], s.amps[j]
		s.amps[i] = a*v0 + b*v1
		s.amps[j] = c*v0 + d*v1
	}
}

// phase multiplies the |1> component of qubit q by f.
func (s *state) phase(q int, f complex128) {
	bit := 1 << q
	for i := range s.amps {
		if i&bit != 0 {
			s.amps[i] *= f
		}
	}
}

func (s *state) x(q int) {
	bit := 1 << q
	for i := range s.amps {
		if i&bit == 0 {
			j := i | bit
			s.amps[i], s.amps[j] = s.amps[j], s.amps[i]
		}
	}
}

func (s *state) y(q int) {
	bit := 1 << q
	for i := range s.amps {
		if i&bit == 0 {
			j := i | bit
			s.amps[i], s.amps[j] = -1i*s.amps[j], 1i*s.amps[i]
		}
	}
}

func (s *state) rx(q int, theta float64) {
	c := complex(math.Cos(theta/2), 0)
	js := complex(0, -math.Sin(theta/2))
	s.apply1(q, c, js, js, c)
}

func (s *state) ry(q int, theta float64) {
	c := complex(math.Cos(theta/2), 0)
	sn := complex(math.Sin(theta/2), 0)
	s.apply1(q, c, -sn, sn, c)
}

func (s *state) rz(q int, theta float64) {
	s.apply1(q, cmplx.Exp(complex(0, -theta/2)), 0, 0, cmplx.Exp(complex(0, theta/2)))
}

func (s *state) cx(c, t int) {
	cb, tb := 1<<c, 1<<t
	for i := range s.amps {
		if i&cb != 0 && i&tb == 0 {
			j := i | tb
			s.amps[i], s.amps[j] = s.amps[j], s.amps[i]
		}
	}
}

func (s *state) cz(a, b int) {
	ab, bb := 1<<a, 1<<b
	for i := range s.amps {
		if i&ab != 0 && i&bb != 0 {
			s.amps[i] = -s.amps[i]
		}
	}
}

func (s *state) swap(a, b int) {
	ab, bb := 1<<a, 1<<b
	for i := range s.amps {
		if i&ab != 0 && i&bb == 0 {
			j := i ^ ab ^ bb
			s.amps[i], s.amps[j] = s.amps[j], s.amps[i]
		}
	}
}

// pauli applies a single-qubit Pauli given as 'I', 'X', 'Y' or 'Z'.
func (s *state) pauli(q int, op byte) {
	switch op {
	case 'X':
		s.x(q)
	case 'Y':
		s.y(q)
	case 'Z':
		s.phase(q, -1)
	}
}

// gate applies one named gate.
func (s *state) gate(op string, qs []int, params []float64) error {
	h := complex(1/math.Sqrt2, 0)
	switch op {
	case "id", "barrier", "measure":
	case "x":
		s.x(qs[0])
	case "y":
		s.y(qs[0])
	case "z":
		s.phase(qs[0], -1)
	case "h":
		s.apply1(qs[0], h, h, h, -h)
	case "s":
		s.phase(qs[0], 1i)
	case "sdg":
		s.phase(qs[0], -1i)
	case "t":
		s.phase(qs[0], cmplx.Exp(complex(0, math.Pi/4)))
	case "tdg":
		s.phase(qs[0], cmplx.Exp(complex(0, -math.Pi/4)))
	case "sx":
		s.rx(qs[0], math.Pi/2)
	case "sxdg":
		s.rx(qs[0], -math.Pi/2)
	case "rx":
		s.rx(qs[0], params[0])
	case "ry":
		s.ry(qs[0], params[0])
	case "rz":
		s.rz(qs[0], params[0])
	case "cx":
		s.cx(qs[0], qs[1])
	case "cz":
		s.cz(qs[0], qs[1])
	case "swap":
		s.swap(qs[0], qs[1])
	default:
		return fmt.Errorf("statevec: unsupported gate %q", op)
	}
	return nil
}

// probabilities returns |amp|² for every basis index.
func (s *state) probabilities() []float64 {
	out := make([]float64, len(s.amps))
	for i, a := range s.amps {
		re, im := real(a), imag(a)
		out[i] = re*re + im*im
	}
	return out
}
