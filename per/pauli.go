package per

import (
	"fmt"
	"math/rand"
	"strings"
)

// Pauli is an n-qubit Pauli operator stored as its phase-free label.
// Character i acts on qubit i. Because the label carries no phase, two
// operators that differ only by a global phase compare equal and hash alike,
// which lets Pauli values serve directly as map keys.
type Pauli string

const pauliAlphabet = "IXYZ"

// ParsePauli validates a label over {I,X,Y,Z}.
func ParsePauli(label string) (Pauli, error) {
	if label == "" {
		return "", fmt.Errorf("empty pauli label")
	}
	for i, r := range label {
		if !strings.ContainsRune(pauliAlphabet, r) {
			return "", fmt.Errorf("pauli label %q: invalid character %q at %d", label, r, i)
		}
	}
	return Pauli(label), nil
}

// MustPauli is ParsePauli for literals; it panics on an invalid label.
func MustPauli(label string) Pauli {
	p, err := ParsePauli(label)
	if err != nil {
		panic(err)
	}
	return p
}

// Identity returns the n-qubit identity.
func Identity(n int) Pauli {
	return Pauli(strings.Repeat("I", n))
}

// RandomPauli draws each position uniformly from alphabet ("IXYZ" when empty).
func RandomPauli(rng *rand.Rand, n int, alphabet string) Pauli {
	if alphabet == "" {
		alphabet = pauliAlphabet
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rng.Intn(len(alphabet))]
	}
	return Pauli(b)
}

// Label returns the phase-free label.
func (p Pauli) Label() string { return string(p) }

// String implements fmt.Stringer.
func (p Pauli) String() string { return string(p) }

// Len is the number of qubits the operator acts on.
func (p Pauli) Len() int { return len(p) }

// At returns the single-qubit factor on qubit i.
func (p Pauli) At(i int) byte { return p[i] }

// With returns a copy with qubit i replaced by op.
func (p Pauli) With(i int, op byte) Pauli {
	b := []byte(p)
	b[i] = op
	return Pauli(b)
}

// Weight counts the non-identity factors.
func (p Pauli) Weight() int {
	w := 0
	for i := 0; i < len(p); i++ {
		if p[i] != 'I' {
			w++
		}
	}
	return w
}

// IsIdentity reports whether every factor is I.
func (p Pauli) IsIdentity() bool { return p.Weight() == 0 }

// Support lists the qubits with a non-identity factor, ascending.
func (p Pauli) Support() []int {
	var s []int
	for i := 0; i < len(p); i++ {
		if p[i] != 'I' {
			s = append(s, i)
		}
	}
	return s
}

// toBits maps a factor onto its symplectic (x, z) pair.
func toBits(c byte) (x, z bool) {
	switch c {
	case 'X':
		return true, false
	case 'Y':
		return true, true
	case 'Z':
		return false, true
	}
	return false, false
}

func fromBits(x, z bool) byte {
	switch {
	case x && z:
		return 'Y'
	case x:
		return 'X'
	case z:
		return 'Z'
	}
	return 'I'
}

// Mul composes two operators of equal length, discarding the phase.
func (p Pauli) Mul(q Pauli) Pauli {
	mustSameLen(p, q)
	b := make([]byte, len(p))
	for i := range b {
		x1, z1 := toBits(p[i])
		x2, z2 := toBits(q[i])
		b[i] = fromBits(x1 != x2, z1 != z2)
	}
	return Pauli(b)
}

// Commutes reports whether p and q commute, i.e. they anticommute on an even
// number of qubits.
func (p Pauli) Commutes(q Pauli) bool {
	mustSameLen(p, q)
	anti := 0
	for i := 0; i < len(p); i++ {
		if p[i] != 'I' && q[i] != 'I' && p[i] != q[i] {
			anti++
		}
	}
	return anti%2 == 0
}

// Simultaneous reports whether q can be read out of a measurement in basis p:
// on every qubit q is either I or equal to p.
func (p Pauli) Simultaneous(q Pauli) bool {
	mustSameLen(p, q)
	for i := 0; i < len(p); i++ {
		if q[i] != 'I' && q[i] != p[i] {
			return false
		}
	}
	return true
}

// Separate reports whether p and q have disjoint supports.
func (p Pauli) Separate(q Pauli) bool {
	mustSameLen(p, q)
	for i := 0; i < len(p); i++ {
		if p[i] != 'I' && q[i] != 'I' {
			return false
		}
	}
	return true
}

// NonOverlapping reports whether p and q agree wherever both act nontrivially.
func (p Pauli) NonOverlapping(q Pauli) bool {
	mustSameLen(p, q)
	for i := 0; i < len(p); i++ {
		if p[i] != 'I' && q[i] != 'I' && p[i] != q[i] {
			return false
		}
	}
	return true
}

// Composite merges two non-overlapping operators, preferring p's factor
// wherever p is not the identity.
func (p Pauli) Composite(q Pauli) Pauli {
	n := max(len(p), len(q))
	b := []byte(strings.Repeat("I", n))
	for i := 0; i < n; i++ {
		switch {
		case i < len(p) && p[i] != 'I':
			b[i] = p[i]
		case i < len(q):
			b[i] = q[i]
		}
	}
	return Pauli(b)
}

func mustSameLen(p, q Pauli) {
	if len(p) != len(q) {
		panic(fmt.Sprintf("pauli length mismatch: %q (%d) vs %q (%d)", p, len(p), q, len(q)))
	}
}
