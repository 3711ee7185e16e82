// Package per provides the core of sparse Pauli-Lindblad noise learning and
// probabilistic error reduction (PER).
//
// # Reading Guide
//
// Start with these files:
//   - pauli.go: phase-free Pauli operators used as map keys throughout
//   - layer.go: splitting a circuit into single-qubit + disjoint two-qubit layers
//   - noisemodel.go: learned generator, quasi-probability distributions, sampling
//
// # Architecture
//
// The per package defines the interfaces and shared types; the algorithms and
// backends live in sub-packages:
//   - per/tomography/: basis and model-term selection, benchmark circuits,
//     decay fits and NNLS reconstruction of the generator
//   - per/mitigation/: PER circuit sampling, sign/overhead bookkeeping and
//     zero-noise extrapolation
//   - per/fit/: bounded exponential fits, NNLS and matrix rank
//   - per/qasm/: gate-list circuit backend with OpenQASM export
//   - per/statevec/: noisy state-vector Executor for local runs and tests
//
// # Key Interfaces
//
//   - Circuit: native circuit capability set (compose, conjugate, basis change)
//   - Instruction: named operation with an ordered qubit support
//   - Processor: hardware topology and transpilation
//   - Executor: one batched call from native circuits to ordered Counts
package per
