// Package cryptbase is a cryptographic support library: a bit-level data
// substrate and a Fortuna-derived CSPRNG for runtimes without a guaranteed
// synchronous OS random source.
//
// See the bitarray package for the packed bit string type used by ciphers,
// hashes and codecs, and the rng package for entropy collection and
// pseudorandom word generation.
package cryptbase
