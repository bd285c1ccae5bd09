// Package normalisers provides implementations of the Normaliser interface
// for the corpus formats kbchat ingests. Each normaliser knows how to
// extract plain text from one file format.
//
// Normalisers are registered with the Registry at startup; see Defaults.
package normalisers
