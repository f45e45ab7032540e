// Package textutil provides text helpers shared by the record model and the
// folder resolver: diacritic-folding slugs and significant-word extraction for
// fuzzy directory matching.
package textutil
