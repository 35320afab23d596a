// Package model holds the types shared by the grid pipeline and its error
// taxonomy. Nothing here performs I/O.
package model
