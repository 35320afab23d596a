// Package grid numbers the nodes of a multi-dimensional parameter grid.
//
// Every combination of dimension values is identified by a single integer in
// [0, N). The numbering is mixed radix with the first dimension of the
// sampling order as the most significant digit:
//
//	place[i] = len(dim[i+1]) * ... * len(dim[n-1])
//	id       = sum(index[i] * place[i])
//
// Encode and Decode are exact inverses and use integer arithmetic only.
//
// Stored node IDs are only meaningful together with the sampling order that
// produced them, so dimension arrays are append-only (see Order.Extends).
// Appending to the most significant dimension keeps every existing ID;
// appending anywhere else renumbers the grid (see Order.PreservesIDs).
package grid
