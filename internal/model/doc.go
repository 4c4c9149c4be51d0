// Package model defines the shared data types of the tick bridge.
//
// Conventions:
//   - Prices: float64 (IEEE-754 double on the wire)
//   - Volumes: int64 contracts
//   - Timestamps: time.Time carrying the exchange zone; serialized as
//     ISO-8601 with offset
package model
