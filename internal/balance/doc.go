// Package balance turns a transaction log into balance series and totals.
//
// Every function here is pure: callers pass the transactions, the set of
// conti to net against and an explicit "now". Nothing reads the clock or the
// store, so two calls with the same inputs return identical output.
package balance
