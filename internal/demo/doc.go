// Package demo holds the named scenarios run by the reactor command.
//
// Each scenario builds a small reactive graph in the engine it is given,
// writes to it and prints what its subscribers observed. Scenarios double
// as end-to-end checks: the engine must be at rest after every one.
package demo
