// Package discovery classifies raw scan results from the hardware layer
// and identifies Cpen target devices by their advertised name.
package discovery
