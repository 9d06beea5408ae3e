// Package console is a terminal front end for the cashier client: it renders
// prompts, lists and notices as text (or JSON lines) and turns typed commands
// into client actions.
package console
