// Package main is the entry point for ctlgen.
package main

func main() {
	Execute()
}
