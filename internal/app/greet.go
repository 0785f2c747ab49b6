package app

import "fmt"

// Greet is a connectivity smoke test for callers wiring up the registry.
func Greet(name string) string {
	return fmt.Sprintf("Hello, %s! You've been greeted from the registry!", name)
}
