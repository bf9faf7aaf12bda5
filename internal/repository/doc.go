// Package repository models GitHub repository identities shared by the
// relationship store, the configuration resolver, and the cascade engine.
package repository
