package model

// Token is the capability token callers must pass into every lifecycle
// and aggregation call. It is opaque to this core: session management
// lives at the network boundary. It exists so no package reads auth
// state from ambient globals.
type Token string

// Valid reports whether the token is present.
func (t Token) Valid() bool {
	return t != ""
}
