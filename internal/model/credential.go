package model

// Credential is one row of the external user repository: a unique name, an
// opaque password credential, and a rating. Mutated by registration
// (insert) and ranked settlement (rating rewrite); read by login.
type Credential struct {
	Name               string
	PasswordCredential string
	Rating             int
}
