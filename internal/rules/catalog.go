package rules

import (
	_ "embed"
	"fmt"
)

//go:embed catalog.yaml
var builtinCatalog []byte

// Default returns the built-in catalogue. The embedded YAML is validated on
// every call; a failure means the binary itself is broken.
func Default() *RuleSet {
	rs, err := Parse(builtinCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded rule catalogue invalid: %v", err))
	}
	return rs
}
