package content

import (
	_ "embed"
	"fmt"
)

//go:embed defaults.json
var defaultsJSON []byte

// Defaults returns a fresh copy of the bundled starter content.
func Defaults() *Document {
	doc, err := Decode(defaultsJSON)
	if err != nil {
		panic(fmt.Sprintf("bundled defaults are invalid: %v", err))
	}
	return doc
}
