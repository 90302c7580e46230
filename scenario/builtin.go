package scenario

import _ "embed"

//go:embed builtin.yaml
var builtin []byte

// Builtin returns the demonstration dataset: six waypoints A-F and eight
// flights that produce at least one conflict of every category.
func Builtin() *Dataset {
	d, err := Parse(builtin)
	if err != nil {
		panic("scenario: embedded dataset: " + err.Error())
	}
	return d
}
