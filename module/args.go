package module

import "github.com/mitchellh/mapstructure"

// DecodeArgs decodes a Request's string-keyed Args map into out, a
// pointer to a struct tagged with `mapstructure` (falling back to field
// name matching). Modules use this instead of hand-rolling
// map[string]string lookups for every typed parameter they expect.
func DecodeArgs(args map[string]string, out any) error {
	return mapstructure.Decode(args, out)
}
