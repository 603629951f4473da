// Package flagx lets several components read their own flags from the same
// command line without tripping over each other's flags.
package flagx

import (
	"flag"
	"strings"
)

// FilterArgs keeps only the allowed flags (and their values) from args.
//
// Both "-c conf.json" and "-c=conf.json" forms are understood. A token that
// starts with "-" is never consumed as a value. Order is preserved and the
// result is never nil.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			continue
		}

		name, _, hasValue := strings.Cut(arg, "=")
		if _, ok := allowed[name]; !ok {
			continue
		}
		filtered = append(filtered, arg)
		if hasValue {
			continue
		}

		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// Parse registers flags through register, filters args down to the flags
// that were registered and parses them. Unknown flags in args are ignored.
func Parse(name string, args []string, register func(fs *flag.FlagSet)) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	register(fs)

	var allowed []string
	fs.VisitAll(func(f *flag.Flag) {
		allowed = append(allowed, "-"+f.Name, "--"+f.Name)
	})

	return fs.Parse(FilterArgs(args, allowed))
}

// ConfigPath returns the config file given with -c or -config, or "" when
// neither is present. The last occurrence wins.
func ConfigPath(args []string) string {
	var path string
	_ = Parse("config", args, func(fs *flag.FlagSet) {
		fs.StringVar(&path, "config", "", "path to config file")
		fs.StringVar(&path, "c", "", "path to config file (short)")
	})
	return path
}
