// Package flagx filters and parses the subset of command-line flags owned
// by one component, so several components can share os.Args.
package flagx

import (
	"flag"
	"io"
	"os"
	"strings"
)

// FilterArgs keeps only the flags named in allowedFlags, together with
// their values. Both "-c conf.json" and "--config=conf.json" forms are
// recognised; a value is taken from the next argument unless it looks like
// a flag itself. The result is never nil.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}
	isAllowed := func(name string) bool {
		_, ok := allowed[name]
		return ok
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, hasValue := strings.Cut(arg, "="); hasValue && strings.HasPrefix(arg, "-") {
			if isAllowed(name) {
				filtered = append(filtered, arg)
			}
			continue
		}

		if !isAllowed(arg) {
			continue
		}
		filtered = append(filtered, arg)
		if next := i + 1; next < len(args) && !strings.HasPrefix(args[next], "-") {
			filtered = append(filtered, args[next])
			i = next
		}
	}
	return filtered
}

// JsonConfigFlags returns the JSON config path given via -c or -config, or
// "" when neither is present. Other arguments are ignored.
func JsonConfigFlags() string {
	return singleStringFlag("json", "config", "c", "Path to config file")
}

// EnvFileFlags returns the dotenv file path given via -env or -envfile.
// Secrets such as the encryption key are usually injected this way.
func EnvFileFlags() string {
	return singleStringFlag("env", "envfile", "env", "Path to .env file")
}

func singleStringFlag(set, long, short, usage string) string {
	var value string

	args := FilterArgs(os.Args[1:], []string{"-" + short, "-" + long})

	fs := flag.NewFlagSet(set, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&value, long, "", usage)
	if short != long {
		fs.StringVar(&value, short, "", usage+" (short)")
	}
	_ = fs.Parse(args)

	return value
}
