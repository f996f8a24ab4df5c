package cli

import "strings"

// SplitCommand separates the command and its positional arguments from the
// configuration flags in the raw argument list. Every flag of the uplink
// binary consumes one value, so "-a URL" style pairs are skipped as units;
// "-flag=value" forms are skipped as one token.
func SplitCommand(args []string) (string, []string) {
	var positional []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if strings.HasPrefix(a, "-") {
			if !strings.Contains(a, "=") && i+1 < len(args) {
				i++
			}
			continue
		}
		positional = append(positional, a)
	}
	if len(positional) == 0 {
		return "", nil
	}
	if len(positional) == 1 {
		return positional[0], nil
	}
	return positional[0], positional[1:]
}
