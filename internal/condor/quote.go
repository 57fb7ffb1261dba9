package condor

import "strings"

// QuoteArgument quotes one argument using the "new" arguments syntax of
// condor_submit: double quotes are doubled, and arguments containing spaces
// are wrapped in single quotes with embedded single quotes doubled.
func QuoteArgument(arg string) string {
	arg = strings.ReplaceAll(arg, `"`, `""`)
	if strings.Contains(arg, " ") {
		arg = "'" + strings.ReplaceAll(arg, "'", "''") + "'"
	}
	return arg
}

// QuoteArguments quotes each argument and joins them into a single
// double-quoted Arguments value.
func QuoteArguments(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = QuoteArgument(arg)
	}
	return `"` + strings.Join(quoted, " ") + `"`
}
