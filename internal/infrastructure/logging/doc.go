// Package logging builds the process-wide structured logger on log/slog.
//
//	logging:
//	  level: info        # debug, info, warn, error
//	  format: json       # json or text
//	  output: stdout     # stdout or stderr
//	  file:
//	    path: ""         # optional JSON file, fanned out with slog-multi
//	    level: ""        # defaults to level
//
// Every record carries service=virtuaplant and the build version. Values of
// attributes named password, token or secret are replaced before output.
package logging
