// Package errors provides structured, actionable error messages for the
// reactor command.
//
// Each error has a unique code that maps to a short message, an optional
// explanation and a suggestion:
//   - R001-R099: runtime errors raised by the engine
//   - C001-C099: configuration errors
//   - X001-X099: command errors
//
// # Usage
//
//	err := errors.New("C002").
//	    WithLocation("reactor.toml", 4, 11).
//	    Wrap(parseErr)
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR C002: Invalid config file
//	//
//	//   reactor.toml:4:11
//	//
//	//        2 │ [engine]
//	//        3 │ maxReruns = 10
//	//   →    4 │ [log
//	//          │           ^
//	//
//	//   The configuration file could not be parsed.
//
// Engine errors are mapped onto runtime codes with FromError.
package errors
