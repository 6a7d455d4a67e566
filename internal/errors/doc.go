// Package errors provides structured, coded errors for discuss.
//
// Every error carries a short code (e.g. "E301") registered in a central
// table, a category, and optionally a detail, a suggestion and a wrapped
// cause. The CLI prints them with Format; library code matches them with the
// standard errors.Is / errors.As through Unwrap.
//
// # Error Categories
//
//   - config: discuss.toml or environment problems
//   - remote: the REST API rejected a request or the transport failed
//   - cache: query cache misuse (wrong data type under a key)
//   - validation: bad input on the command line or in a request body
//   - cli: command wiring problems
//
// # Usage
//
//	err := errors.New("E301").
//	    WithDetail("DELETE /comments/42 returned 500").
//	    Wrap(cause)
//
//	fmt.Print(err.Format())
//	// ERROR E301: Remote delete failed
//	//
//	//   DELETE /comments/42 returned 500
//	//
//	//   Hint: The cached comment list was restored; retry the delete.
package errors
