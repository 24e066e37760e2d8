// Package respond maps internal errors to client-safe HTTP responses.
//
// Handlers and middleware never write error bodies themselves. They attach the
// typed error to the request with Fail and return:
//
//	if err != nil {
//	    respond.Fail(w, r, err)
//	    return
//	}
//
// The Mapper sits outside everything else. After the inner chain returns it
// classifies the attached error once, using errors.Is against its rule table,
// writes {"error":"<code>"} with the mapped status, and logs the request with
// the internal error and the code it was mapped to. Requests without an error
// pass through unchanged and are logged at info level.
//
// The client only ever sees one of six codes: registration-failed, login-failed,
// not-authenticated, no-rights, invalid-parameters, service-error.
package respond
