package webx

// Status codes used by the engine itself (routing failures, timeouts,
// the base exception handler). Applications are free to use any
// integer in [100, 599] via NewResponse or ResponseBuilder.Status.
const (
	StatusContinue   = 100
	StatusProcessing = 102

	StatusOK             = 200
	StatusPartialContent = 206
	StatusNoContent      = 204
	StatusNotModified    = 304

	StatusBadRequest                   = 400
	StatusRequestTimeout               = 408
	StatusNotAcceptable                = 406
	StatusMethodNotAllowed             = 405
	StatusNotFound                     = 404
	StatusUnsupportedMediaType         = 415
	StatusRequestHeaderFieldsTooLarge  = 431
	StatusUpgradeRequired              = 426
	StatusImATeapot                    = 418
	StatusRequestedRangeNotSatisfiable = 416

	StatusInternalServerError     = 500
	StatusNotImplemented          = 501
	StatusHTTPVersionNotSupported = 505
)

var statusText = map[int]string{
	StatusContinue:                    "Continue",
	StatusProcessing:                  "Processing",
	StatusOK:                          "OK",
	StatusPartialContent:              "Partial Content",
	StatusNoContent:                   "No Content",
	StatusNotModified:                 "Not Modified",
	StatusRequestedRangeNotSatisfiable: "Range Not Satisfiable",
	StatusBadRequest:                  "Bad Request",
	StatusRequestTimeout:              "Request Timeout",
	StatusNotAcceptable:               "Not Acceptable",
	StatusMethodNotAllowed:            "Method Not Allowed",
	StatusNotFound:                    "Not Found",
	StatusUnsupportedMediaType:        "Unsupported Media Type",
	StatusRequestHeaderFieldsTooLarge: "Request Header Fields Too Large",
	StatusUpgradeRequired:             "Upgrade Required",
	StatusInternalServerError:         "Internal Server Error",
	StatusNotImplemented:              "Not Implemented",
	StatusHTTPVersionNotSupported:     "HTTP Version Not Supported",
	StatusImATeapot:                   "I'm a teapot",
}

// StatusText returns a reason phrase for code, or "" if none is known
// (in which case the caller falls back to an empty reason phrase, which
// is legal per spec.md §3).
func StatusText(code int) string {
	return statusText[code]
}

func isInterim(code int) bool { return code >= 100 && code < 200 }
func isFinal(code int) bool   { return !isInterim(code) }
