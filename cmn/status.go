package cmn

// Status is an HTTP status code + reason phrase drawn from the closed
// 100-511 numeric set (spec.md §4.2).
type Status struct {
	Code   int
	Reason string
}

// Category bands per RFC 7231 §6.
type Category int

const (
	CategoryInformational Category = 1
	CategorySuccess       Category = 2
	CategoryRedirection   Category = 3
	CategoryClientError   Category = 4
	CategoryServerError   Category = 5
)

func (s Status) Category() Category { return Category(s.Code / 100) }

var reasonPhrases = map[int]string{
	100: "Continue", 101: "Switching Protocols", 102: "Processing", 103: "Early Hints",
	200: "OK", 201: "Created", 202: "Accepted", 203: "Non-Authoritative Information",
	204: "No Content", 205: "Reset Content", 206: "Partial Content", 207: "Multi-Status",
	208: "Already Reported", 226: "IM Used",
	300: "Multiple Choices", 301: "Moved Permanently", 302: "Found", 303: "See Other",
	304: "Not Modified", 305: "Use Proxy", 307: "Temporary Redirect", 308: "Permanent Redirect",
	400: "Bad Request", 401: "Unauthorized", 402: "Payment Required", 403: "Forbidden",
	404: "Not Found", 405: "Method Not Allowed", 406: "Not Acceptable",
	407: "Proxy Authentication Required", 408: "Request Timeout", 409: "Conflict",
	410: "Gone", 411: "Length Required", 412: "Precondition Failed",
	413: "Payload Too Large", 414: "URI Too Long", 415: "Unsupported Media Type",
	416: "Range Not Satisfiable", 417: "Expectation Failed", 418: "I'm a Teapot",
	421: "Misdirected Request", 422: "Unprocessable Entity", 423: "Locked",
	424: "Failed Dependency", 425: "Too Early", 426: "Upgrade Required",
	428: "Precondition Required", 429: "Too Many Requests",
	431: "Request Header Fields Too Large", 451: "Unavailable For Legal Reasons",
	500: "Internal Server Error", 501: "Not Implemented", 502: "Bad Gateway",
	503: "Service Unavailable", 504: "Gateway Timeout", 505: "HTTP Version Not Supported",
	506: "Variant Also Negotiates", 507: "Insufficient Storage", 508: "Loop Detected",
	510: "Not Extended", 511: "Network Authentication Required",
}

// StatusFromCode looks up a Status by numeric code. Returns
// (Status{}, false) for a code outside the registered 100-511 set
// (UnknownStatusCode, spec.md §4.2).
func StatusFromCode(n int) (Status, bool) {
	reason, ok := reasonPhrases[n]
	if !ok {
		return Status{}, false
	}
	return Status{Code: n, Reason: reason}, true
}

// BlockedStatusCode is the synthetic status (0) returned for requests dropped
// by the security shield (spec.md §7, "User-visible behavior").
const BlockedStatusCode = 0
