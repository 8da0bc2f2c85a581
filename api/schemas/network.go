package schemas

import "strings"

// -- Sandbox / Network Boundary Schemas --

// NVPair is an ordered name/value pair. Headers use a slice of these rather
// than a map so repeated headers (Set-Cookie) survive the round trip.
type NVPair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FetchRequest is a network request initiated from sandboxed script (fetch,
// XHR, module load) or by the renderer itself for the initial document.
type FetchRequest struct {
	URL     string   `json:"url"`
	Method  string   `json:"method"`
	Headers []NVPair `json:"headers,omitempty"`
	Body    []byte   `json:"body,omitempty"`
}

// FetchResponse carries everything the shims expose back into the sandbox.
// Body is fully read and, for textual types, already decoded to UTF-8.
type FetchResponse struct {
	URL        string   `json:"url"`
	Status     int      `json:"status"`
	StatusText string   `json:"statusText"`
	Headers    []NVPair `json:"headers,omitempty"`
	Body       []byte   `json:"body,omitempty"`
	Redirected bool     `json:"redirected,omitempty"`
}

// Header returns the first value for name, case-insensitively.
func (r *FetchResponse) Header(name string) string {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// HeaderValues returns every value recorded for name, case-insensitively.
func (r *FetchResponse) HeaderValues(name string) []string {
	var out []string
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			out = append(out, h.Value)
		}
	}
	return out
}

// OK reports whether the status is in the 2xx range, mirroring Response.ok.
func (r *FetchResponse) OK() bool {
	return r.Status >= 200 && r.Status <= 299
}

// HistoryState is one entry in the sandbox's session history.
type HistoryState struct {
	State interface{} `json:"state"`
	Title string      `json:"title"`
	URL   string      `json:"url"`
}
