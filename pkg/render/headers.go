package render

import "net/http"

// headerFilter removes a fixed set of headers right before the response
// header is written.
type headerFilter struct {
	http.ResponseWriter
	names       []string
	wroteHeader bool
}

// WithoutHeaders returns a ResponseWriter that drops the named headers from
// the response no matter which handler set them.
func WithoutHeaders(w http.ResponseWriter, names ...string) http.ResponseWriter {
	return &headerFilter{ResponseWriter: w, names: names}
}

func (f *headerFilter) WriteHeader(code int) {
	if !f.wroteHeader {
		h := f.ResponseWriter.Header()
		for _, name := range f.names {
			h.Del(name)
		}
		if code >= 200 {
			f.wroteHeader = true
		}
	}
	f.ResponseWriter.WriteHeader(code)
}

func (f *headerFilter) Write(b []byte) (int, error) {
	if !f.wroteHeader {
		f.WriteHeader(http.StatusOK)
	}
	return f.ResponseWriter.Write(b)
}

func (f *headerFilter) Flush() {
	if !f.wroteHeader {
		f.WriteHeader(http.StatusOK)
	}
	if fl, ok := f.ResponseWriter.(http.Flusher); ok {
		fl.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer, including
// for Hijack and SetWriteDeadline.
func (f *headerFilter) Unwrap() http.ResponseWriter {
	return f.ResponseWriter
}

// defaultStatus writes code instead of 200 when the handler writes a body
// without choosing a status first.
type defaultStatus struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func (d *defaultStatus) WriteHeader(code int) {
	if code >= 200 {
		d.wroteHeader = true
	}
	d.ResponseWriter.WriteHeader(code)
}

func (d *defaultStatus) Write(b []byte) (int, error) {
	if !d.wroteHeader {
		d.WriteHeader(d.code)
	}
	return d.ResponseWriter.Write(b)
}

func (d *defaultStatus) Unwrap() http.ResponseWriter {
	return d.ResponseWriter
}
