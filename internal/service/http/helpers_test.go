package httpsvc

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
)

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func serve(handler http.Handler, method, path string, body []byte, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}
